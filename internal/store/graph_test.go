package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pactd/internal/memory"
)

func TestMemoriesForFile(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.Create(&memory.MemoryObject{Context: "auth refactor", ProjectID: "p1"})
	require.NoError(t, err)
	id2, err := s.Create(&memory.MemoryObject{Context: "auth tests", ProjectID: "p1"})
	require.NoError(t, err)
	other, err := s.Create(&memory.MemoryObject{Context: "unrelated", ProjectID: "p2"})
	require.NoError(t, err)

	require.NoError(t, s.LinkFile(id1, "auth/login.go", "p1", "modified"))
	require.NoError(t, s.LinkFile(id2, "auth/login.go", "p1", "read"))
	require.NoError(t, s.LinkFile(other, "auth/login.go", "p2", "modified"))

	ids, err := s.MemoriesForFile("auth/login.go", "p1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{id1, id2}, ids)

	ids, err = s.MemoriesForFile("auth/login.go", "p2")
	require.NoError(t, err)
	require.Equal(t, []string{other}, ids)

	ids, err = s.MemoriesForFile("missing.go", "p1")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestRelatedFiles_DirectionAndOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RelateFiles("api/handler.go", "api/routes.go", "p1", "imports"))
	require.NoError(t, s.RelateFiles("api/handler.go", "api/middleware.go", "p1", "imports"))
	require.NoError(t, s.RelateFiles("api/routes.go", "api/handler.go", "p1", "imported_by"))

	rels, err := s.RelatedFiles("api/handler.go", "p1")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	// Outgoing edges only, sorted by target.
	require.Equal(t, "api/middleware.go", rels[0].TargetPath)
	require.Equal(t, "api/routes.go", rels[1].TargetPath)
	for _, r := range rels {
		require.Equal(t, "api/handler.go", r.SourcePath)
		require.Equal(t, "imports", r.Relationship)
	}

	rels, err = s.RelatedFiles("api/routes.go", "p1")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "imported_by", rels[0].Relationship)
}

func TestLinkFile_DefaultRelationship(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Create(&memory.MemoryObject{Context: "x", ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, s.LinkFile(id, "main.go", "p1", ""))

	var rel string
	err = s.DB().QueryRow(`SELECT relationship FROM memory_files WHERE memory_id = ?`, id).Scan(&rel)
	require.NoError(t, err)
	require.Equal(t, "modified", rel)
}
