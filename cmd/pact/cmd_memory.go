package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/embedding"
	"pactd/internal/logging"
	"pactd/internal/memory"
	"pactd/internal/store"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Save and recall structured session memories",
}

var (
	memProject   string
	memSession   string
	memContext   string
	memGoal      string
	memTasks     []string
	memLessons   []string
	memDecisions []string
	memFiles     []string
	memLimit     int
	memSemantic  bool
)

var memorySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a memory object",
	RunE:  runMemorySave,
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryGet,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent memories",
	RunE:  runMemoryList,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search memories by keyword, or semantically with --semantic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryDelete,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memorySaveCmd, memoryGetCmd, memoryListCmd, memorySearchCmd, memoryDeleteCmd)

	memoryCmd.PersistentFlags().StringVar(&memProject, "project", "", "project id (default CLAUDE_PROJECT_DIR)")

	memorySaveCmd.Flags().StringVar(&memContext, "context", "", "what was happening")
	memorySaveCmd.Flags().StringVar(&memGoal, "goal", "", "what the session was trying to achieve")
	memorySaveCmd.Flags().StringArrayVar(&memTasks, "task", nil, "active task (repeatable)")
	memorySaveCmd.Flags().StringArrayVar(&memLessons, "lesson", nil, "lesson learned (repeatable)")
	memorySaveCmd.Flags().StringArrayVar(&memDecisions, "decision", nil, "decision made (repeatable)")
	memorySaveCmd.Flags().StringArrayVar(&memFiles, "file", nil, "file touched (repeatable)")

	memoryListCmd.Flags().StringVar(&memSession, "session", "", "filter by session id")
	memoryListCmd.Flags().IntVar(&memLimit, "limit", 20, "maximum results")

	memorySearchCmd.Flags().IntVar(&memLimit, "limit", 10, "maximum results")
	memorySearchCmd.Flags().BoolVar(&memSemantic, "semantic", false, "use vector search instead of keyword matching")
}

func projectID() string {
	if memProject != "" {
		return memProject
	}
	return config.ProjectDir()
}

func openStore() (*store.MemoryStore, error) {
	s, err := store.Open(cfg.Memory.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return s, nil
}

func runMemorySave(cmd *cobra.Command, args []string) error {
	if memContext == "" && memGoal == "" && len(memTasks) == 0 && len(memLessons) == 0 && len(memDecisions) == 0 {
		return fmt.Errorf("nothing to save: provide at least one of --context, --goal, --task, --lesson, --decision")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	m := &memory.MemoryObject{
		Context:        memContext,
		Goal:           memGoal,
		LessonsLearned: memLessons,
		ProjectID:      projectID(),
		SessionID:      config.SessionID(),
	}
	for _, t := range memTasks {
		m.ActiveTasks = append(m.ActiveTasks, memory.TaskItem{Task: t})
	}
	for _, d := range memDecisions {
		m.Decisions = append(m.Decisions, memory.Decision{Decision: d})
	}

	id, err := s.Create(m)
	if err != nil {
		return err
	}
	for _, f := range memFiles {
		if err := s.LinkFile(id, f, m.ProjectID, "modified"); err != nil {
			return err
		}
	}

	embedMemory(cmd.Context(), s, id, m)

	logging.Store("saved memory %s (project %s)", id, m.ProjectID)
	fmt.Println(id)
	return nil
}

// embedMemory generates and stores an embedding for the memory when an
// engine is configured. Embedding failures are reported but never fail
// the save; the row is still searchable by keyword.
func embedMemory(ctx context.Context, s *store.MemoryStore, id string, m *memory.MemoryObject) {
	engine, err := embedding.NewEngine(cfg.Memory.Embedding)
	if err != nil || engine == nil {
		if err != nil {
			fmt.Printf("warning: embeddings unavailable: %v\n", err)
		}
		return
	}
	if err := s.EnableVector(engine.Dimensions()); err != nil {
		fmt.Printf("warning: vector search unavailable: %v\n", err)
		return
	}
	vec, err := engine.Embed(ctx, m.SearchableText())
	if err != nil {
		fmt.Printf("warning: embedding failed: %v\n", err)
		return
	}
	if err := s.UpsertEmbedding(id, m.ProjectID, vec); err != nil {
		fmt.Printf("warning: storing embedding failed: %v\n", err)
	}
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := s.Get(args[0])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no memory with id %s", args[0])
	}
	fmt.Print(renderMarkdown(memory.FormatEntry(m)))
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	memories, err := s.List(store.ListOptions{
		ProjectID: projectID(),
		SessionID: memSession,
		Limit:     memLimit,
	})
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("No memories found.")
		return nil
	}
	for _, m := range memories {
		printMemoryLine(m)
	}
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	term := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if memSemantic {
		return searchSemantic(cmd.Context(), s, term)
	}

	memories, err := s.Search(term, projectID(), memLimit)
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Printf("No memories matching %q.\n", term)
		return nil
	}
	for _, m := range memories {
		printMemoryLine(m)
	}
	return nil
}

func searchSemantic(ctx context.Context, s *store.MemoryStore, term string) error {
	engine, err := embedding.NewEngine(cfg.Memory.Embedding)
	if err != nil {
		return err
	}
	if engine == nil {
		return fmt.Errorf("semantic search needs an embedding provider (set memory.embedding.provider)")
	}
	if err := s.EnableVector(engine.Dimensions()); err != nil {
		return err
	}

	vec, err := engine.Embed(ctx, term)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.SearchVector(vec, projectID(), memLimit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No memories near %q.\n", term)
		return nil
	}
	for _, match := range matches {
		m, err := s.Get(match.MemoryID)
		if err != nil || m == nil {
			continue
		}
		fmt.Printf("%.3f  ", match.Distance)
		printMemoryLine(m)
	}
	return nil
}

func runMemoryDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	found, err := s.Delete(args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no memory with id %s", args[0])
	}
	fmt.Println("Deleted.")
	return nil
}

func printMemoryLine(m *memory.MemoryObject) {
	summary := m.Context
	if summary == "" {
		summary = m.Goal
	}
	if len(summary) > 72 {
		summary = summary[:72] + "..."
	}
	ts := ""
	if !m.CreatedAt.IsZero() {
		ts = m.CreatedAt.Format("2006-01-02 15:04")
	}
	fmt.Printf("%s  %s  %s\n", m.ID, dimStyle.Render(ts), summary)
}
