package main

import (
	"time"

	"github.com/spf13/cobra"

	"pactd/internal/config"
	"pactd/internal/logging"
	"pactd/internal/sessiondoc"
	"pactd/internal/teams"
)

var hookSessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Write the last-session snapshot and clean up stale teams",
	RunE:  runHookSessionEnd,
}

func runHookSessionEnd(cmd *cobra.Command, args []string) error {
	start := time.Now()
	in := readHookInput("session-end")
	if in == nil {
		return nil
	}
	var err error
	defer func() { finishHook("session-end", in.SessionID, start, err) }()

	m := teamManager()

	slug := sessiondoc.ProjectSlug(config.ProjectDir())
	if slug != "" {
		team := config.TeamName()
		if team == "" && m.Branch != nil {
			if branch := m.Branch(); branch != "" {
				team = teams.DeriveTeamName(branch)
			}
		}
		if team != "" {
			if err = sessiondoc.WriteSnapshot(m.TaskList(team), slug, cfg.Paths.SessionsDir); err != nil {
				logging.SessionWarn("snapshot for %s: %v", slug, err)
			}
		}
	} else {
		logging.SessionDebug("project slug unknown, skipping snapshot")
	}

	for _, removed := range m.CleanupStale() {
		logging.Teams("removed stale team %s", removed)
		logging.AuditWithSession(in.SessionID).Log(logging.AuditEvent{
			EventType: logging.AuditTeamCleanup,
			Target:    removed,
			Success:   true,
		})
	}
	return nil
}
