package cli

import (
	"fmt"

	"github.com/harun/relay/pkg/backend"
	"github.com/spf13/cobra"
)

var deleteSessionID string

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List backend sessions",
	Long: `List the sessions the backend knows about, in backend order.
With an ID, show that session. With --delete, remove one session instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&deleteSessionID, "delete", "", "delete the session with this ID")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	core, _, log, err := openCore(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if deleteSessionID != "" {
		if err := core.Backend.DeleteSession(ctx, deleteSessionID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", deleteSessionID, err)
		}
		fmt.Fprintf(out, "Deleted session %s\n", deleteSessionID)
		return nil
	}

	if len(args) == 1 {
		s, err := core.Backend.GetSession(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get session %s: %w", args[0], err)
		}
		fmt.Fprintf(out, "ID: %s\nTitle: %s\n", s.ID, s.Title)
		return nil
	}

	listed, err := core.Backend.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]backend.Session, 0, len(listed))
	for _, s := range listed {
		if s.Usable() {
			sessions = append(sessions, s)
		}
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions")
		return nil
	}

	width := len("ID")
	for _, s := range sessions {
		width = max(width, len(s.ID))
	}

	fmt.Fprintf(out, "%-*s  %s\n", width, "ID", "TITLE")
	for _, s := range sessions {
		fmt.Fprintf(out, "%-*s  %s\n", width, s.ID, s.Title)
	}
	return nil
}
