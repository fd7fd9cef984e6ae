package cli

import (
	"fmt"
	"time"

	"github.com/harun/relay/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show whether the relay daemon is running and whether the backend is reachable.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	core, cfg, log, err := openCore(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()

	if pid, running := daemon.RunningPID(cfg.DataDir); running {
		fmt.Fprintf(out, "Status: running\n")
		fmt.Fprintf(out, "PID: %d\n", pid)
		if uptime, err := daemon.Uptime(cfg.DataDir); err == nil {
			fmt.Fprintf(out, "Uptime: %s\n", formatDuration(uptime))
		}
	} else {
		fmt.Fprintln(out, "Status: stopped")
	}

	report := daemon.ProbeBackend(cmd.Context(), core.Backend)
	fmt.Fprintf(out, "Backend: %s %s\n", core.Backend.BaseURL(), report)

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
