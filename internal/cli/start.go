package cli

import (
	"fmt"

	"github.com/harun/relay/internal/daemon"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay daemon",
	Long: `Start the relay daemon in the foreground.
The daemon polls Telegram for messages and relays them to the backend
until it receives SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if pid, running := daemon.RunningPID(cfg.DataDir); running {
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Relay daemon started (PID file: %s)\n", daemon.PIDFilePath(cfg.DataDir))
	if addr := d.MetricsAddr(); addr != "" {
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", addr)
	}

	d.Wait()
	return nil
}
