package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/harun/relay/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the relay daemon",
	Long: `Stop the relay daemon gracefully.
Sends SIGTERM to the daemon and waits for it to shut down.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for daemon to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pidFile := daemon.PIDFilePath(cfg.DataDir)

	pid, err := daemon.ReadPID(pidFile)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Daemon is not running (removing stale PID file)")
		_ = os.Remove(pidFile)
		return nil
	}

	if err := stopProcess(pid, time.Duration(stopTimeout)*time.Second, out); err != nil {
		return err
	}

	_ = os.Remove(pidFile)
	return nil
}

// stopProcess sends SIGTERM and escalates to SIGKILL once timeout passes
func stopProcess(pid int, timeout time.Duration, out io.Writer) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	fmt.Fprintf(out, "Stopping daemon (PID %d)...\n", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !daemon.ProcessAlive(pid) {
			fmt.Fprintln(out, "Daemon stopped successfully")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")
	if err := process.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	fmt.Fprintln(out, "Daemon killed")
	return nil
}
