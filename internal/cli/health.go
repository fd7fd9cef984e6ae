package cli

import (
	"fmt"

	"github.com/harun/relay/internal/daemon"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the backend once",
	Long: `Probe the backend health endpoint once and report the latency.
Exits with an error when the backend is unreachable.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	core, _, log, err := openCore(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	report := daemon.ProbeBackend(cmd.Context(), core.Backend)
	fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s %s\n", core.Backend.BaseURL(), report)

	if !report.Up {
		return fmt.Errorf("backend is unreachable")
	}
	return nil
}
