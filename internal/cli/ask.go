package cli

import (
	"fmt"
	"strings"

	"github.com/harun/relay/internal/daemon"
	"github.com/spf13/cobra"
)

var askAs string

var askCmd = &cobra.Command{
	Use:   "ask [flags] <text>",
	Short: "Run one turn through the relay",
	Long: `Send one message to the backend as a participant and print the reply
the way Telegram would show it. Text starting with "/" runs a command
(/help, /session, /newsession, /ping).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askAs, "as", "cli", "participant to act as")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	core, _, log, err := openCore(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	pipeline, err := daemon.NewPipeline(core.Service, daemon.PipelineOptions{DirectChannel: "cli"}, log.Zerolog())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := pipeline.Start(ctx); err != nil {
		_ = pipeline.Close(ctx)
		return err
	}
	defer func() {
		_ = pipeline.Stop(ctx)
		_ = pipeline.Close(ctx)
	}()

	res, err := pipeline.Ask(ctx, askAs, strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), daemon.RenderResult(res))

	if !res.OK() {
		return fmt.Errorf("turn failed: %s", res.Outcome)
	}
	return nil
}
