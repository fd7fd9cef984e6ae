package cli

import (
	"fmt"

	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/daemon"
	"github.com/harun/relay/internal/logger"
	"github.com/spf13/cobra"
)

// openCore loads the configuration and builds the relay core for one-shot
// commands. The returned logger writes to the log file and must be closed.
func openCore(cmd *cobra.Command) (*daemon.Core, *config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	core, err := daemon.NewCore(cfg, log.Zerolog(), nil)
	if err != nil {
		_ = log.Close()
		return nil, nil, nil, err
	}

	return core, cfg, log, nil
}
