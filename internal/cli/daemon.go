package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/config"
	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/logging"
	"github.com/forPelevin/adcut/internal/pipeline"
)

// loadDaemonConfig resolves the config file for the long-running modes.
// Without --config, an adcut.yaml in the working directory is used when
// present; otherwise environment and defaults apply.
func loadDaemonConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat("adcut.yaml"); err == nil {
			path = "adcut.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Dev)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// baseRunConfig builds the mode-independent run config shared by every
// job a daemon executes.
func baseRunConfig(cfg *config.Config, mgr *engine.Manager) pipeline.Config {
	return pipeline.Config{
		FFmpegPath:   cfg.Engine.FFmpegPath,
		FFprobePath:  cfg.Engine.FFprobePath,
		FontPath:     cfg.Engine.FontPath,
		WhisperBin:   cfg.Whisper.BinaryPath,
		WhisperModel: cfg.Whisper.ModelPath,
		CacheDir:     cfg.Paths.Cache,
		OutDir:       cfg.Paths.Output,
		Engine:       pipeline.NewEngineProvider(mgr),
	}
}

func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
