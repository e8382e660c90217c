package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "watch",
		Short:        "Render job files dropped into the inbox directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd)
		},
	}

	cmd.Flags().String("config", "", "Config file (YAML)")

	return cmd
}

func runWatch(cmd *cobra.Command) error {
	cfg, logger, err := loadDaemonConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := ensureDirs(cfg.Paths.Inbox, cfg.Paths.Processed, cfg.Paths.Failed, cfg.Paths.Output); err != nil {
		return err
	}

	mgr := engine.NewManager(engine.Options{
		FFmpegPath: cfg.Engine.FFmpegPath,
		FontPath:   cfg.Engine.FontPath,
		Logger:     logger,
	})
	defer mgr.Close()

	proc := watcher.NewProcessor(baseRunConfig(cfg, mgr), logger)

	w, err := watcher.New(watcher.Options{
		Inbox:     cfg.Paths.Inbox,
		Processed: cfg.Paths.Processed,
		Failed:    cfg.Paths.Failed,
		Handler:   proc.Process,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- w.Start(ctx) }()

	logger.Info("drop folder ready",
		zap.String("inbox", cfg.Paths.Inbox),
		zap.String("output", cfg.Paths.Output),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	logger.Info("watch stopped")
	return nil
}
