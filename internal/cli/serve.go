package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/api"
	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the render job HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("config", "", "Config file (YAML)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := loadDaemonConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(cfg.Server.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := engine.NewManager(engine.Options{
		FFmpegPath: cfg.Engine.FFmpegPath,
		FontPath:   cfg.Engine.FontPath,
		Logger:     logger,
	})
	defer mgr.Close()

	hub := api.NewWSHub()
	runner := api.NewRunner(api.RunnerConfig{Store: st, Hub: hub, Logger: logger})
	defer runner.Close()

	srv := api.NewServer(api.ServerConfig{
		Addr:      cfg.Server.Addr,
		Base:      baseRunConfig(cfg, mgr),
		Store:     st,
		Engine:    mgr,
		Runner:    runner,
		Hub:       hub,
		Logger:    logger,
		StartTime: time.Now(),
	})

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errChan:
		return err
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
