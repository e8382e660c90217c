// Package logging builds the zap logger shared by the server and watcher
// modes. CLI one-shot commands print directly and do not use it.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates a structured logger at the given level. Supported levels:
// debug, info, warn, error. Dev switches to the human-readable console
// encoder; otherwise output is JSON.
func New(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// WithJob returns a logger annotated with the job id.
func WithJob(logger *zap.Logger, jobID string) *zap.Logger {
	return logger.With(zap.String("job_id", jobID))
}
