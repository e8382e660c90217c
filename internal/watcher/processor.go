package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/forPelevin/adcut/internal/pipeline"
)

// jobSpec is the shape of a dropped job file. A file that carries scenes
// but no mode is treated as a bare remix plan.
type jobSpec struct {
	Mode       string  `json:"mode"`
	Input      string  `json:"input,omitempty"`
	PlanPath   string  `json:"plan_path,omitempty"`
	OpsPath    string  `json:"ops_path,omitempty"`
	Gap        float64 `json:"gap,omitempty"`
	StartWord  string  `json:"start_word,omitempty"`
	EndWord    string  `json:"end_word,omitempty"`
	Transition float64 `json:"transition,omitempty"`
	Output     string  `json:"output,omitempty"`

	Scenes []json.RawMessage `json:"scenes,omitempty"`
}

// Processor renders dropped job files through the pipeline.
type Processor struct {
	base   pipeline.Config
	logger *zap.Logger
}

// NewProcessor builds a processor on top of the mode-independent run
// config (engine, tool paths, cache and output roots).
func NewProcessor(base pipeline.Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{base: base, logger: logger}
}

// Process renders one job file. Relative paths inside the file resolve
// against the directory it was dropped in.
func (p *Processor) Process(ctx context.Context, path string) error {
	run, err := p.buildRun(path)
	if err != nil {
		return err
	}

	log := p.logger.With(zap.String("job_file", filepath.Base(path)))
	run.Logf = log.Sugar().Infof

	log.Info("render started", zap.String("mode", string(run.Mode)))
	artifact, err := pipeline.Run(ctx, run)
	if err != nil {
		return err
	}
	log.Info("render finished", zap.String("artifact", artifact))
	return nil
}

func (p *Processor) buildRun(path string) (pipeline.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Config{}, err
	}
	var spec jobSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return pipeline.Config{}, fmt.Errorf("parse job file %s: %w", path, err)
	}

	run := p.base
	base := filepath.Dir(path)

	if spec.Mode == "" && len(spec.Scenes) > 0 {
		// The dropped file is itself a remix plan.
		run.Mode = pipeline.ModePlan
		run.PlanPath = path
		return run, nil
	}

	run.Mode = pipeline.Mode(spec.Mode)
	run.Input = resolve(base, spec.Input)
	run.PlanPath = resolve(base, spec.PlanPath)
	run.OpsPath = resolve(base, spec.OpsPath)
	run.Gap = spec.Gap
	run.StartWord = spec.StartWord
	run.EndWord = spec.EndWord
	run.Transition = spec.Transition
	run.OutPath = resolve(run.OutDir, spec.Output)
	return run, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
