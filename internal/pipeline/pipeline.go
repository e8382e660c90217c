// Package pipeline is the one-shot composition root: it validates a run
// config, wires adapters into the executor, and renders a single artifact.
// Long-lived callers (server, watcher) pass their own engine so sessions
// survive across runs; otherwise a private engine is built and torn down.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/ports"
	"github.com/forPelevin/adcut/internal/ports/adapters/ffprobe"
	"github.com/forPelevin/adcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/adcut/internal/types"
	"github.com/forPelevin/adcut/internal/usecase"
)

type Mode string

const (
	// ModePlan renders a multi-scene remix from a plan file.
	ModePlan Mode = "plan"
	// ModeEdits applies a flat operation list to one clip.
	ModeEdits Mode = "edits"
	// ModeSilence cuts the silent stretches out of a clip.
	ModeSilence Mode = "silence"
	// ModeKeywords keeps spans bounded by spoken start/end keywords.
	ModeKeywords Mode = "keywords"
)

type Config struct {
	Mode Mode

	// PlanPath is the remix plan file (plan mode). Scene sources inside it
	// resolve relative to the plan file's directory.
	PlanPath string

	// Input is the source clip (edits, silence, keywords modes).
	Input string

	// OpsPath is the operation list file (edits mode). Empty means no
	// operations, which renders a stream-copy of the input.
	OpsPath string

	// Gap is the silence threshold in seconds (silence mode). Zero uses
	// the default.
	Gap float64

	StartWord string
	EndWord   string

	// OutPath is where the artifact lands. Empty derives a run-scoped
	// name under OutDir.
	OutPath string

	// OutDir is the artifact root used when OutPath is empty. Empty
	// means "out".
	OutDir string

	// Transition is the remix crossfade in seconds. Zero uses the default.
	Transition float64

	// CacheDir is the base directory for local artifacts (transcripts).
	// If empty, defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string
	FontPath    string

	WhisperBin   string
	WhisperModel string

	// Engine, when set, replaces the private per-run engine. Long-lived
	// callers pass one so warm sessions carry across runs.
	Engine ports.Engine

	OnProgress func(types.Progress)
	OnLog      func(string)
	Logf       func(format string, args ...any)
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModePlan:
		if c.PlanPath == "" {
			return errors.New("plan file is required")
		}
		if _, err := os.Stat(c.PlanPath); err != nil {
			return fmt.Errorf("stat plan: %w", err)
		}
	case ModeEdits, ModeSilence, ModeKeywords:
		if c.Input == "" {
			return errors.New("input is required")
		}
		if _, err := os.Stat(c.Input); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	switch c.Mode {
	case ModeEdits:
		if c.OpsPath != "" {
			if _, err := os.Stat(c.OpsPath); err != nil {
				return fmt.Errorf("stat operations: %w", err)
			}
		}
	case ModeSilence:
		if c.Gap < 0 {
			return errors.New("gap must be >= 0")
		}
	case ModeKeywords:
		if strings.TrimSpace(c.StartWord) == "" || strings.TrimSpace(c.EndWord) == "" {
			return errors.New("start and end keywords are required")
		}
	}

	if needsTranscript(c.Mode) && c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	return nil
}

func needsTranscript(m Mode) bool {
	return m == ModeSilence || m == ModeKeywords
}

// NewEngineProvider adapts a session manager to the engine port.
func NewEngineProvider(m *engine.Manager) ports.Engine {
	return managerProvider{m}
}

type managerProvider struct{ m *engine.Manager }

func (p managerProvider) Acquire(ctx context.Context) (ports.EngineSession, error) {
	return p.m.Acquire(ctx)
}

// Run renders one artifact and returns its path.
func Run(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	eng := cfg.Engine
	if eng == nil {
		m := engine.NewManager(engine.Options{
			FFmpegPath: cfg.FFmpegPath,
			FontPath:   cfg.FontPath,
		})
		defer m.Close()
		eng = NewEngineProvider(m)
	}

	uc := usecase.New(usecase.Deps{
		Engine: eng,
		Prober: ffprobe.New(cfg.FFprobePath),
		ASR:    whispercpp.New(cfg.WhisperBin, cfg.WhisperModel),
	})

	outPath := cfg.OutPath
	if outPath == "" {
		outRoot := cfg.OutDir
		if outRoot == "" {
			outRoot = "out"
		}
		outPath = buildOutPath(outRoot, primaryInput(cfg), time.Now().UTC())
	}
	cb := usecase.Callbacks{OnProgress: cfg.OnProgress, OnLog: cfg.OnLog}

	var (
		res usecase.Result
		err error
	)
	switch cfg.Mode {
	case ModePlan:
		var plan types.EditPlan
		plan, err = loadPlan(cfg.PlanPath)
		if err != nil {
			return "", err
		}
		logf("plan: %d scene(s)", len(plan.Scenes))
		res, err = uc.RenderPlan(ctx, usecase.PlanInput{
			Plan:       plan,
			Transition: cfg.Transition,
			OutPath:    outPath,
			Callbacks:  cb,
		})

	case ModeEdits:
		var ops []types.Operation
		if cfg.OpsPath != "" {
			ops, err = loadOps(cfg.OpsPath)
			if err != nil {
				return "", err
			}
		}
		logf("edit: %d operation(s)", len(ops))
		res, err = uc.RenderEdits(ctx, usecase.EditInput{
			Input:     cfg.Input,
			Ops:       ops,
			OutPath:   outPath,
			Callbacks: cb,
		})

	case ModeSilence:
		cacheDir, cerr := runCacheDir(cfg.CacheDir, cfg.Input)
		if cerr != nil {
			return "", cerr
		}
		logf("cache: %s", cacheDir)
		res, err = uc.CutSilence(ctx, usecase.SilenceInput{
			Input:     cfg.Input,
			Gap:       cfg.Gap,
			CacheDir:  cacheDir,
			OutPath:   outPath,
			Callbacks: cb,
		})

	case ModeKeywords:
		cacheDir, cerr := runCacheDir(cfg.CacheDir, cfg.Input)
		if cerr != nil {
			return "", cerr
		}
		logf("cache: %s", cacheDir)
		res, err = uc.CutKeywords(ctx, usecase.KeywordInput{
			Input:     cfg.Input,
			StartWord: cfg.StartWord,
			EndWord:   cfg.EndWord,
			CacheDir:  cacheDir,
			OutPath:   outPath,
			Callbacks: cb,
		})
	}
	if err != nil {
		return "", err
	}

	for _, w := range res.Warnings {
		logf("warning: %s", w)
	}
	logf("artifact: %s", res.OutputPath)
	return res.OutputPath, nil
}

// Segments computes the keep list a cut would render, without rendering it.
// Only the silence and keywords modes have one.
func Segments(ctx context.Context, cfg Config) ([]timespan.Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !needsTranscript(cfg.Mode) {
		return nil, fmt.Errorf("mode %q has no segment list", cfg.Mode)
	}

	eng := cfg.Engine
	if eng == nil {
		m := engine.NewManager(engine.Options{
			FFmpegPath: cfg.FFmpegPath,
			FontPath:   cfg.FontPath,
		})
		defer m.Close()
		eng = NewEngineProvider(m)
	}

	uc := usecase.New(usecase.Deps{
		Engine: eng,
		Prober: ffprobe.New(cfg.FFprobePath),
		ASR:    whispercpp.New(cfg.WhisperBin, cfg.WhisperModel),
	})

	cacheDir, err := runCacheDir(cfg.CacheDir, cfg.Input)
	if err != nil {
		return nil, err
	}
	return uc.ComputeSegments(ctx, usecase.SegmentsInput{
		Input:     cfg.Input,
		Gap:       cfg.Gap,
		StartWord: cfg.StartWord,
		EndWord:   cfg.EndWord,
		CacheDir:  cacheDir,
		Callbacks: usecase.Callbacks{OnProgress: cfg.OnProgress, OnLog: cfg.OnLog},
	})
}

func primaryInput(cfg Config) string {
	if cfg.Mode == ModePlan {
		return cfg.PlanPath
	}
	return cfg.Input
}

// loadPlan reads a remix plan file and resolves its relative source paths
// against the plan file's directory.
func loadPlan(path string) (types.EditPlan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.EditPlan{}, err
	}
	var p types.EditPlan
	if err := json.Unmarshal(b, &p); err != nil {
		return types.EditPlan{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range p.Scenes {
		p.Scenes[i].Source = resolvePath(base, p.Scenes[i].Source)
	}
	p.AudioSource = resolvePath(base, p.AudioSource)
	return p, nil
}

// loadOps accepts either a bare JSON array or an {"operations": [...]}
// envelope, with image paths resolved against the file's directory.
func loadOps(path string) ([]types.Operation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ops []types.Operation
	if err := json.Unmarshal(b, &ops); err != nil {
		var wrapped struct {
			Operations []types.Operation `json:"operations"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, fmt.Errorf("parse operations %s: %w", path, err)
		}
		ops = wrapped.Operations
	}
	base := filepath.Dir(path)
	for i := range ops {
		ops[i].Image = resolvePath(base, ops[i].Image)
	}
	return ops, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func runCacheDir(base, input string) (string, error) {
	if base == "" {
		base = ".cache"
	}
	dir := filepath.Join(base, "runs", hash(input))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func buildOutPath(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s.mp4", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.MediaProber = (*ffprobe.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.EngineSession = (*engine.Session)(nil)
