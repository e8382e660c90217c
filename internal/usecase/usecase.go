// Package usecase executes compiled edit plans against an engine session:
// stage sources, run the invocations in order, export the artifact, sweep
// the workspace. Runs are strictly sequential; callers that want
// parallelism run multiple processes.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/adcut/internal/compiler"
	"github.com/forPelevin/adcut/internal/domain/segments"
	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/ports"
	"github.com/forPelevin/adcut/internal/types"
)

// ErrNoSegments reports that a cut produced nothing to keep. It is raised
// before any segment rendering starts.
var ErrNoSegments = errors.New("no segments to keep")

type Deps struct {
	Engine ports.Engine
	Prober ports.MediaProber
	ASR    ports.Transcriber
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

// Callbacks receive live run feedback. Both fields are optional. Progress
// fractions never decrease over one run.
type Callbacks struct {
	OnProgress func(types.Progress)
	OnLog      func(string)
}

func (c Callbacks) progress(fraction float64, format string, args ...any) {
	if c.OnProgress != nil {
		c.OnProgress(types.Progress{Fraction: fraction, Message: fmt.Sprintf(format, args...)})
	}
}

func (c Callbacks) log(line string) {
	if c.OnLog != nil {
		c.OnLog(line)
	}
}

type Result struct {
	OutputPath string
	// Warnings are non-fatal degradations, currently only font install
	// failures.
	Warnings []string
}

type PlanInput struct {
	Plan       types.EditPlan
	Transition float64 // crossfade seconds, <=0 uses the compiler default
	OutPath    string
	Callbacks
}

// RenderPlan runs the multi-scene remix: per-scene extraction, crossfade
// join, one global audio mux.
func (u Usecase) RenderPlan(ctx context.Context, in PlanInput) (Result, error) {
	if len(in.Plan.Scenes) == 0 {
		return Result{}, errors.New("plan has no scenes")
	}
	if in.OutPath == "" {
		return Result{}, errors.New("no output path")
	}

	in.progress(0.05, "loading engine")
	s, err := u.d.Engine.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	st := newStager(s)
	defer st.cleanup()

	in.progress(0.08, "staging sources")
	staged := in.Plan
	staged.Scenes = append([]types.Scene(nil), in.Plan.Scenes...)
	for i := range staged.Scenes {
		name, err := st.stage(staged.Scenes[i].Source)
		if err != nil {
			return Result{}, err
		}
		staged.Scenes[i].Source = name
	}
	if staged.AudioSource != "" {
		name, err := st.stage(staged.AudioSource)
		if err != nil {
			return Result{}, err
		}
		staged.AudioSource = name
	}

	var res Result
	font := ""
	if anySceneText(staged.Scenes) {
		font = installFont(s, in.Callbacks, &res)
	}

	plan, err := compiler.CompileScenes(compiler.SceneRequest{
		Plan:       staged,
		Transition: in.Transition,
		FontFile:   font,
	})
	if err != nil {
		return Result{}, err
	}

	if err := u.run(ctx, s, st, plan, in.Callbacks, 0.10); err != nil {
		return Result{}, err
	}
	if err := exportOutput(s, plan.Output, in.OutPath); err != nil {
		return Result{}, err
	}
	in.progress(1, "wrote %s", in.OutPath)
	res.OutputPath = in.OutPath
	return res, nil
}

type EditInput struct {
	Input   string
	Ops     []types.Operation
	OutPath string
	Callbacks
}

// RenderEdits runs the flat operation list over one source clip.
func (u Usecase) RenderEdits(ctx context.Context, in EditInput) (Result, error) {
	if in.Input == "" {
		return Result{}, errors.New("no input")
	}
	if in.OutPath == "" {
		return Result{}, errors.New("no output path")
	}

	in.progress(0.02, "probing input")
	dur, err := u.d.Prober.ProbeDuration(ctx, in.Input)
	if err != nil {
		return Result{}, err
	}

	in.progress(0.05, "loading engine")
	s, err := u.d.Engine.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	st := newStager(s)
	defer st.cleanup()

	in.progress(0.08, "staging sources")
	input, err := st.stage(in.Input)
	if err != nil {
		return Result{}, err
	}

	var res Result
	ops := append([]types.Operation(nil), in.Ops...)
	font := ""
	if opsNeedText(ops) {
		font = installFont(s, in.Callbacks, &res)
	}
	if err := st.stageImages(ops); err != nil {
		return Result{}, err
	}

	plan, err := compiler.CompileEdits(compiler.EditRequest{
		Input:    input,
		Duration: dur,
		Ops:      ops,
		FontFile: font,
	})
	if err != nil {
		return Result{}, err
	}

	if err := u.run(ctx, s, st, plan, in.Callbacks, 0.10); err != nil {
		return Result{}, err
	}
	if err := exportOutput(s, plan.Output, in.OutPath); err != nil {
		return Result{}, err
	}
	in.progress(1, "wrote %s", in.OutPath)
	res.OutputPath = in.OutPath
	return res, nil
}

type SilenceInput struct {
	Input    string
	Gap      float64 // silence threshold in seconds, <=0 uses the default
	CacheDir string  // transcriber scratch, "" uses the session workspace
	OutPath  string
	Callbacks
}

// CutSilence drops the silent stretches of a clip, keeping the spoken
// spans.
func (u Usecase) CutSilence(ctx context.Context, in SilenceInput) (Result, error) {
	if in.Input == "" {
		return Result{}, errors.New("no input")
	}
	if in.OutPath == "" {
		return Result{}, errors.New("no output path")
	}

	in.progress(0.02, "probing input")
	total, err := u.d.Prober.ProbeDuration(ctx, in.Input)
	if err != nil {
		return Result{}, err
	}

	in.progress(0.05, "loading engine")
	s, err := u.d.Engine.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	st := newStager(s)
	defer st.cleanup()

	input, words, err := u.transcribeInput(ctx, s, st, in.Input, in.CacheDir, in.Callbacks)
	if err != nil {
		return Result{}, err
	}

	segs := segments.SplitOnSilence(words, in.Gap, total)
	if len(segs) == 0 {
		return Result{}, ErrNoSegments
	}
	in.progress(0.35, "keeping %d segment(s)", len(segs))

	plan, err := compiler.CompileSegmentCut(compiler.CutRequest{Input: input, Segments: segs})
	if err != nil {
		return Result{}, err
	}
	if err := u.run(ctx, s, st, plan, in.Callbacks, 0.40); err != nil {
		return Result{}, err
	}
	if err := exportOutput(s, plan.Output, in.OutPath); err != nil {
		return Result{}, err
	}
	in.progress(1, "wrote %s", in.OutPath)
	return Result{OutputPath: in.OutPath}, nil
}

type KeywordInput struct {
	Input     string
	StartWord string
	EndWord   string
	CacheDir  string
	OutPath   string
	Callbacks
}

// CutKeywords keeps the spans bounded by spoken start/end keywords.
func (u Usecase) CutKeywords(ctx context.Context, in KeywordInput) (Result, error) {
	if in.Input == "" {
		return Result{}, errors.New("no input")
	}
	if in.OutPath == "" {
		return Result{}, errors.New("no output path")
	}
	if strings.TrimSpace(in.StartWord) == "" || strings.TrimSpace(in.EndWord) == "" {
		return Result{}, errors.New("start and end keywords required")
	}

	in.progress(0.05, "loading engine")
	s, err := u.d.Engine.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	st := newStager(s)
	defer st.cleanup()

	input, words, err := u.transcribeInput(ctx, s, st, in.Input, in.CacheDir, in.Callbacks)
	if err != nil {
		return Result{}, err
	}

	segs := segments.KeywordSpans(words, in.StartWord, in.EndWord)
	if len(segs) == 0 {
		return Result{}, ErrNoSegments
	}
	in.progress(0.35, "keeping %d segment(s)", len(segs))

	plan, err := compiler.CompileSegmentCut(compiler.CutRequest{Input: input, Segments: segs})
	if err != nil {
		return Result{}, err
	}
	if err := u.run(ctx, s, st, plan, in.Callbacks, 0.40); err != nil {
		return Result{}, err
	}
	if err := exportOutput(s, plan.Output, in.OutPath); err != nil {
		return Result{}, err
	}
	in.progress(1, "wrote %s", in.OutPath)
	return Result{OutputPath: in.OutPath}, nil
}

// SegmentsInput asks for the keep list a cut would produce. Keyword mode is
// selected when both needles are set; silence mode otherwise.
type SegmentsInput struct {
	Input     string
	Gap       float64
	StartWord string
	EndWord   string
	CacheDir  string
	Callbacks
}

// ComputeSegments transcribes the input and runs the segment calculator
// without rendering anything. An empty list is a valid answer here, not an
// error: callers are inspecting, not cutting.
func (u Usecase) ComputeSegments(ctx context.Context, in SegmentsInput) ([]timespan.Segment, error) {
	if in.Input == "" {
		return nil, errors.New("no input")
	}
	keyword := strings.TrimSpace(in.StartWord) != "" || strings.TrimSpace(in.EndWord) != ""
	if keyword && (strings.TrimSpace(in.StartWord) == "" || strings.TrimSpace(in.EndWord) == "") {
		return nil, errors.New("start and end keywords required")
	}

	var total float64
	if !keyword {
		in.progress(0.02, "probing input")
		var err error
		total, err = u.d.Prober.ProbeDuration(ctx, in.Input)
		if err != nil {
			return nil, err
		}
	}

	in.progress(0.05, "loading engine")
	s, err := u.d.Engine.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	st := newStager(s)
	defer st.cleanup()

	_, words, err := u.transcribeInput(ctx, s, st, in.Input, in.CacheDir, in.Callbacks)
	if err != nil {
		return nil, err
	}

	if keyword {
		return segments.KeywordSpans(words, in.StartWord, in.EndWord), nil
	}
	return segments.SplitOnSilence(words, in.Gap, total), nil
}

// run places the plan's writes, executes its invocations in order, and
// tracks every intermediate for cleanup. Progress ramps from `from` toward
// 0.95 across the invocation list.
func (u Usecase) run(ctx context.Context, s ports.EngineSession, st *stager, p compiler.Plan, c Callbacks, from float64) error {
	for _, w := range p.Writes {
		if err := st.stageBytes(w.Name, w.Data); err != nil {
			return err
		}
	}
	st.track(p.Scratch...)
	st.track(p.Output)

	for i, inv := range p.Invocations {
		c.progress(from+(0.95-from)*float64(i)/float64(len(p.Invocations)), "%s", inv.Stage)
		if err := s.Exec(ctx, inv.Args, c.OnLog); err != nil {
			return fmt.Errorf("%s: %w", inv.Stage, err)
		}
	}
	c.progress(0.95, "exporting")
	return nil
}

// transcribeInput stages the source, renders its mono 16 kHz audio inside
// the workspace, and runs the transcriber over it.
func (u Usecase) transcribeInput(ctx context.Context, s ports.EngineSession, st *stager, hostPath, cacheDir string, c Callbacks) (string, []types.Word, error) {
	input, err := st.stage(hostPath)
	if err != nil {
		return "", nil, err
	}

	c.progress(0.12, "extracting audio")
	const wavName = "audio.wav"
	st.track(wavName)
	err = s.Exec(ctx, []string{
		"-y",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		wavName,
	}, c.OnLog)
	if err != nil {
		return "", nil, fmt.Errorf("extract audio: %w", err)
	}

	c.progress(0.20, "transcribing")
	wavPath, err := s.OutputPath(wavName)
	if err != nil {
		return "", nil, err
	}
	if cacheDir == "" {
		cacheDir = s.Dir()
		st.track("transcript.json")
	}
	tr, err := u.d.ASR.Transcribe(ctx, wavPath, cacheDir)
	if err != nil {
		return "", nil, err
	}
	return input, types.CollectWords(tr), nil
}

// installFont is best-effort: a failed install degrades to the engine's own
// font discovery and surfaces as a warning, never as a failed render.
func installFont(s ports.EngineSession, c Callbacks, res *Result) string {
	font, err := s.InstallFont()
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
		c.log("warning: " + err.Error())
		return ""
	}
	return font
}

func exportOutput(s ports.EngineSession, name, outPath string) error {
	src, err := s.OutputPath(name)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open rendered output: %w", err)
	}
	defer in.Close()
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return out.Close()
}

func anySceneText(scenes []types.Scene) bool {
	for _, sc := range scenes {
		if strings.TrimSpace(sc.OverlayText) != "" {
			return true
		}
	}
	return false
}

func opsNeedText(ops []types.Operation) bool {
	for _, op := range ops {
		if op.Kind == types.OpTextOverlay || op.Kind == types.OpSubtitles {
			return true
		}
	}
	return false
}
