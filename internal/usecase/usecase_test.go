package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/engine"
	"github.com/forPelevin/adcut/internal/ports"
	"github.com/forPelevin/adcut/internal/types"
)

type fakeSession struct {
	dir     string
	execs   [][]string
	execFn  func(args []string, onLog func(string)) error
	fontErr error
	removed []string
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()
	return &fakeSession{dir: t.TempDir()}
}

func (f *fakeSession) WriteInput(name string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return f.WriteFile(name, b)
}

func (f *fakeSession) WriteFile(name string, data []byte) error {
	path := filepath.Join(f.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *fakeSession) Exec(_ context.Context, args []string, onLog func(string)) error {
	f.execs = append(f.execs, args)
	if f.execFn != nil {
		return f.execFn(args, onLog)
	}
	// every compiled invocation names its product last
	return f.WriteFile(args[len(args)-1], []byte("rendered"))
}

func (f *fakeSession) OutputPath(name string) (string, error) {
	return filepath.Join(f.dir, name), nil
}

func (f *fakeSession) Remove(name string) error {
	f.removed = append(f.removed, name)
	if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *fakeSession) InstallFont() (string, error) {
	if f.fontErr != nil {
		return "", f.fontErr
	}
	return "fonts/Test.ttf", nil
}

func (f *fakeSession) Dir() string { return f.dir }

func (f *fakeSession) joined(i int) string { return strings.Join(f.execs[i], " ") }

func (f *fakeSession) assertWorkspaceSwept(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, e := range entries {
		if !e.IsDir() {
			left = append(left, e.Name())
		}
	}
	if len(left) != 0 {
		t.Fatalf("workspace not swept, leftover files: %v", left)
	}
}

type fakeEngine struct {
	s        *fakeSession
	err      error
	acquires int
}

func (f *fakeEngine) Acquire(context.Context) (ports.EngineSession, error) {
	f.acquires++
	if f.err != nil {
		return nil, f.err
	}
	return f.s, nil
}

type fakeProber struct {
	dur float64
	err error
}

func (p fakeProber) ProbeDuration(context.Context, string) (float64, error) {
	return p.dur, p.err
}

type fakeASR struct {
	tr  types.Transcript
	err error
}

func (a fakeASR) Transcribe(context.Context, string, string) (types.Transcript, error) {
	return a.tr, a.err
}

type progressLog struct{ events []types.Progress }

func (p *progressLog) cb() func(types.Progress) {
	return func(e types.Progress) { p.events = append(p.events, e) }
}

func (p *progressLog) assertMonotonicToDone(t *testing.T) {
	t.Helper()
	if len(p.events) == 0 {
		t.Fatal("no progress events")
	}
	prev := -1.0
	for _, e := range p.events {
		if e.Fraction < prev {
			t.Fatalf("progress went backwards: %v", p.events)
		}
		prev = e.Fraction
	}
	if last := p.events[len(p.events)-1].Fraction; last != 1 {
		t.Fatalf("final fraction = %v, want 1", last)
	}
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("source-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustRange(t *testing.T, s string) timespan.Range {
	t.Helper()
	r, err := timespan.ParseRange(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func word(text string, start, end float64) types.Word {
	return types.Word{Start: start, End: end, Word: text}
}

func transcriptOf(words ...types.Word) types.Transcript {
	return types.Transcript{Segments: []types.Segment{{Words: words}}}
}

func TestRenderPlan_MultiScene(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "clip.mp4")
	audio := writeSource(t, "voice.mp3")
	fs := newFakeSession(t)
	eng := &fakeEngine{s: fs}
	u := New(Deps{Engine: eng})

	var prog progressLog
	out := filepath.Join(t.TempDir(), "nested", "final.mp4")
	res, err := u.RenderPlan(context.Background(), PlanInput{
		Plan: types.EditPlan{
			Scenes: []types.Scene{
				{Range: mustRange(t, "0s-5s"), Source: src, Directive: "zoom"},
				{Range: mustRange(t, "5s-9s"), Source: src, OverlayText: "Big sale"},
			},
			AudioSource: audio,
		},
		OutPath:   out,
		Callbacks: Callbacks{OnProgress: prog.cb()},
	})
	if err != nil {
		t.Fatalf("RenderPlan: %v", err)
	}
	if res.OutputPath != out {
		t.Fatalf("output path = %q", res.OutputPath)
	}
	b, err := os.ReadFile(out)
	if err != nil || string(b) != "rendered" {
		t.Fatalf("exported artifact = %q, %v", b, err)
	}

	// scene 1, scene 2, crossfade, mux
	if len(fs.execs) != 4 {
		t.Fatalf("exec count = %d, want 4", len(fs.execs))
	}
	if !strings.Contains(fs.joined(0), "src-000.mp4") {
		t.Fatalf("scene 1 did not use the staged source: %v", fs.execs[0])
	}
	if !strings.Contains(fs.joined(1), "drawtext") || !strings.Contains(fs.joined(1), "fontfile=fonts/Test.ttf") {
		t.Fatalf("scene 2 missing text overlay with installed font: %v", fs.execs[1])
	}
	if !strings.Contains(fs.joined(3), "src-001.mp3") {
		t.Fatalf("mux did not use the staged audio: %v", fs.execs[3])
	}

	fs.assertWorkspaceSwept(t)
	prog.assertMonotonicToDone(t)
}

func TestRenderPlan_AcquireErrorPassesThrough(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("load failed")
	u := New(Deps{Engine: &fakeEngine{err: sentinel}})

	_, err := u.RenderPlan(context.Background(), PlanInput{
		Plan: types.EditPlan{Scenes: []types.Scene{
			{Range: mustRange(t, "0s-5s"), Source: "x.mp4"},
		}},
		OutPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the acquire error unwrapped", err)
	}
}

func TestRenderPlan_MissingSourceFails(t *testing.T) {
	t.Parallel()

	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}})

	_, err := u.RenderPlan(context.Background(), PlanInput{
		Plan: types.EditPlan{Scenes: []types.Scene{
			{Range: mustRange(t, "0s-5s"), Source: filepath.Join(t.TempDir(), "gone.mp4")},
		}},
		OutPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if err == nil || !strings.Contains(err.Error(), "open source") {
		t.Fatalf("err = %v, want open source failure", err)
	}
	if len(fs.execs) != 0 {
		t.Fatalf("engine ran despite staging failure: %v", fs.execs)
	}
}

func TestRenderEdits_StagesImagesAndFont(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "clip.mp4")
	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}})

	ops := []types.Operation{
		{Kind: types.OpTextOverlay, Text: "Hi"},
		{Kind: types.OpImageOverlay, ImageData: []byte{0x89, 'P', 'N', 'G'}},
	}
	out := filepath.Join(t.TempDir(), "out.mp4")
	_, err := u.RenderEdits(context.Background(), EditInput{Input: src, Ops: ops, OutPath: out})
	if err != nil {
		t.Fatalf("RenderEdits: %v", err)
	}
	if len(fs.execs) != 1 {
		t.Fatalf("exec count = %d, want 1", len(fs.execs))
	}
	joined := fs.joined(0)
	for _, want := range []string{"drawtext", "fontfile=fonts/Test.ttf", "src-000.mp4", "img-000.png"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("edit args missing %q: %s", want, joined)
		}
	}
	if ops[1].ImageData == nil || ops[1].Image != "" {
		t.Fatal("caller's operation slice was mutated")
	}
	fs.assertWorkspaceSwept(t)
}

func TestRenderEdits_FontFailureIsWarningOnly(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "clip.mp4")
	fs := newFakeSession(t)
	fs.fontErr = fmt.Errorf("%w: no such file", engine.ErrFontLoad)
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}})

	var logs []string
	res, err := u.RenderEdits(context.Background(), EditInput{
		Input:     src,
		Ops:       []types.Operation{{Kind: types.OpTextOverlay, Text: "Hi"}},
		OutPath:   filepath.Join(t.TempDir(), "out.mp4"),
		Callbacks: Callbacks{OnLog: func(l string) { logs = append(logs, l) }},
	})
	if err != nil {
		t.Fatalf("render should survive a font failure, got %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "font install failed") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if strings.Contains(fs.joined(0), "fontfile=") {
		t.Fatalf("drawtext still references a font: %s", fs.joined(0))
	}
	if len(logs) == 0 || !strings.HasPrefix(logs[0], "warning:") {
		t.Fatalf("logs = %v, want a warning line", logs)
	}
}

func TestRenderEdits_ExecFailureCleansUp(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "clip.mp4")
	fs := newFakeSession(t)
	fs.execFn = func(args []string, _ func(string)) error {
		return &engine.ExecError{Args: args, ExitCode: 1, Stderr: "boom"}
	}
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}})

	out := filepath.Join(t.TempDir(), "out.mp4")
	_, err := u.RenderEdits(context.Background(), EditInput{
		Input:   src,
		Ops:     []types.Operation{{Kind: types.OpMute}},
		OutPath: out,
	})
	var execErr *engine.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *engine.ExecError", err)
	}
	if _, statErr := os.Stat(out); statErr == nil {
		t.Fatal("artifact written despite failed render")
	}
	fs.assertWorkspaceSwept(t)
}

func TestCutSilence_SplitsAndConcats(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "talk.mp4")
	fs := newFakeSession(t)
	asr := fakeASR{tr: transcriptOf(
		word("hello", 0.5, 1.0),
		word("there", 1.2, 1.8),
		word("next", 4.0, 4.6),
		word("part", 4.8, 5.1),
	)}
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}, ASR: asr})

	var prog progressLog
	out := filepath.Join(t.TempDir(), "out.mp4")
	res, err := u.CutSilence(context.Background(), SilenceInput{
		Input:     src,
		Gap:       1.0,
		OutPath:   out,
		Callbacks: Callbacks{OnProgress: prog.cb()},
	})
	if err != nil {
		t.Fatalf("CutSilence: %v", err)
	}
	if res.OutputPath != out {
		t.Fatalf("output path = %q", res.OutputPath)
	}

	// audio extraction, two kept segments, concat
	if len(fs.execs) != 4 {
		t.Fatalf("exec count = %d, want 4: %v", len(fs.execs), fs.execs)
	}
	if !strings.Contains(fs.joined(0), "-ar 16000") {
		t.Fatalf("first exec is not the audio extraction: %v", fs.execs[0])
	}
	if !strings.Contains(fs.joined(3), "-f concat") {
		t.Fatalf("last exec is not the concat join: %v", fs.execs[3])
	}

	removed := strings.Join(fs.removed, " ")
	if !strings.Contains(removed, "concat.txt") || !strings.Contains(removed, "audio.wav") {
		t.Fatalf("cleanup missed intermediates: %v", fs.removed)
	}
	fs.assertWorkspaceSwept(t)
	prog.assertMonotonicToDone(t)
}

func TestCutSilence_EmptyTranscriptKeepsWholeClip(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "talk.mp4")
	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}, ASR: fakeASR{}})

	_, err := u.CutSilence(context.Background(), SilenceInput{
		Input:   src,
		OutPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if err != nil {
		t.Fatalf("CutSilence: %v", err)
	}
	// audio extraction, one whole-clip segment, concat
	if len(fs.execs) != 3 {
		t.Fatalf("exec count = %d, want 3", len(fs.execs))
	}
	if !strings.Contains(fs.joined(1), "-ss 0.000 -to 10.000") {
		t.Fatalf("fallback segment args = %v", fs.execs[1])
	}
}

func TestCutSilence_NoSegments(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "talk.mp4")
	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 0.05}, ASR: fakeASR{}})

	_, err := u.CutSilence(context.Background(), SilenceInput{
		Input:   src,
		OutPath: filepath.Join(t.TempDir(), "out.mp4"),
	})
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
	// only the audio extraction ran; no segment renders
	if len(fs.execs) != 1 {
		t.Fatalf("exec count = %d, want 1", len(fs.execs))
	}
	fs.assertWorkspaceSwept(t)
}

func TestCutKeywords(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "take.mp4")
	fs := newFakeSession(t)
	asr := fakeASR{tr: transcriptOf(
		word("action", 1.0, 1.4),
		word("line", 2.0, 2.5),
		word("cut", 5.0, 5.5),
	)}
	u := New(Deps{Engine: &fakeEngine{s: fs}, ASR: asr})

	out := filepath.Join(t.TempDir(), "out.mp4")
	_, err := u.CutKeywords(context.Background(), KeywordInput{
		Input:     src,
		StartWord: "action",
		EndWord:   "cut",
		OutPath:   out,
	})
	if err != nil {
		t.Fatalf("CutKeywords: %v", err)
	}
	// audio extraction, one span, concat
	if len(fs.execs) != 3 {
		t.Fatalf("exec count = %d, want 3", len(fs.execs))
	}
	if !strings.Contains(fs.joined(1), "-ss 1.000 -to 5.500") {
		t.Fatalf("span args = %v", fs.execs[1])
	}
}

func TestCutKeywords_NoMatchIsNoSegments(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "take.mp4")
	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}, ASR: fakeASR{tr: transcriptOf(word("hello", 1, 2))}})

	_, err := u.CutKeywords(context.Background(), KeywordInput{
		Input:     src,
		StartWord: "action",
		EndWord:   "cut",
		OutPath:   filepath.Join(t.TempDir(), "out.mp4"),
	})
	if !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
}

func TestCutKeywords_EmptyNeedleFailsBeforeEngine(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{s: newFakeSession(t)}
	u := New(Deps{Engine: eng})

	_, err := u.CutKeywords(context.Background(), KeywordInput{
		Input:     writeSource(t, "take.mp4"),
		StartWord: "  ",
		EndWord:   "cut",
		OutPath:   filepath.Join(t.TempDir(), "out.mp4"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if eng.acquires != 0 {
		t.Fatalf("engine acquired %d times before validation", eng.acquires)
	}
}

func TestComputeSegments_Silence(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "talk.mp4")
	fs := newFakeSession(t)
	asr := fakeASR{tr: transcriptOf(
		word("hello", 0.5, 1.0),
		word("next", 4.0, 4.6),
	)}
	u := New(Deps{Engine: &fakeEngine{s: fs}, Prober: fakeProber{dur: 10}, ASR: asr})

	segs, err := u.ComputeSegments(context.Background(), SegmentsInput{Input: src, Gap: 1.0})
	if err != nil {
		t.Fatalf("ComputeSegments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("segments = %v, want 2", segs)
	}
	// only the audio extraction touches the engine; nothing is rendered
	if len(fs.execs) != 1 {
		t.Fatalf("exec count = %d, want 1: %v", len(fs.execs), fs.execs)
	}
	fs.assertWorkspaceSwept(t)
}

func TestComputeSegments_Keywords(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "take.mp4")
	fs := newFakeSession(t)
	asr := fakeASR{tr: transcriptOf(
		word("action", 1.0, 1.4),
		word("cut", 5.0, 5.5),
	)}
	u := New(Deps{Engine: &fakeEngine{s: fs}, ASR: asr})

	segs, err := u.ComputeSegments(context.Background(), SegmentsInput{
		Input:     src,
		StartWord: "action",
		EndWord:   "cut",
	})
	if err != nil {
		t.Fatalf("ComputeSegments: %v", err)
	}
	if len(segs) != 1 || segs[0].Start != 1.0 || segs[0].End != 5.5 {
		t.Fatalf("segments = %v", segs)
	}
}

func TestComputeSegments_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	src := writeSource(t, "take.mp4")
	fs := newFakeSession(t)
	u := New(Deps{Engine: &fakeEngine{s: fs}, ASR: fakeASR{tr: transcriptOf(word("hello", 1, 2))}})

	segs, err := u.ComputeSegments(context.Background(), SegmentsInput{
		Input:     src,
		StartWord: "action",
		EndWord:   "cut",
	})
	if err != nil {
		t.Fatalf("ComputeSegments: %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("segments = %v, want none", segs)
	}
}
