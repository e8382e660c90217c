package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/filtergraph"
	"github.com/forPelevin/adcut/internal/types"
)

const (
	// DefaultTransition is the crossfade length between remix scenes.
	DefaultTransition = 0.5

	sceneFontSize = 56
)

// SceneRequest compiles a multi-scene remix. Scene sources and AudioSource
// must already be workspace names. FontFile is the installed workspace font
// ("" lets the engine pick one).
type SceneRequest struct {
	Plan       types.EditPlan
	Transition float64
	FontFile   string
}

// CompileScenes builds the remix plan: one sub-clip extraction per scene
// (input-seek, audio stripped, directive and overlay filters, canvas
// normalization), a crossfade join when there is more than one scene, and a
// final mux that reattaches the primary audio once, globally.
func CompileScenes(req SceneRequest) (Plan, error) {
	scenes := req.Plan.Scenes
	if len(scenes) == 0 {
		return Plan{}, errors.New("plan has no scenes")
	}
	td := req.Transition
	if td <= 0 {
		td = DefaultTransition
	}

	var p Plan
	durations := make([]float64, len(scenes))
	sceneFiles := make([]string, len(scenes))

	for i, sc := range scenes {
		if sc.Source == "" {
			return Plan{}, fmt.Errorf("scene %d: no source", i)
		}
		dur := sc.Range.Duration()
		if dur <= 0 {
			return Plan{}, fmt.Errorf("scene %d: empty range", i)
		}

		var g filtergraph.Graph
		v := g.Input(0, filtergraph.Video)
		v, effDur := applyDirective(&g, v, sc.Directive, dur)
		v = g.Chain(v, filtergraph.CanvasFit(canvasW, canvasH, canvasFPS))
		if sc.OverlayText != "" {
			x, y := filtergraph.TextAnchor("center")
			v = g.Chain(v, filtergraph.DrawText(filtergraph.DrawTextOpts{
				Text:     sc.OverlayText,
				FontFile: req.FontFile,
				FontSize: sceneFontSize,
				X:        x,
				Y:        y,
			}))
		}

		name := fmt.Sprintf("scene-%03d.mp4", i)
		args := []string{
			"-y",
			"-ss", timespan.FormatSeconds(sc.Range.Start),
			"-to", timespan.FormatSeconds(sc.Range.End),
			"-i", sc.Source,
			"-an",
			"-filter_complex", g.String(),
			"-map", v.MapArg(),
		}
		args = append(args, videoEncodeArgs()...)
		args = append(args, name)

		p.Invocations = append(p.Invocations, Invocation{
			Stage:  fmt.Sprintf("scene %d/%d", i+1, len(scenes)),
			Args:   args,
			Output: name,
		})
		p.Scratch = append(p.Scratch, name)
		durations[i] = effDur
		sceneFiles[i] = name
	}

	videoFile := sceneFiles[0]
	if len(scenes) > 1 {
		videoFile = "joined.mp4"
		var g filtergraph.Graph
		cur := g.Input(0, filtergraph.Video)
		for i := 1; i < len(scenes); i++ {
			next := g.Input(i, filtergraph.Video)
			offset := CrossfadeOffset(durations[:i], i, td)
			out := g.Add(filtergraph.XFade("fade", td, offset), []filtergraph.Stream{cur, next}, filtergraph.Video)
			cur = out[0]
		}

		args := []string{"-y"}
		for _, f := range sceneFiles {
			args = append(args, "-i", f)
		}
		args = append(args, "-filter_complex", g.String(), "-map", cur.MapArg())
		args = append(args, videoEncodeArgs()...)
		args = append(args, videoFile)

		p.Invocations = append(p.Invocations, Invocation{
			Stage:  "crossfade join",
			Args:   args,
			Output: videoFile,
		})
		p.Scratch = append(p.Scratch, videoFile)
	}

	mux := []string{"-y", "-i", videoFile}
	if req.Plan.AudioSource != "" {
		mux = append(mux, "-i", req.Plan.AudioSource, "-map", "0:v", "-map", "1:a", "-c:v", "copy")
		mux = append(mux, audioEncodeArgs()...)
		mux = append(mux, "-shortest")
	} else {
		mux = append(mux, "-c", "copy")
	}
	mux = append(mux, OutputName)

	p.Invocations = append(p.Invocations, Invocation{Stage: "mux", Args: mux, Output: OutputName})
	p.Output = OutputName
	return p, nil
}

// CrossfadeOffset computes where transition i starts on the joined
// timeline: the summed duration of every clip before it, minus the i
// transitions already overlapped.
func CrossfadeOffset(durationsBefore []float64, i int, td float64) float64 {
	var sum float64
	for _, d := range durationsBefore {
		sum += d
	}
	return sum - float64(i)*td
}

// applyDirective turns a free-form directive keyword into a motion or look
// filter. Unknown directives pass the handle through untouched; the planner
// writes prose and the compiler honors what it recognizes. Returns the
// scene's effective output duration (slow motion stretches it).
func applyDirective(g *filtergraph.Graph, v filtergraph.Stream, directive string, dur float64) (filtergraph.Stream, float64) {
	switch normalizeDirective(directive) {
	case "zoom", "zoomin":
		return g.Chain(v, filtergraph.ZoomIn(dur)), dur
	case "zoomout":
		return g.Chain(v, filtergraph.ZoomOut(dur)), dur
	case "panleft":
		return g.Chain(v, filtergraph.PanLeft(dur)), dur
	case "panright":
		return g.Chain(v, filtergraph.PanRight(dur)), dur
	case "bw", "grayscale":
		return g.Chain(v, filtergraph.Grayscale()), dur
	case "slow", "slowmo":
		return g.Chain(v, filtergraph.SetPTS(0.5)), dur * 2
	default:
		return v, dur
	}
}

func normalizeDirective(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
