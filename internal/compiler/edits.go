package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/filtergraph"
	"github.com/forPelevin/adcut/internal/types"
)

const (
	defaultTextFontSize = 42
	defaultSubsFontSize = 36
	defaultImageScale   = 0.2
	overlayMarginPx     = 24
	defaultFadeSec      = 0.5
)

// EditRequest compiles a flat operation list over one source clip. Input
// and image references must already be workspace names; Duration is the
// probed source duration in seconds.
type EditRequest struct {
	Input    string
	Duration float64
	Ops      []types.Operation
	FontFile string
}

// CompileEdits folds the operations in order into a single filter graph,
// carrying one current video handle and one current audio handle. Trim is
// hoisted out of the graph to the input-seek stage. An empty graph
// serializes to a stream-copy passthrough. The result is always exactly one
// invocation.
func CompileEdits(req EditRequest) (Plan, error) {
	if req.Input == "" {
		return Plan{}, errors.New("no input")
	}

	f := fold{req: req, effDur: req.Duration}
	f.video = f.g.Input(0, filtergraph.Video)
	for i, op := range req.Ops {
		if err := f.apply(op); err != nil {
			return Plan{}, fmt.Errorf("operation %d (%s): %w", i, op.Kind, err)
		}
	}

	args := []string{"-y"}
	if f.trim != nil {
		args = append(args,
			"-ss", timespan.FormatSeconds(f.trim.Start),
			"-to", timespan.FormatSeconds(f.trim.End))
	}
	args = append(args, "-i", req.Input)
	for _, img := range f.images {
		args = append(args, "-i", img)
	}

	if f.g.Empty() {
		args = append(args, "-c", "copy", OutputName)
	} else {
		args = append(args, "-filter_complex", f.g.String())
		args = append(args, "-map", f.video.MapArg())
		if f.audioTouched {
			args = append(args, "-map", f.audio.MapArg())
		} else {
			args = append(args, "-map", "0:a?")
		}
		args = append(args, videoEncodeArgs()...)
		if f.audioTouched {
			args = append(args, audioEncodeArgs()...)
		} else {
			args = append(args, "-c:a", "copy")
		}
		args = append(args, OutputName)
	}

	return Plan{
		Invocations: []Invocation{{Stage: "edit", Args: args, Output: OutputName}},
		Output:      OutputName,
	}, nil
}

// fold is the accumulator state while walking the operation list.
type fold struct {
	req EditRequest
	g   filtergraph.Graph

	video        filtergraph.Stream
	audio        filtergraph.Stream
	audioTouched bool

	trim   *timespan.Range
	images []string
	// effDur tracks the output duration as trim and speed fold in, so a
	// later fade-out lands at the real end.
	effDur float64
}

func (f *fold) ensureAudio() filtergraph.Stream {
	if !f.audioTouched {
		f.audio = f.g.Input(0, filtergraph.Audio)
		f.audioTouched = true
	}
	return f.audio
}

func (f *fold) apply(op types.Operation) error {
	switch op.Kind {
	case types.OpTrim:
		if op.Range == nil {
			return errors.New("missing range")
		}
		if f.trim != nil {
			return errors.New("trim already applied")
		}
		r := *op.Range
		f.trim = &r
		f.effDur = r.Duration()

	case types.OpVisualFilter:
		expr, err := visualFilterExpr(op.Name)
		if err != nil {
			return err
		}
		f.video = f.g.Chain(f.video, expr)

	case types.OpColorAdjust:
		contrast := op.Contrast
		if contrast == 0 {
			contrast = 1
		}
		saturation := op.Saturation
		if saturation == 0 {
			saturation = 1
		}
		f.video = f.g.Chain(f.video, filtergraph.EQ(op.Brightness, contrast, saturation))

	case types.OpSpeed:
		if op.Factor <= 0 {
			return fmt.Errorf("factor %v is not positive", op.Factor)
		}
		f.video = f.g.Chain(f.video, filtergraph.SetPTS(op.Factor))
		f.audio = f.g.Chain(f.ensureAudio(), filtergraph.AtempoChain(op.Factor))
		f.effDur /= op.Factor

	case types.OpTextOverlay:
		if op.Text == "" {
			return errors.New("empty text")
		}
		x, y := filtergraph.TextAnchor(op.Position)
		size := op.FontSize
		if size <= 0 {
			size = defaultTextFontSize
		}
		f.video = f.g.Chain(f.video, filtergraph.DrawText(filtergraph.DrawTextOpts{
			Text:     op.Text,
			FontFile: f.req.FontFile,
			FontSize: size,
			X:        x,
			Y:        y,
			Window:   op.Range,
		}))

	case types.OpSubtitles:
		if op.Text == "" {
			return errors.New("empty text")
		}
		x, y := filtergraph.TextAnchor(op.Position)
		f.video = f.g.Chain(f.video, filtergraph.DrawText(filtergraph.DrawTextOpts{
			Text:     op.Text,
			FontFile: f.req.FontFile,
			FontSize: defaultSubsFontSize,
			X:        x,
			Y:        y,
		}))

	case types.OpImageOverlay:
		if op.Image == "" {
			return errors.New("image not staged")
		}
		scale := op.Scale
		if scale <= 0 {
			scale = defaultImageScale
		}
		opacity := op.Opacity
		if opacity <= 0 || opacity > 1 {
			opacity = 1
		}
		f.images = append(f.images, op.Image)
		img := f.g.Input(len(f.images), filtergraph.Video)
		img = f.g.Chain(img, filtergraph.ScaleFactor(scale)+","+filtergraph.Opacity(opacity))
		x, y := filtergraph.OverlayAnchor(op.Position, overlayMarginPx)
		out := f.g.Add(filtergraph.Overlay(x, y), []filtergraph.Stream{f.video, img}, filtergraph.Video)
		f.video = out[0]

	case types.OpFade:
		if !op.FadeIn && !op.FadeOut {
			return errors.New("fade enables neither in nor out")
		}
		d := op.Duration
		if d <= 0 {
			d = defaultFadeSec
		}
		if op.FadeIn {
			f.video = f.g.Chain(f.video, filtergraph.FadeIn(d))
		}
		if op.FadeOut {
			start := f.effDur - d
			if start < 0 {
				start = 0
			}
			f.video = f.g.Chain(f.video, filtergraph.FadeOut(start, d))
		}

	case types.OpCrop:
		rw, rh, err := parseRatio(op.Ratio)
		if err != nil {
			return err
		}
		f.video = f.g.Chain(f.video, filtergraph.CropAspect(rw, rh))

	case types.OpMute:
		f.audio = f.g.Chain(f.ensureAudio(), filtergraph.Mute())

	case types.OpVolume:
		if op.Level < 0 {
			return fmt.Errorf("level %v is negative", op.Level)
		}
		f.audio = f.g.Chain(f.ensureAudio(), filtergraph.Volume(op.Level))

	default:
		return errors.New("unknown kind")
	}
	return nil
}

func visualFilterExpr(name string) (string, error) {
	switch strings.ToLower(name) {
	case "grayscale":
		return filtergraph.Grayscale(), nil
	case "sepia":
		return filtergraph.Sepia(), nil
	case "negate":
		return filtergraph.Negate(), nil
	case "vignette":
		return filtergraph.Vignette(), nil
	default:
		return "", fmt.Errorf("unknown visual filter %q", name)
	}
}

func parseRatio(s string) (rw, rh float64, err error) {
	lhs, rhs, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("ratio %q is not W:H", s)
	}
	rw, err = strconv.ParseFloat(lhs, 64)
	if err != nil || rw <= 0 {
		return 0, 0, fmt.Errorf("ratio %q is not W:H", s)
	}
	rh, err = strconv.ParseFloat(rhs, 64)
	if err != nil || rh <= 0 {
		return 0, 0, fmt.Errorf("ratio %q is not W:H", s)
	}
	return rw, rh, nil
}
