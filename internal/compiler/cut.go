package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/adcut/internal/domain/timespan"
)

const concatManifest = "concat.txt"

// CutRequest compiles a keep-these-segments cut of one source clip.
// Segments come from the calculators and are already validated spans.
type CutRequest struct {
	Input    string
	Segments []timespan.Segment
}

// CompileSegmentCut extracts each kept segment (re-encoded so cut points
// land on clean frames) and joins them with the engine's concat demuxer.
// The manifest is emitted as a plan write, not an invocation.
func CompileSegmentCut(req CutRequest) (Plan, error) {
	if req.Input == "" {
		return Plan{}, errors.New("no input")
	}
	if len(req.Segments) == 0 {
		return Plan{}, errors.New("no segments to keep")
	}

	var p Plan
	var manifest strings.Builder
	for i, seg := range req.Segments {
		if seg.Duration() <= 0 {
			return Plan{}, fmt.Errorf("segment %d: empty span", i)
		}
		name := fmt.Sprintf("seg-%03d.mp4", i)
		args := []string{
			"-y",
			"-ss", timespan.FormatSeconds(seg.Start),
			"-to", timespan.FormatSeconds(seg.End),
			"-i", req.Input,
		}
		args = append(args, videoEncodeArgs()...)
		args = append(args, audioEncodeArgs()...)
		args = append(args, name)

		p.Invocations = append(p.Invocations, Invocation{
			Stage:  fmt.Sprintf("segment %d/%d", i+1, len(req.Segments)),
			Args:   args,
			Output: name,
		})
		p.Scratch = append(p.Scratch, name)
		fmt.Fprintf(&manifest, "file '%s'\n", name)
	}

	p.Writes = append(p.Writes, Write{Name: concatManifest, Data: []byte(manifest.String())})
	p.Scratch = append(p.Scratch, concatManifest)

	p.Invocations = append(p.Invocations, Invocation{
		Stage:  "concat",
		Args:   []string{"-y", "-f", "concat", "-safe", "0", "-i", concatManifest, "-c", "copy", OutputName},
		Output: OutputName,
	})
	p.Output = OutputName
	return p, nil
}
