// Package ffprobe resolves media durations through the ffprobe CLI. It is
// the one read-only probe the pipeline needs; every mutation of media goes
// through an engine session instead.
package ffprobe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Adapter shells out to ffprobe. An empty path falls back to PATH lookup.
type Adapter struct {
	bin string
}

func New(ffprobePath string) *Adapter {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{bin: ffprobePath}
}

// ProbeDuration returns the container duration of path in seconds.
func (a *Adapter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, a.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, out)
	}
	text := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe reported %q, not a duration", text)
	}
	return sec, nil
}
