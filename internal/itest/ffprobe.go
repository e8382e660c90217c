//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// probeDurationSeconds reads the container duration of a rendered file,
// honoring the same ADCUT_FFPROBE override the product code uses.
func probeDurationSeconds(path string) (float64, error) {
	bin := os.Getenv("ADCUT_FFPROBE")
	if bin == "" {
		bin = "ffprobe"
	}
	out, err := exec.Command(bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q is not a duration: %w", strings.TrimSpace(string(out)), err)
	}
	return sec, nil
}
