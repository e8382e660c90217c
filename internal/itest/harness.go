//go:build integration

package itest

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const cliTimeout = 60 * time.Second

// cliResult is the exit code and combined output of one CLI invocation.
type cliResult struct {
	code int
	out  string
}

// repoRoot walks up from the test working directory to the module root.
func repoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("no go.mod above the test working directory")
		}
		dir = parent
	}
}

// runCLI executes the binary through go run so tests always exercise the
// current tree. extraEnv entries win over the inherited environment.
func runCLI(t *testing.T, root string, args []string, extraEnv map[string]string) cliResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	goArgs := append([]string{"run", "./cmd/adcut"}, args...)
	cmd := exec.CommandContext(ctx, "go", goArgs...)
	cmd.Dir = root
	// Later entries win on duplicate keys, so plain append is enough.
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "TERM=dumb")
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("go %s timed out after %s", strings.Join(goArgs, " "), cliTimeout)
	}
	if err == nil {
		return cliResult{out: string(out)}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("go %s: %v\noutput:\n%s", strings.Join(goArgs, " "), err, out)
	}
	return cliResult{code: exitErr.ExitCode(), out: string(out)}
}

func staticArgs(args ...string) func(*testing.T, string) []string {
	return func(*testing.T, string) []string { return args }
}

// buildFixtureClip renders a short black clip with a sine-tone audio track.
// Every e2e test generates its media this way instead of committing binaries.
func buildFixtureClip(t *testing.T, path string, seconds float64) {
	t.Helper()

	d := strconv.FormatFloat(seconds, 'f', -1, 64)
	out, err := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "color=c=black:s=640x360:d="+d,
		"-f", "lavfi",
		"-i", "sine=frequency=440:duration="+d,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		path,
	).CombinedOutput()
	if err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, out)
	}
}

// writeJunkFile drops a file that stats fine but is not decodable media.
func writeJunkFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("this is not media"), 0o644); err != nil {
		t.Fatalf("write junk fixture: %v", err)
	}
	return path
}
