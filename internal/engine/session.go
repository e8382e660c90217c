// Package engine manages the media engine as an explicit session: a
// resolved ffmpeg binary plus a private scratch workspace that plans
// address by bare file name. A session that sees an exec failure is
// faulted and never reused; the manager builds a fresh one on the next
// acquire.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const maxStderrTail = 8 * 1024 // tail of stderr kept for diagnostics

var (
	// ErrLoad reports that the engine binary could not be resolved or
	// probed.
	ErrLoad = errors.New("engine load failed")
	// ErrFontLoad reports a failed font install. Never fatal: drawtext
	// falls back to the engine's own font discovery.
	ErrFontLoad = errors.New("font install failed")
	// ErrNotReady reports an operation on a faulted or closed session.
	ErrNotReady = errors.New("engine session not ready")
)

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFaulted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ExecError is a non-zero engine exit, with the argv and the stderr tail
// that explain it.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("engine exited %d: %s", e.ExitCode, tailForError(e.Stderr))
}

func tailForError(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 512 {
		return s
	}
	return "..." + s[len(s)-512:]
}

// Session is one live engine instance. All file names given to its methods
// are relative to the session workspace.
type Session struct {
	bin     string
	version string
	dir     string
	fontSrc string
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	fontName  string
	fontTried bool
}

func newSession(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		fontSrc: opts.FontPath,
		logger:  opts.Logger,
		state:   StateLoading,
	}

	bin, err := resolveEngine(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	s.bin = bin

	out, err := exec.CommandContext(ctx, bin, "-version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: version probe: %v\n%s", ErrLoad, err, bytes.TrimSpace(out))
	}
	if line, _, ok := bytes.Cut(out, []byte("\n")); ok {
		s.version = string(bytes.TrimSpace(line))
	} else {
		s.version = string(bytes.TrimSpace(out))
	}

	dir, err := os.MkdirTemp("", "adcut-session-*")
	if err != nil {
		return nil, fmt.Errorf("%w: workspace: %v", ErrLoad, err)
	}
	s.dir = dir
	s.state = StateReady

	s.logger.Info("engine session ready",
		zap.String("binary", bin),
		zap.String("version", s.version),
		zap.String("workspace", dir),
	)
	return s, nil
}

func resolveEngine(preferred string) (string, error) {
	if preferred != "" {
		p, err := exec.LookPath(preferred)
		if err != nil {
			return "", fmt.Errorf("configured engine %q not found", preferred)
		}
		return p, nil
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", errors.New("no ffmpeg binary found on PATH")
	}
	return p, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Version() string { return s.version }

// Dir exposes the workspace root, mainly for tests and diagnostics.
func (s *Session) Dir() string { return s.dir }

func (s *Session) fault() {
	s.mu.Lock()
	if s.state == StateReady {
		s.state = StateFaulted
	}
	s.mu.Unlock()
}

func (s *Session) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateReady
}

// WriteInput streams r into the workspace under name.
func (s *Session) WriteInput(name string, r io.Reader) error {
	if !s.ready() {
		return ErrNotReady
	}
	path, err := s.workspacePath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write input %s: %w", name, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write input %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write input %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write input %s: %w", name, err)
	}
	return nil
}

// WriteFile is WriteInput for in-memory payloads.
func (s *Session) WriteFile(name string, data []byte) error {
	return s.WriteInput(name, bytes.NewReader(data))
}

// ReadOutput returns the bytes of a workspace file.
func (s *Session) ReadOutput(name string) ([]byte, error) {
	path, err := s.workspacePath(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read output %s: %w", name, err)
	}
	return b, nil
}

// OutputPath resolves a workspace name to an absolute path.
func (s *Session) OutputPath(name string) (string, error) {
	return s.workspacePath(name)
}

// Remove deletes a workspace file. Missing files are not an error.
func (s *Session) Remove(name string) error {
	path, err := s.workspacePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exec runs the engine with args, workspace as working directory. Stderr is
// streamed line by line to onLog and its tail retained; a non-zero exit
// faults the session and returns an *ExecError. Context cancellation kills
// the process and also faults the session.
func (s *Session) Exec(ctx context.Context, args []string, onLog func(string)) error {
	if !s.ready() {
		return ErrNotReady
	}

	full := append([]string{"-hide_banner", "-nostdin"}, args...)
	cmd := exec.CommandContext(ctx, s.bin, full...)
	cmd.Dir = s.dir
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		s.fault()
		return fmt.Errorf("engine start: %w", err)
	}

	s.logger.Debug("engine exec", zap.Strings("args", args))

	tail := &tailBuffer{limit: maxStderrTail}
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanEngineLines)
	for sc.Scan() {
		line := sc.Text()
		tail.WriteLine(line)
		if onLog != nil {
			onLog(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		s.fault()
		if ctx.Err() != nil {
			return fmt.Errorf("engine exec: %w", ctx.Err())
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		execErr := &ExecError{Args: args, ExitCode: code, Stderr: tail.String()}
		s.logger.Warn("engine exec failed",
			zap.Int("exit_code", code),
			zap.String("stderr_tail", tailForError(execErr.Stderr)),
		)
		return execErr
	}
	return nil
}

// InstallFont copies the configured font into the workspace, once. It
// returns the workspace-relative font name, or "" when no font is
// configured or the one attempt failed.
func (s *Session) InstallFont() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fontTried {
		return s.fontName, nil
	}
	s.fontTried = true
	if s.fontSrc == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.fontSrc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	name := "fonts/" + filepath.Base(s.fontSrc)
	path := filepath.Join(s.dir, "fonts", filepath.Base(s.fontSrc))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	s.fontName = name
	return name, nil
}

// Close tears the workspace down. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	dir := s.dir
	s.mu.Unlock()

	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("workspace cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}
}

func (s *Session) workspacePath(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid workspace name %q", name)
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)), nil
}

// scanEngineLines splits on \n and \r so in-place progress updates arrive
// as individual lines instead of one giant blob at exit.
func scanEngineLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps only the last limit bytes written.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) WriteLine(line string) {
	if line == "" {
		return
	}
	t.buf.WriteString(line)
	t.buf.WriteByte('\n')
	if t.buf.Len() > t.limit {
		b := t.buf.Bytes()
		trimmed := make([]byte, t.limit)
		copy(trimmed, b[len(b)-t.limit:])
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
}

func (t *tailBuffer) String() string { return t.buf.String() }
