package ports

import (
	"context"
	"io"

	"github.com/forPelevin/adcut/internal/types"
)

// EngineSession is one live engine workspace. All names are relative to the
// session's private directory.
type EngineSession interface {
	WriteInput(name string, r io.Reader) error
	WriteFile(name string, data []byte) error
	Exec(ctx context.Context, args []string, onLog func(string)) error
	OutputPath(name string) (string, error)
	Remove(name string) error
	InstallFont() (string, error)
	Dir() string
}

// Engine hands out ready sessions, replacing a faulted one with a fresh
// session on the next call.
type Engine interface {
	Acquire(ctx context.Context) (EngineSession, error)
}

// MediaProber reports container-level facts about source media on disk.
type MediaProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Transcriber produces a word-level transcript for a mono 16 kHz wav.
// cacheDir is scratch space the implementation may use for intermediate
// artifacts.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}
