// Package whispercpp shells out to the whisper.cpp CLI for speech
// recognition. The adapter owns the sidecar contract: whisper.cpp writes
// a JSON file under the run cache, which unmarshals straight into the
// transcript types.
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/adcut/internal/types"
)

// Adapter runs a whisper.cpp binary over a prepared mono 16 kHz wav.
type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

// Transcribe runs the model over wavPath and parses the JSON sidecar left
// under cacheDir. The sidecar stays on disk so reruns against the same
// cache can inspect what the recognizer heard.
func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	sidecar := filepath.Join(cacheDir, "transcript")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", sidecar,
		"-owts",
	}
	out, err := exec.CommandContext(ctx, a.bin, args...).CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp: %w\n%s", err, out)
	}

	raw, err := os.ReadFile(sidecar + ".json")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	var tr types.Transcript
	if err := json.Unmarshal(raw, &tr); err != nil {
		return types.Transcript{}, fmt.Errorf("parse transcript: %w", err)
	}
	tidy(&tr)
	return tr, nil
}

// tidy strips the leading spaces whisper.cpp keeps on every token.
func tidy(tr *types.Transcript) {
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
}
