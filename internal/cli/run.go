package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/forPelevin/adcut/internal/types"
	"github.com/spf13/cobra"
)

// runPipeline fills the environment-derived settings, wires terminal
// feedback, and executes one render.
func runPipeline(cmd *cobra.Command, cfg pipeline.Config) error {
	applyEnv(&cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
	defer cancel()

	out := cmd.OutOrStdout()
	cfg.Logf = func(f string, a ...any) { fmt.Fprintf(out, f+"\n", a...) }
	cfg.OnProgress = func(p types.Progress) {
		fmt.Fprintf(out, "[%3.0f%%] %s\n", p.Fraction*100, p.Message)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		errOut := cmd.ErrOrStderr()
		cfg.OnLog = func(line string) { fmt.Fprintln(errOut, line) }
	}

	artifact, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, artifact)
	return nil
}

func applyEnv(cfg *pipeline.Config) {
	cfg.FFmpegPath = getenvDefault("ADCUT_FFMPEG", "ffmpeg")
	cfg.FFprobePath = getenvDefault("ADCUT_FFPROBE", "ffprobe")
	cfg.FontPath = os.Getenv("ADCUT_FONT")
	cfg.WhisperBin = getenvDefault("ADCUT_WHISPER_BIN", ".cache/bin/whisper.cpp")
	cfg.WhisperModel = getenvDefault("ADCUT_WHISPER_MODEL", ".cache/models/ggml-base.bin")
	cfg.CacheDir = getenvDefault("ADCUT_CACHE_DIR", ".cache")
	cfg.OutDir = os.Getenv("ADCUT_OUT_DIR")
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
