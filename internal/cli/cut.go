package cli

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/forPelevin/adcut/internal/domain/timespan"
	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/spf13/cobra"
)

func newCutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cut <input>",
		Short:        "Cut a clip on silence, or between spoken keywords",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			gap, _ := cmd.Flags().GetFloat64("gap")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			out, _ := cmd.Flags().GetString("out")
			jsonOut, _ := cmd.Flags().GetBool("json")

			absIn, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			cfg := pipeline.Config{
				Mode:    pipeline.ModeSilence,
				Input:   absIn,
				Gap:     gap,
				OutPath: out,
			}
			switch {
			case start != "" && end != "":
				cfg.Mode = pipeline.ModeKeywords
				cfg.StartWord = start
				cfg.EndWord = end
			case start != "" || end != "":
				return errors.New("--start and --end must be given together")
			}
			if jsonOut {
				return printSegments(cmd, cfg)
			}
			return runPipeline(cmd, cfg)
		},
	}

	cmd.Flags().Float64("gap", 0, "Silence threshold in seconds (default 1.0)")
	cmd.Flags().String("start", "", "Keyword that opens a kept span")
	cmd.Flags().String("end", "", "Keyword that closes a kept span")
	cmd.Flags().String("out", "", "Output file (default: out/<name>-<timestamp>.mp4)")
	cmd.Flags().Bool("json", false, "Print the keep segments as JSON instead of rendering")
	return cmd
}

// printSegments runs only the transcription half of a cut and writes the
// keep list to stdout.
func printSegments(cmd *cobra.Command, cfg pipeline.Config) error {
	applyEnv(&cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
	defer cancel()

	segs, err := pipeline.Segments(ctx, cfg)
	if err != nil {
		return err
	}
	if segs == nil {
		segs = []timespan.Segment{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(segs)
}
