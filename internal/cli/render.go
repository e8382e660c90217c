package cli

import (
	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "render <plan.json>",
		Short:        "Render a multi-scene remix plan",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			transition, _ := cmd.Flags().GetFloat64("transition")
			return runPipeline(cmd, pipeline.Config{
				Mode:       pipeline.ModePlan,
				PlanPath:   args[0],
				OutPath:    out,
				Transition: transition,
			})
		},
	}

	cmd.Flags().String("out", "", "Output file (default: out/<name>-<timestamp>.mp4)")

	// Hidden tuning flag (internal)
	cmd.Flags().Float64("transition", 0, "Crossfade seconds between scenes")
	_ = cmd.Flags().MarkHidden("transition")

	return cmd
}
