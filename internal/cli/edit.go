package cli

import (
	"path/filepath"

	"github.com/forPelevin/adcut/internal/pipeline"
	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "edit <input>",
		Short:        "Apply an operation list to a clip",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, _ := cmd.Flags().GetString("ops")
			out, _ := cmd.Flags().GetString("out")

			absIn, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runPipeline(cmd, pipeline.Config{
				Mode:    pipeline.ModeEdits,
				Input:   absIn,
				OpsPath: ops,
				OutPath: out,
			})
		},
	}

	cmd.Flags().String("ops", "", "Operations file (JSON); empty renders a stream copy")
	cmd.Flags().String("out", "", "Output file (default: out/<name>-<timestamp>.mp4)")
	return cmd
}
