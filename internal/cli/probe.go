package cli

import (
	"fmt"

	"github.com/forPelevin/adcut/internal/ports/adapters/ffprobe"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "probe <input>",
		Short:        "Print the duration of a clip in seconds",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ffprobe.New(getenvDefault("ADCUT_FFPROBE", "ffprobe"))
			dur, err := p.ProbeDuration(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", dur)
			return nil
		},
	}
}
