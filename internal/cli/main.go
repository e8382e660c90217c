package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "adcut",
		Short:        "Compile and render short-form ad edits with ffmpeg",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().Bool("verbose", false, "Stream engine log lines to stderr")

	root.AddCommand(
		newRenderCmd(),
		newEditCmd(),
		newCutCmd(),
		newProbeCmd(),
		newServeCmd(),
		newWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
