package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "lyricmotion %s\n", version)
		fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					fmt.Fprintf(out, "  commit: %s\n", s.Value)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
