package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricmotion/internal/colors"
)

var analyzeBeatLimit int

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio> <image>",
	Short: "detect beats and extract the color theme",
	Long:  `decode the audio and artwork, then print duration, beats and the palette the video would use.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		audioData, err := readInput("analyze", args[0])
		if err != nil {
			return err
		}
		imageData, err := readInput("analyze", args[1])
		if err != nil {
			return err
		}

		sess := newSession(nil, logger)
		if err := sess.Analyze(context.Background(), audioData, imageData); err != nil {
			return err
		}
		a := sess.Analysis()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, renderTable(
			[]string{"property", "value"},
			[][]string{
				{"duration", fmt.Sprintf("%.2fs (%s)", a.Duration, colors.FormatTime(a.Duration))},
				{"beats", strconv.Itoa(len(a.Beats))},
				{"first beats", formatBeats(a.Beats, analyzeBeatLimit)},
				{"gradient", a.Theme.GradientInfo},
			},
			nil,
		))

		rows := make([][]string, 0, len(a.Palette)+4)
		for i, c := range a.Palette {
			rows = append(rows, []string{strconv.Itoa(i + 1), "palette", c.Hex()})
		}
		rows = append(rows,
			[]string{"", "primary", a.Theme.Primary.Hex()},
			[]string{"", "secondary", a.Theme.Secondary.Hex()},
			[]string{"", "accent", a.Theme.Accent.Hex()},
			[]string{"", "dim", a.Theme.Dim.Hex()},
		)
		fmt.Fprintln(out, renderTable([]string{"#", "role", "color"}, rows, []columnAlignment{alignRight}))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeBeatLimit, "beats", 8, "number of beat timestamps to print")
	rootCmd.AddCommand(analyzeCmd)
}
