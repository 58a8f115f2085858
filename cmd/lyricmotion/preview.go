package main

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/compositor"
	"karolbroda.com/lyricmotion/internal/lyrics"
	"karolbroda.com/lyricmotion/internal/terminal"
)

var (
	previewAt     float64
	previewFormat string
	previewSync   string
	previewOut    string
	previewCols   int
	previewRows   int
)

var previewCmd = &cobra.Command{
	Use:   "preview <audio> <image> <lyrics>",
	Short: "render a single frame",
	Long:  `render the frame at --at seconds to a png, or straight to the terminal when --out is empty.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := cfg.Export.Format
		if cmd.Flags().Changed("format") {
			format = previewFormat
		}
		f, err := compositor.ParseFormat(format)
		if err != nil {
			return apperr.Wrap(apperr.KindInvalidInput, "preview", "invalid format", err)
		}

		var inputs [3][]byte
		for i, path := range args {
			if inputs[i], err = readInput("preview", path); err != nil {
				return err
			}
		}

		sess := newSession(nil, logger)
		if err := prepare(context.Background(), sess, previewSync, inputs[0], inputs[1], string(inputs[2])); err != nil {
			return err
		}
		a := sess.Analysis()
		if previewAt < 0 || previewAt > a.Duration {
			return apperr.New(apperr.KindInvalidRange, "preview", fmt.Sprintf("--at must be within 0 and %.2f", a.Duration))
		}

		var current *lyrics.Line
		if line, ok := sess.CurrentLyric(previewAt); ok {
			current = &line
		}
		frame := compositor.Render(previewAt, a.Theme, current, sess.UpcomingLyrics(previewAt, 2), f.Geometry())

		if previewOut == "" {
			return terminal.Preview(cmd.OutOrStdout(), frame.Image, terminal.DetectCapabilities(os.Stdout), previewCols, previewRows)
		}
		out, err := os.Create(previewOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", previewOut, err)
		}
		defer out.Close()
		if err := png.Encode(out, frame.Image); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s at %s\n", previewOut, formatTimestamp(previewAt))
		return nil
	},
}

func init() {
	f := previewCmd.Flags()
	f.Float64Var(&previewAt, "at", 0, "timestamp in seconds")
	f.StringVarP(&previewFormat, "format", "f", "", "video format (vertical, horizontal)")
	f.StringVar(&previewSync, "sync", "auto", "lyric sync (auto, beats, interval, lrc)")
	f.StringVarP(&previewOut, "out", "o", "", "png output path")
	f.IntVar(&previewCols, "cols", 40, "terminal preview width in cells")
	f.IntVar(&previewRows, "rows", 20, "terminal preview height in cells")
	rootCmd.AddCommand(previewCmd)
}
