package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/config"
	"karolbroda.com/lyricmotion/internal/logging"
)

var (
	// global flags
	configPath string
	logLevel   string
	logFormat  string
	ffmpegPath string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lyricmotion",
	Short: "turn a song, its artwork and lyrics into a lyric video",
	Long: `lyricmotion analyzes an audio track for beats, pulls a color theme out of the
cover artwork and renders the lyrics as an animated video, synced to the beat.`,
	Version:           version,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", "", "ffmpeg binary for vp9 export and extra audio formats")
}

// loadConfig resolves defaults, file, environment and then flags, in that order.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = logFormat
	}
	if flags.Changed("ffmpeg") {
		loaded.FFmpeg.Path = ffmpegPath
	}

	l, err := logging.New(logging.Options{Level: loaded.Log.Level, Format: loaded.Log.Format, Writer: os.Stderr})
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		msg := apperr.Message(err)
		if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
			msg = fmt.Sprintf("%s (%s)", msg, kind)
		}
		fmt.Fprintln(os.Stderr, "error:", msg)
		os.Exit(1)
	}
}
