package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/desktop"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
	"karolbroda.com/lyricmotion/internal/logging"
	"karolbroda.com/lyricmotion/internal/lyrics"
	"karolbroda.com/lyricmotion/internal/observe"
	"karolbroda.com/lyricmotion/internal/session"
	"karolbroda.com/lyricmotion/internal/terminal"
	"karolbroda.com/lyricmotion/internal/ui"
)

var (
	// flags for export
	exportFormat      string
	exportQuality     string
	exportCodec       string
	exportOut         string
	exportFrameRate   int
	exportMaxDuration float64
	exportSync        string
	exportNoTUI       bool
	exportNotify      bool
	exportMetricsAddr string
)

var exportCmd = &cobra.Command{
	Use:   "export <audio> <image> <lyrics>",
	Short: "render the lyric video",
	Long: `analyze the inputs, sync the lyrics and render the video.

lyrics files with [mm:ss.xx] timestamps are imported as-is; plain text is
aligned to the detected beats, or spread evenly when the track has none.`,
	Args: cobra.ExactArgs(3),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFormat, "format", "f", "", "video format (vertical, horizontal)")
	f.StringVarP(&exportQuality, "quality", "q", "", "video quality (low, medium, high)")
	f.StringVar(&exportCodec, "codec", "", "video codec (mjpeg, vp9)")
	f.StringVarP(&exportOut, "out", "o", "", "output file or directory")
	f.IntVar(&exportFrameRate, "fps", 0, "frames per second")
	f.Float64Var(&exportMaxDuration, "max-duration", 0, "longest exported duration in seconds")
	f.StringVar(&exportSync, "sync", "auto", "lyric sync (auto, beats, interval, lrc)")
	f.BoolVar(&exportNoTUI, "no-tui", false, "print plain progress lines instead of the interactive view")
	f.BoolVar(&exportNotify, "notify", false, "send a desktop notification when done")
	f.StringVar(&exportMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while exporting")
	rootCmd.AddCommand(exportCmd)
}

func applyExportFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Export.Format = exportFormat
	}
	if flags.Changed("quality") {
		cfg.Export.Quality = exportQuality
	}
	if flags.Changed("codec") {
		cfg.Export.Codec = exportCodec
	}
	if flags.Changed("fps") {
		cfg.Export.FrameRate = exportFrameRate
	}
	if flags.Changed("max-duration") {
		cfg.Export.MaxDuration = exportMaxDuration
	}
	if flags.Changed("notify") {
		cfg.Notify.Desktop = exportNotify
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = exportMetricsAddr
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	applyExportFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := export.OptionsFromConfig(cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, closeMetrics, err := startMetrics(ctx)
	if err != nil {
		return err
	}
	defer closeMetrics()

	audioData, err := readInput("export", args[0])
	if err != nil {
		return err
	}
	imageData, err := readInput("export", args[1])
	if err != nil {
		return err
	}
	lyricData, err := readInput("export", args[2])
	if err != nil {
		return err
	}

	useTUI := !exportNoTUI && isTerminal(os.Stdout)
	sess := newSession(metrics, sessionLogger(useTUI))

	if err := prepare(ctx, sess, exportSync, audioData, imageData, string(lyricData)); err != nil {
		if useTUI {
			printFailures(cmd, sess.Events().Entries())
		}
		return err
	}

	var res *export.Result
	if useTUI {
		res, err = exportWithTUI(ctx, sess, opts, filepath.Base(args[0]), imageData)
	} else {
		res, err = exportPlain(ctx, sess, opts)
	}
	if err != nil {
		return err
	}

	path, err := writeResult(res)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d frames%s)\n", path, res.Frames, truncatedNote(res))

	notifier, closeNotifier := desktop.Open(cfg.Notify.Desktop, logger)
	defer closeNotifier()
	if err := notifier.Notify("Export completed!", "Your music video was saved to "+path); err != nil {
		logger.Warn("notification failed", slog.Any("error", err))
	}
	return nil
}

// prepare analyzes the inputs and builds the timeline using the sync mode.
func prepare(ctx context.Context, sess *session.Session, syncMode string, audioData, imageData []byte, text string) error {
	mode := strings.ToLower(syncMode)
	if mode == "auto" && lyrics.LooksSynced(text) {
		mode = "lrc"
	}
	switch mode {
	case "auto", "beats":
		return sess.Process(ctx, audioData, imageData, text)
	case "interval":
		if err := sess.Analyze(ctx, audioData, imageData); err != nil {
			return err
		}
		return sess.ManualSync(text)
	case "lrc":
		if err := sess.Analyze(ctx, audioData, imageData); err != nil {
			return err
		}
		return sess.ImportLRC(text)
	}
	return apperr.New(apperr.KindInvalidInput, "export.sync", fmt.Sprintf("unknown sync mode %q", syncMode))
}

// sessionLogger keeps slog off the terminal while the interactive view owns
// it; the view shows the same events.
func sessionLogger(useTUI bool) *slog.Logger {
	if useTUI {
		return logging.Discard()
	}
	return logger
}

// printFailures writes the error events, oldest first.
func printFailures(cmd *cobra.Command, entries []events.Event) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Severity == events.SeverityError {
			fmt.Fprintln(cmd.ErrOrStderr(), "  ✗", entries[i].Message)
		}
	}
}

func exportPlain(ctx context.Context, sess *session.Session, opts export.Options) (*export.Result, error) {
	sampler := export.NewSampler(10)
	return sess.Export(ctx, opts, session.ExportHooks{
		OnProgress: func(p export.Progress) {
			if sampler.Sample(p) {
				fmt.Fprintf(os.Stderr, "  %3.0f%% %s\n", p.Percent, p.State)
			}
		},
	})
}

func exportWithTUI(ctx context.Context, sess *session.Session, opts export.Options, title string, imageData []byte) (*export.Result, error) {
	defer terminal.Reset(os.Stdout)

	theme := artwork.DefaultTheme()
	if a := sess.Analysis(); a != nil {
		theme = a.Theme
	}
	var art []string
	if img, err := artwork.Decode(imageData); err == nil {
		art = artwork.RenderHalfBlockArt(img, 16, 8)
	}

	model := ui.NewModel(ui.ModelConfig{
		Theme:     theme,
		Title:     title,
		FrameRate: opts.FrameRate,
		Cancel:    func() { sess.CancelExport() },
		Art:       art,
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))
	sess.Events().Subscribe(func(e events.Event) { p.Send(ui.EventMsg(e)) })

	type outcome struct {
		res *export.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := sess.Export(ctx, opts, session.ExportHooks{
			OnProgress: func(pr export.Progress) { p.Send(ui.ProgressMsg(pr)) },
		})
		p.Send(ui.DoneMsg{Result: res, Err: err})
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		sess.CancelExport()
		<-done
		return nil, fmt.Errorf("error running bubble tea: %w", err)
	}
	o := <-done
	return o.res, o.err
}

func startMetrics(ctx context.Context) (*observe.Metrics, func(), error) {
	if cfg.Metrics.Addr == "" {
		return nil, func() {}, nil
	}
	mp, shutdown, err := observe.InitProvider()
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}
	srv, err := observe.Listen(cfg.Metrics.Addr, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	return metrics, func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Close(closeCtx)
		_ = shutdown(closeCtx)
	}, nil
}

// writeResult saves the blob to --out, or to the configured directory under
// the generated name.
func writeResult(res *export.Result) (string, error) {
	path := exportOut
	if path == "" {
		path = cfg.Export.OutputDir
	}
	if info, err := os.Stat(path); path == "" || (err == nil && info.IsDir()) {
		path = filepath.Join(path, res.Filename)
	}
	if err := os.WriteFile(path, res.Blob, 0o644); err != nil {
		return "", fmt.Errorf("write video: %w", err)
	}
	return path, nil
}

func truncatedNote(res *export.Result) string {
	if res.Truncated {
		return ", truncated"
	}
	return ""
}
