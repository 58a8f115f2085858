package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/audio"
	"karolbroda.com/lyricmotion/internal/encoder"
	"karolbroda.com/lyricmotion/internal/lyrics"
	"karolbroda.com/lyricmotion/internal/observe"
	"karolbroda.com/lyricmotion/internal/session"
)

// newSession wires a session from cfg. Status events are mirrored to log,
// which is the only place they are printed outside the interactive view.
func newSession(metrics *observe.Metrics, log *slog.Logger) *session.Session {
	return session.New(session.Options{
		Analyzer: audio.NewAnalyzer(audio.Options{
			Beats: audio.BeatParams{
				WindowSize:      cfg.Analysis.WindowSize,
				HopSize:         cfg.Analysis.HopSize,
				ThresholdK:      cfg.Analysis.ThresholdK,
				ThresholdWindow: cfg.Analysis.ThresholdWindow,
				MinInterval:     cfg.Analysis.MinBeatInterval,
			},
			FFmpegPath: cfg.FFmpeg.Path,
			Logger:     log,
		}),
		Extractor: artwork.NewExtractor(cfg.Palette.Size, cfg.Palette.Method, cfg.Palette.ThumbnailSize, log),
		Registry:  encoder.DefaultRegistry(cfg.FFmpeg.Path),
		Metrics:   metrics,
		Logger:    log,
	})
}

func newLyricsClient() *lyrics.Client {
	return lyrics.NewClient(lyrics.ClientOptions{
		GetURL:    cfg.Lyrics.LrclibGetURL,
		SearchURL: cfg.Lyrics.LrclibSearchURL,
		Timeout:   cfg.HTTPTimeout(),
		Logger:    logger,
	})
}

func readInput(op, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, op, fmt.Sprintf("read %s", filepath.Base(path)), err)
	}
	return data, nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range header {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func formatBeats(beats []float64, limit int) string {
	if len(beats) == 0 {
		return "-"
	}
	limit = max(limit, 0)
	parts := make([]string, 0, limit+1)
	for i, b := range beats {
		if i == limit {
			parts = append(parts, fmt.Sprintf("… +%d", len(beats)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%.2f", b))
	}
	return strings.Join(parts, " ")
}

func formatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}
