package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/config"
	"karolbroda.com/lyricmotion/internal/export"
	"karolbroda.com/lyricmotion/internal/logging"
)

func setupGlobals(t *testing.T) {
	t.Helper()
	cfg, logger = config.Default(), logging.Discard()
	t.Cleanup(func() { cfg, logger, exportOut = nil, nil, "" })
}

func TestFormatBeats(t *testing.T) {
	tests := []struct {
		beats []float64
		limit int
		want  string
	}{
		{nil, 4, "-"},
		{[]float64{0.5, 1.25}, 4, "0.50 1.25"},
		{[]float64{0.5, 1, 1.5, 2}, 2, "0.50 1.00 … +2"},
		{[]float64{0.5}, -3, "… +1"},
	}
	for _, tt := range tests {
		if got := formatBeats(tt.beats, tt.limit); got != tt.want {
			t.Errorf("formatBeats(%v, %d) = %q, want %q", tt.beats, tt.limit, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(75.5); got != "1:15.50" {
		t.Errorf("formatTimestamp = %q", got)
	}
}

func TestReadInputMissingFile(t *testing.T) {
	_, err := readInput("export", filepath.Join(t.TempDir(), "nope.mp3"))
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestPrepareRejectsUnknownSyncMode(t *testing.T) {
	setupGlobals(t)
	sess := newSession(nil, logger)
	err := prepare(context.Background(), sess, "karaoke", nil, nil, "hello")
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("kind = %q, want invalid_input", apperr.KindOf(err))
	}
}

func TestWriteResult(t *testing.T) {
	setupGlobals(t)
	dir := t.TempDir()
	res := &export.Result{Blob: []byte("RIFF"), Filename: "lyricmotion-vertical-1.avi"}

	cfg.Export.OutputDir = dir
	path, err := writeResult(res)
	if err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	if path != filepath.Join(dir, res.Filename) {
		t.Errorf("path = %q", path)
	}

	exportOut = filepath.Join(dir, "custom.avi")
	path, err = writeResult(res)
	if err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("read back %q, %v", data, err)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"#", "name"}, [][]string{{"1", "vertical"}}, []columnAlignment{alignRight})
	if out == "" {
		t.Fatal("empty table")
	}
}

func TestPlainModeWritesEachEventOnce(t *testing.T) {
	setupGlobals(t)
	var buf bytes.Buffer
	l, err := logging.New(logging.Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger = l

	sess := newSession(nil, sessionLogger(false))
	_ = sess.Process(context.Background(), nil, nil, "")
	const msg = "Please upload audio file, image file, and enter lyrics"
	if got := strings.Count(buf.String(), msg); got != 1 {
		t.Errorf("message written %d times, want 1:\n%s", got, buf.String())
	}
}

func TestInteractiveModeSilencesLog(t *testing.T) {
	setupGlobals(t)
	var buf bytes.Buffer
	l, err := logging.New(logging.Options{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger = l

	sess := newSession(nil, sessionLogger(true))
	_ = sess.Process(context.Background(), nil, nil, "")
	if buf.Len() != 0 {
		t.Errorf("log output while the view owns the terminal: %q", buf.String())
	}
	if len(sess.Events().Entries()) != 1 {
		t.Error("event not recorded")
	}
}
