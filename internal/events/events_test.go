package events

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/logging"
)

func TestLogKeepsNewestFirstAndBounded(t *testing.T) {
	l := NewLog(3, nil)
	for _, msg := range []string{"one", "two", "three", "four"} {
		l.Info(msg)
	}

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	want := []string{"four", "three", "two"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Message, want[i])
		}
	}
	if entries[0].ID == entries[1].ID {
		t.Error("expected unique ids")
	}
}

func TestFailureCarriesKindAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l := NewLog(0, logger)

	var seen []Event
	l.Subscribe(func(e Event) { seen = append(seen, e) })

	cause := apperr.Wrap(apperr.KindDecode, "audio.decode", "unsupported audio format", errors.New("bad header"))
	evt := l.Failure("Processing failed", cause)

	if evt.Severity != SeverityError {
		t.Errorf("severity = %q", evt.Severity)
	}
	if evt.Kind != apperr.KindDecode {
		t.Errorf("kind = %q", evt.Kind)
	}
	if evt.Message != "Processing failed: unsupported audio format: bad header" {
		t.Errorf("message = %q", evt.Message)
	}
	if len(seen) != 1 {
		t.Fatalf("subscriber saw %d events, want 1", len(seen))
	}
	if !strings.Contains(buf.String(), "kind=decode") {
		t.Errorf("expected kind attr in log output: %q", buf.String())
	}
}

func TestClear(t *testing.T) {
	l := NewLog(0, nil)
	l.Success("done")
	l.Clear()
	if got := len(l.Entries()); got != 0 {
		t.Fatalf("len = %d after Clear", got)
	}
	l.Warning("again")
	if got := l.Entries()[0].Severity; got != SeverityWarning {
		t.Errorf("severity = %q", got)
	}
}
