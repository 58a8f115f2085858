package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func TestProgressAndEvents(t *testing.T) {
	m := NewModel(ModelConfig{Theme: artwork.DefaultTheme(), Title: "song.wav"})
	m, _ = update(t, m, ProgressMsg{State: export.StateRendering, Percent: 60, Frame: 450, Total: 900})
	for i := range 8 {
		m, _ = update(t, m, EventMsg{Severity: events.SeverityInfo, Message: strings.Repeat("x", i+1)})
	}
	if got := m.Progress().Percent; got != 60 {
		t.Errorf("percent = %v", got)
	}
	if got := len(m.Events()); got != shownEvents {
		t.Errorf("events = %d, want %d", got, shownEvents)
	}
	if m.Events()[0].Message != "xxxxxxxx" {
		t.Errorf("newest event should be first, got %q", m.Events()[0].Message)
	}

	for range 40 {
		m, _ = update(t, m, TickMsg{})
	}
	if d := m.AnimState().Displayed; d < 59 || d > 60 {
		t.Errorf("displayed progress = %v, want ~60", d)
	}

	view := m.View()
	if !strings.Contains(view, "frame 450 / 900") || !strings.Contains(view, "song.wav") {
		t.Errorf("view missing status:\n%s", view)
	}
}

func TestCancelKeyCallsCancelOnce(t *testing.T) {
	calls := 0
	m := NewModel(ModelConfig{Cancel: func() { calls++ }})
	for range 3 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	}
	if calls != 1 || !m.Cancelling() {
		t.Errorf("calls = %d, cancelling = %v", calls, m.Cancelling())
	}
	if !strings.Contains(m.View(), "cancelling...") {
		t.Error("view should show cancelling hint")
	}
}

func TestDoneQuits(t *testing.T) {
	m := NewModel(ModelConfig{})
	m, cmd := update(t, m, DoneMsg{Err: errors.New("Export failed: boom")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done should quit the program")
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("view should show the error")
	}
}

func TestAnimStateSnapsWhenClose(t *testing.T) {
	var a AnimState
	a.Displayed = 99.98
	a.Update(1, 100)
	if a.Displayed != 100 {
		t.Errorf("displayed = %v", a.Displayed)
	}
}
