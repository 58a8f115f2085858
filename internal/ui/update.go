package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case ProgressMsg:
		m.progress = export.Progress(msg)
		return m, nil

	case EventMsg:
		m.events = append([]events.Event{events.Event(msg)}, m.events...)
		if len(m.events) > shownEvents {
			m.events = m.events[:shownEvents]
		}
		return m, nil

	case DoneMsg:
		m.done = &msg
		m.animState.Displayed = m.progress.Percent
		return m, tea.Quit

	case TickMsg:
		m.tickCount++
		m.animState.Update(m.tickCount, m.progress.Percent)
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if m.done != nil {
			return m, tea.Quit
		}
		if !m.cancelling && m.cancel != nil {
			m.cancelling = true
			m.cancel()
		}
		// keep running until the export reports back
		return m, nil
	}
	return m, nil
}
