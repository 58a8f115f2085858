// Package ui is the interactive export view: a banner, a themed progress
// bar and the latest status events while a session renders.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/common-nighthawk/go-figure"

	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
)

const (
	tickInterval = 50 * time.Millisecond
	shownEvents  = 6
)

type TickMsg time.Time

type ProgressMsg export.Progress

type EventMsg events.Event

type DoneMsg struct {
	Result *export.Result
	Path   string
	Err    error
}

type ModelConfig struct {
	Theme artwork.Theme
	Title string
	// FrameRate converts frame counts to timestamps, 30 when zero.
	FrameRate int
	// Cancel is called once on ctrl+c or q.
	Cancel func()
	// Art is optional half-block artwork shown beside the progress.
	Art []string
}

type Model struct {
	theme  artwork.Theme
	title  string
	fps    int
	banner []string
	art    []string
	cancel func()

	progress   export.Progress
	events     []events.Event
	done       *DoneMsg
	cancelling bool

	width     int
	height    int
	tickCount int
	animState AnimState
}

func NewModel(cfg ModelConfig) Model {
	theme := cfg.Theme
	if len(theme.Gradient) == 0 {
		theme = artwork.DefaultTheme()
	}
	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 30
	}
	return Model{
		theme:  theme,
		title:  cfg.Title,
		fps:    fps,
		banner: figure.NewFigure("lyricmotion", "small", true).Slicify(),
		art:    cfg.Art,
		cancel: cfg.Cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Progress() export.Progress { return m.progress }
func (m Model) Events() []events.Event    { return m.events }
func (m Model) Done() *DoneMsg            { return m.done }
func (m Model) Cancelling() bool          { return m.cancelling }
func (m Model) AnimState() AnimState      { return m.animState }
