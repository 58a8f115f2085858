package export

import "fmt"

type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRendering
	StateFinalizing
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateInitializing: "initializing",
	StateRendering:    "rendering",
	StateFinalizing:   "finalizing",
	StateCompleted:    "completed",
	StateFailed:       "failed",
	StateCancelled:    "cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the job can no longer change state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Active reports whether the job holds encoder resources.
func (s State) Active() bool {
	return s == StateInitializing || s == StateRendering || s == StateFinalizing
}

// Progress is a snapshot published after every transition and frame.
type Progress struct {
	State   State
	Percent float64
	Frame   int
	Total   int
}

const (
	progressInit      = 10.0
	progressRecording = 30.0
	progressRenderEnd = 90.0
	progressDone      = 100.0
)

// frameProgress maps a finished frame index onto the 30..90 band.
func frameProgress(i, total int) float64 {
	return float64(i+1)/float64(total)*60 + progressRecording
}
