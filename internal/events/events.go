// Package events carries user-facing status events (the processing log).
package events

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/logging"
)

// DefaultCapacity matches the processing log shown to users.
const DefaultCapacity = 50

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Event struct {
	ID       string
	Severity Severity
	Message  string
	Kind     apperr.Kind
	Time     time.Time
}

// Subscriber receives every event after it has been recorded.
type Subscriber func(Event)

// Log is a bounded, newest-first event log that mirrors every entry to slog.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Event
	subs     []Subscriber
	seq      uint64
	logger   *slog.Logger
	now      func() time.Time
}

func NewLog(capacity int, logger *slog.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// Subscribe registers fn for future events.
func (l *Log) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.subs = append(l.subs, fn)
	l.mu.Unlock()
}

func (l *Log) Info(msg string)    { l.Add(SeverityInfo, msg) }
func (l *Log) Success(msg string) { l.Add(SeveritySuccess, msg) }
func (l *Log) Warning(msg string) { l.Add(SeverityWarning, msg) }

// Failure records err as a single error event carrying its kind.
func (l *Log) Failure(prefix string, err error) Event {
	msg := apperr.Message(err)
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return l.emit(SeverityError, msg, apperr.KindOf(err))
}

// Add records an event with the given severity.
func (l *Log) Add(sev Severity, msg string) Event {
	return l.emit(sev, msg, "")
}

func (l *Log) emit(sev Severity, msg string, kind apperr.Kind) Event {
	l.mu.Lock()
	l.seq++
	evt := Event{
		ID:       strconv.FormatUint(l.seq, 10),
		Severity: sev,
		Message:  msg,
		Kind:     kind,
		Time:     l.now(),
	}
	l.entries = append([]Event{evt}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	subs := append([]Subscriber(nil), l.subs...)
	l.mu.Unlock()

	l.logger.Log(context.Background(), sev.level(), msg, l.attrs(evt)...)
	for _, fn := range subs {
		fn(evt)
	}
	return evt
}

func (l *Log) attrs(evt Event) []any {
	attrs := []any{"status", string(evt.Severity)}
	if evt.Kind != "" {
		attrs = append(attrs, "kind", string(evt.Kind))
	}
	return attrs
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops all entries but keeps subscribers.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (s Severity) level() slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
