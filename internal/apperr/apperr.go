// Package apperr defines the error kinds surfaced by lyricmotion operations.
//
// Every failure that crosses an operation boundary (analysis, sync, export)
// carries exactly one Kind so hosts can render a single message plus a tag.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags an error with the category shown to the user.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindDecode           Kind = "decode"
	KindEmptyAudio       Kind = "empty_audio"
	KindInvalidRange     Kind = "invalid_range"
	KindInvalidInput     Kind = "invalid_input"
	KindEncoderInit      Kind = "encoder_init"
	KindEncoder          Kind = "encoder"
	KindExportInProgress Kind = "export_in_progress"
	KindCancelled        Kind = "cancelled"
	KindNetwork          Kind = "network"
)

// Sentinels for errors.Is comparisons. Any *Error with the same Kind matches.
var (
	ErrDecode           = &Error{Kind: KindDecode}
	ErrEmptyAudio       = &Error{Kind: KindEmptyAudio}
	ErrInvalidRange     = &Error{Kind: KindInvalidRange}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrEncoderInit      = &Error{Kind: KindEncoderInit}
	ErrEncoder          = &Error{Kind: KindEncoder}
	ErrExportInProgress = &Error{Kind: KindExportInProgress}
	ErrCancelled        = &Error{Kind: KindCancelled}
	ErrNetwork          = &Error{Kind: KindNetwork}
)

// Error is a classified failure. Op names the operation that raised it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, op)
	}
	if msg := strings.TrimSpace(e.Msg); msg != "" {
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		parts = append(parts, string(e.Kind))
	}
	detail := strings.Join(parts, ": ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", detail, e.Err)
	}
	return detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind so callers can write errors.Is(err, apperr.ErrDecode).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// New builds a classified error without an underlying cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err under kind. A nil err still yields an error so callers
// can use Wrap for validation failures too.
func Wrap(kind Kind, op, msg string, err error) error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the single human-readable line shown to users.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && strings.TrimSpace(e.Msg) != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
	return err.Error()
}
