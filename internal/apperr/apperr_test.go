package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := Wrap(KindDecode, "audio.decode", "unsupported audio format", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("analyze: %w", err)

	if !errors.Is(wrapped, ErrDecode) {
		t.Fatal("expected errors.Is to match ErrDecode")
	}
	if errors.Is(wrapped, ErrEmptyAudio) {
		t.Fatal("did not expect ErrEmptyAudio to match")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatal("expected cause to remain reachable")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindUnknown},
		{"classified", New(KindInvalidRange, "timeline.update", "end before start"), KindInvalidRange},
		{"wrapped", fmt.Errorf("outer: %w", New(KindCancelled, "export", "cancelled")), KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	err := Wrap(KindEncoderInit, "encoder.new", "codec unavailable", errors.New("ffmpeg not found"))
	if got, want := Message(err), "codec unavailable: ffmpeg not found"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
	if got, want := err.Error(), "encoder.new: codec unavailable: ffmpeg not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := Message(errors.New("raw")); got != "raw" {
		t.Errorf("Message(raw) = %q", got)
	}
}
