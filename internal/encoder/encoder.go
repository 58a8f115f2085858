// Package encoder turns rendered frames into a media blob. Sinks are push
// style: the exporter hands over one frame at a time and asks for the blob
// at the end.
package encoder

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"karolbroda.com/lyricmotion/internal/apperr"
)

// Sink consumes frames in order. After Finish or Abort the sink is unusable.
type Sink interface {
	AcceptFrame(ctx context.Context, frame *image.RGBA) error
	Finish(ctx context.Context) ([]byte, error)
	// Abort releases everything held by the sink and discards partial output.
	Abort()
}

type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high", "":
		return QualityHigh, nil
	}
	return QualityHigh, apperr.New(apperr.KindInvalidInput, "encoder.quality", fmt.Sprintf("unknown quality %q", s))
}

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	default:
		return "high"
	}
}

// Spec is what the caller asks an encoder for.
type Spec struct {
	Codec     string
	Quality   Quality
	FrameRate int
	Width     int
	Height    int
}

// Info describes the container a codec produces.
type Info struct {
	Codec    string
	MIMEType string
	Ext      string
}

type Factory func(ctx context.Context, spec Spec) (Sink, error)

type registration struct {
	info    Info
	factory Factory
}

// Registry maps codec names to factories.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]registration)}
}

// DefaultRegistry knows the pure-Go mjpeg sink and, through ffmpeg, vp9.
func DefaultRegistry(ffmpegPath string) *Registry {
	r := NewRegistry()
	r.Register(MJPEGInfo, NewMJPEG)
	r.Register(VP9Info, func(ctx context.Context, spec Spec) (Sink, error) {
		return NewVP9(ctx, ffmpegPath, spec)
	})
	return r
}

func (r *Registry) Register(info Info, factory Factory) {
	r.mu.Lock()
	r.codecs[strings.ToLower(info.Codec)] = registration{info: info, factory: factory}
	r.mu.Unlock()
}

func (r *Registry) Codecs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New opens a sink. Unknown codecs and unavailable runtimes fail with an
// encoder_init error.
func (r *Registry) New(ctx context.Context, spec Spec) (Sink, Info, error) {
	const op = "encoder.new"
	r.mu.RLock()
	reg, ok := r.codecs[strings.ToLower(spec.Codec)]
	r.mu.RUnlock()
	if !ok {
		return nil, Info{}, apperr.New(apperr.KindEncoderInit, op, fmt.Sprintf("codec %q is not available", spec.Codec))
	}
	if spec.Width <= 0 || spec.Height <= 0 || spec.FrameRate <= 0 {
		return nil, Info{}, apperr.New(apperr.KindEncoderInit, op, "invalid frame size or rate")
	}
	sink, err := reg.factory(ctx, spec)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindEncoderInit {
			return nil, Info{}, err
		}
		return nil, Info{}, apperr.Wrap(apperr.KindEncoderInit, op, fmt.Sprintf("codec %q failed to start", spec.Codec), err)
	}
	return sink, reg.info, nil
}
