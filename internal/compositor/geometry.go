// Package compositor renders one video frame from a point in time, a theme
// and the lyric lines around it. Rendering is pure: identical arguments give
// byte-identical frames.
package compositor

import (
	"fmt"
	"image"
	"strings"

	"karolbroda.com/lyricmotion/internal/apperr"
)

// Format is the closed set of output orientations.
type Format int

const (
	Vertical Format = iota
	Horizontal
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertical", "portrait", "":
		return Vertical, nil
	case "horizontal", "landscape":
		return Horizontal, nil
	}
	return Vertical, apperr.New(apperr.KindInvalidInput, "compositor.format", fmt.Sprintf("unknown format %q", s))
}

func (f Format) String() string {
	if f == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

func (f Format) Geometry() Geometry {
	if f == Horizontal {
		return Geometry{Width: 1920, Height: 1080}
	}
	return Geometry{Width: 1080, Height: 1920}
}

type Geometry struct {
	Width  int
	Height int
}

func (g Geometry) Valid() bool {
	// even dimensions keep yuv420 encoders happy
	return g.Width >= 16 && g.Height >= 16 && g.Width%2 == 0 && g.Height%2 == 0
}

func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Scaled shrinks g by an integer divisor, keeping dimensions even.
func (g Geometry) Scaled(div int) Geometry {
	if div <= 1 {
		return g
	}
	return Geometry{Width: g.Width / div &^ 1, Height: g.Height / div &^ 1}
}

// Frame is one rendered RGBA picture.
type Frame struct {
	Image *image.RGBA
}

func NewFrame(g Geometry) *Frame {
	return &Frame{Image: image.NewRGBA(g.Bounds())}
}

func (f *Frame) Geometry() Geometry {
	b := f.Image.Bounds()
	return Geometry{Width: b.Dx(), Height: b.Dy()}
}
