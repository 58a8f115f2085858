// Package colors holds the color math shared by palettes, the compositor and
// the terminal views. Interpolation happens in LCH so gradients between
// unrelated hues stay perceptually even.
package colors

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

var White = RGB{255, 255, 255}

// ParseHex accepts "#RRGGBB" or "RRGGBB".
func ParseHex(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("colors: invalid hex %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("colors: invalid hex %q: %w", hex, err)
	}
	return RGB{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// MustHex is ParseHex for constants; it falls back to white.
func MustHex(hex string) RGB {
	c, err := ParseHex(hex)
	if err != nil {
		return White
	}
	return c
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) RGBA(alpha uint8) color.RGBA {
	// color.RGBA is alpha-premultiplied
	a := uint32(alpha)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: alpha,
	}
}

func FromColor(c color.Color) RGB {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return RGB{}
	}
	// un-premultiply
	return RGB{
		R: uint8(r * 0xffff / a >> 8),
		G: uint8(g * 0xffff / a >> 8),
		B: uint8(b * 0xffff / a >> 8),
	}
}

// Gradient interpolates steps colors from start to end along the shortest hue path.
func Gradient(start, end RGB, steps int) []RGB {
	if steps < 2 {
		steps = 2
	}

	sl, sc, sh := start.lch()
	el, ec, eh := end.lch()
	hueDiff := shortestHue(sh, eh)

	// very different endpoints get a double smoothstep so the middle doesn't band
	needsSmoothing := math.Abs(ec-sc) > 30 || math.Abs(hueDiff) > 60 || math.Abs(el-sl) > 30

	out := make([]RGB, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		if needsSmoothing {
			t = smoothStep(smoothStep(t))
		}
		out[i] = fromLCH(sl+t*(el-sl), sc+t*(ec-sc), wrapHue(sh+t*hueDiff))
	}
	return out
}

// MultiGradient spreads exactly steps colors evenly across stops, blending
// each segment in LCH.
func MultiGradient(stops []RGB, steps int) []RGB {
	if len(stops) == 0 {
		return []RGB{White}
	}
	if len(stops) == 1 || steps < 2 {
		return []RGB{stops[0]}
	}

	segments := len(stops) - 1
	out := make([]RGB, steps)
	for i := range out {
		pos := float64(i) / float64(steps-1) * float64(segments)
		seg := min(int(pos), segments-1)
		out[i] = Blend(stops[seg], stops[seg+1], pos-float64(seg))
	}
	return out
}

// Smoothness returns the largest redmean jump between adjacent gradient steps.
// Below 35 reads as smooth, above 50 bands visibly.
func Smoothness(start, end RGB, steps int) float64 {
	grad := Gradient(start, end, steps)
	maxJump := 0.0
	for i := 1; i < len(grad); i++ {
		if d := Distance(grad[i-1], grad[i]); d > maxJump {
			maxJump = d
		}
	}
	return maxJump
}

// Distance is the redmean perceptual approximation.
func Distance(a, b RGB) float64 {
	rmean := (float64(a.R) + float64(b.R)) / 2
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt((2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db)
}

// Lightness returns L* on a 0-100 scale.
func Lightness(c RGB) float64 {
	l, _, _ := c.lch()
	return l
}

// Blend mixes a toward b by t in LCH.
func Blend(a, b RGB, t float64) RGB {
	l1, c1, h1 := a.lch()
	l2, c2, h2 := b.lch()
	return fromLCH(l1+t*(l2-l1), c1+t*(c2-c1), wrapHue(h1+t*shortestHue(h1, h2)))
}

// Mix is a straight sRGB lerp, cheap enough for per-pixel work.
func Mix(a, b RGB, t float64) RGB {
	t = clamp01(t)
	return RGB{
		R: lerp8(a.R, b.R, t),
		G: lerp8(a.G, b.G, t),
		B: lerp8(a.B, b.B, t),
	}
}

func Scale(c RGB, factor float64) RGB {
	return RGB{scale8(c.R, factor), scale8(c.G, factor), scale8(c.B, factor)}
}

func Desaturate(c RGB, amount float64) RGB {
	gray := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	pull := func(v uint8) uint8 {
		return clamp8(float64(v) + (gray-float64(v))*amount)
	}
	return RGB{pull(c.R), pull(c.G), pull(c.B)}
}

// HSV returns hue in degrees and saturation/value in 0-1.
func (c RGB) HSV() (h, s, v float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC
	v = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func FormatTime(seconds float64) string {
	if seconds < 0 {
		return "0:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func smoothStep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func shortestHue(from, to float64) float64 {
	d := to - from
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

func wrapHue(h float64) float64 {
	if h < 0 {
		return h + 360
	}
	if h >= 360 {
		return h - 360
	}
	return h
}

func (c RGB) lch() (float64, float64, float64) {
	lin := func(v uint8) float64 {
		f := float64(v) / 255
		if f > 0.04045 {
			return math.Pow((f+0.055)/1.055, 2.4)
		}
		return f / 12.92
	}
	r, g, b := lin(c.R), lin(c.G), lin(c.B)

	// d65
	x := (r*0.4124564 + g*0.3575761 + b*0.1804375) / 0.95047
	y := r*0.2126729 + g*0.7151522 + b*0.0721750
	z := (r*0.0193339 + g*0.1191920 + b*0.9503041) / 1.08883

	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx, fy, fz := f(x), f(y), f(z)

	l := 116*fy - 16
	la := 500 * (fx - fy)
	lb := 200 * (fy - fz)

	h := math.Atan2(lb, la) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return l, math.Hypot(la, lb), h
}

func fromLCH(l, c, h float64) RGB {
	rad := h * math.Pi / 180
	la := c * math.Cos(rad)
	lb := c * math.Sin(rad)

	fy := (l + 16) / 116
	fx := la/500 + fy
	fz := fy - lb/200

	inv := func(t float64) float64 {
		if t3 := t * t * t; t3 > 0.008856 {
			return t3
		}
		return (t - 16.0/116.0) / 7.787
	}
	x := inv(fx) * 0.95047
	y := inv(fy)
	z := inv(fz) * 1.08883

	gamma := func(t float64) uint8 {
		if t > 0.0031308 {
			t = 1.055*math.Pow(t, 1/2.4) - 0.055
		} else {
			t = 12.92 * t
		}
		return clamp8(t*255 + 0.5)
	}
	return RGB{
		R: gamma(x*3.2404542 - y*1.5371385 - z*0.4985314),
		G: gamma(-x*0.9692660 + y*1.8760108 + z*0.0415560),
		B: gamma(x*0.0556434 - y*0.2040259 + z*1.0572252),
	}
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func lerp8(a, b uint8, t float64) uint8 {
	return clamp8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func scale8(v uint8, factor float64) uint8 {
	return clamp8(float64(v) * factor)
}
