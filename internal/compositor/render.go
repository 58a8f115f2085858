package compositor

import (
	"image"
	"image/draw"
	"math"
	"strings"

	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/colors"
	"karolbroda.com/lyricmotion/internal/lyrics"
)

const (
	fadeInSeconds   = 0.4
	sweepPeriod     = 12.0
	upcomingShown   = 2
	backgroundDepth = 0.45
	panelAlpha      = 96
)

// Render allocates a frame and draws into it.
func Render(t float64, theme artwork.Theme, current *lyrics.Line, upcoming []lyrics.Line, geom Geometry) *Frame {
	f := NewFrame(geom)
	RenderInto(f, t, theme, current, upcoming)
	return f
}

// RenderInto overwrites every pixel of dst.
func RenderInto(dst *Frame, t float64, theme artwork.Theme, current *lyrics.Line, upcoming []lyrics.Line) {
	img := dst.Image
	g := dst.Geometry()
	grad := theme.Gradient
	if len(grad) == 0 {
		grad = artwork.DefaultTheme().Gradient
	}

	bg := theme.Background
	if len(bg) == 0 {
		bg = grad
	}
	drawBackground(img, g, bg, t)

	panel := panelRect(g)
	draw.Draw(img, panel, image.NewUniform(colors.RGB{}.RGBA(panelAlpha)), image.Point{}, draw.Over)

	scale := fontScale(g)
	maxChars := panel.Dx() * 9 / 10 / (glyphAdvance * scale)
	if maxChars < 4 {
		maxChars = 4
	}

	y := panel.Min.Y + panel.Dy()/3
	if current != nil {
		appear := easeOutCubic(clamp((t-current.Start)/fadeInSeconds, 0, 1))
		slide := int(math.Round((1 - appear) * float64(scale*3)))
		rows := wrapText(current.Text, maxChars)
		blockH := len(rows)*(glyphSize+2)*scale - 2*scale
		top := y - blockH/2 + slide
		for i, row := range rows {
			drawText(img, row, panel, top+i*(glyphSize+2)*scale, scale, grad, appear)
		}
		y = top + blockH + 4*scale

		barY := panel.Max.Y - 6*scale
		drawProgress(img, panel, barY, scale, theme, current.Progress(t))
	} else {
		drawText(img, "· · ·", panel, y-glyphSize*scale/2, scale, []colors.RGB{theme.Dim}, 1)
		y += glyphSize*scale + 4*scale
	}

	small := scale / 2
	if small < 1 {
		small = 1
	}
	smallChars := maxChars * scale / small
	for i, line := range upcoming {
		if i >= upcomingShown {
			break
		}
		c := colors.Mix(theme.Dim, colors.White, 0.35-0.15*float64(i))
		alpha := 0.85 - 0.3*float64(i)
		for _, row := range wrapText(line.Text, smallChars) {
			if y+glyphSize*small > panel.Max.Y-8*scale {
				return
			}
			drawText(img, row, panel, y, small, []colors.RGB{c}, alpha)
			y += (glyphSize + 2) * small
		}
		y += 2 * small
	}
}

func panelRect(g Geometry) image.Rectangle {
	mx := g.Width / 12
	my := g.Height / 6
	return image.Rect(mx, my, g.Width-mx, g.Height-my)
}

// fontScale is the edge length of one font pixel in frame pixels.
func fontScale(g Geometry) int {
	s := min(g.Width, g.Height) / 90
	return max(s, 1)
}

// drawBackground fills rows with a darkened gradient that drifts slowly over time.
func drawBackground(img *image.RGBA, g Geometry, grad []colors.RGB, t float64) {
	sweep := 0.15 * math.Sin(2*math.Pi*t/sweepPeriod)
	rowBytes := g.Width * 4
	for y := 0; y < g.Height; y++ {
		pos := float64(y)/float64(max(g.Height-1, 1)) + sweep
		c := colors.Scale(sampleGradient(grad, pos), backgroundDepth).RGBA(255)

		row := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		row[0], row[1], row[2], row[3] = c.R, c.G, c.B, c.A
		// double the filled prefix until the row is full
		for filled := 4; filled < rowBytes; filled *= 2 {
			copy(row[filled:], row[:filled])
		}
	}
}

// sampleGradient reads grad at pos, mirrored so the sweep never jumps.
func sampleGradient(grad []colors.RGB, pos float64) colors.RGB {
	if len(grad) == 1 {
		return grad[0]
	}
	pos = math.Mod(math.Abs(pos), 2)
	if pos > 1 {
		pos = 2 - pos
	}
	f := pos * float64(len(grad)-1)
	i := int(f)
	if i >= len(grad)-1 {
		return grad[len(grad)-1]
	}
	return colors.Mix(grad[i], grad[i+1], f-float64(i))
}

// drawText centers text horizontally in panel with its top at y. Colors are
// spread across the characters.
func drawText(img *image.RGBA, text string, panel image.Rectangle, y, scale int, palette []colors.RGB, alpha float64) {
	runes := []rune(text)
	if len(runes) == 0 || alpha <= 0 {
		return
	}
	a := uint8(math.Round(clamp(alpha, 0, 1) * 255))
	width := (len(runes)*glyphAdvance - glyphGap) * scale
	x0 := panel.Min.X + (panel.Dx()-width)/2

	for ci, r := range runes {
		c := palette[0]
		if len(palette) > 1 && len(runes) > 1 {
			c = palette[ci*(len(palette)-1)/(len(runes)-1)]
		}
		src := image.NewUniform(c.RGBA(a))
		g := glyph(r)
		cx := x0 + ci*glyphAdvance*scale
		for row := 0; row < glyphSize; row++ {
			bits := g[row]
			for col := 0; col < glyphSize; col++ {
				if bits&(1<<(glyphSize-1-col)) == 0 {
					continue
				}
				px := image.Rect(cx+col*scale, y+row*scale, cx+(col+1)*scale, y+(row+1)*scale)
				draw.Draw(img, px.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
			}
		}
	}
}

func drawProgress(img *image.RGBA, panel image.Rectangle, y, scale int, theme artwork.Theme, progress float64) {
	h := max(scale/2, 2)
	inset := panel.Dx() / 10
	track := image.Rect(panel.Min.X+inset, y, panel.Max.X-inset, y+h)
	draw.Draw(img, track, image.NewUniform(theme.Dim.RGBA(110)), image.Point{}, draw.Over)

	filled := int(math.Round(float64(track.Dx()) * clamp(progress, 0, 1)))
	if filled > 0 {
		bar := image.Rect(track.Min.X, y, track.Min.X+filled, y+h)
		draw.Draw(img, bar, image.NewUniform(theme.Accent.RGBA(230)), image.Point{}, draw.Over)
	}
}

// wrapText breaks on spaces so no row exceeds maxChars; long words are cut.
func wrapText(text string, maxChars int) []string {
	var rows []string
	var current []rune
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > maxChars {
			if len(current) > 0 {
				rows = append(rows, string(current))
				current = nil
			}
			rows = append(rows, string(w[:maxChars]))
			w = w[maxChars:]
		}
		switch {
		case len(current) == 0:
			current = append([]rune(nil), w...)
		case len(current)+1+len(w) <= maxChars:
			current = append(append(current, ' '), w...)
		default:
			rows = append(rows, string(current))
			current = append([]rune(nil), w...)
		}
	}
	if len(current) > 0 {
		rows = append(rows, string(current))
	}
	return rows
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
