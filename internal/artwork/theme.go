package artwork

import (
	"math"

	"karolbroda.com/lyricmotion/internal/colors"
)

const (
	gradientSteps   = 20
	backgroundSteps = 32
)

var (
	defaultPrimary   = colors.MustHex("#8BA4E8")
	defaultSecondary = colors.MustHex("#E8A4C8")
	defaultAccent    = colors.MustHex("#B8A8E8")
	defaultDim       = colors.MustHex("#6272A4")
)

// Theme is the set of render colors derived from a palette.
type Theme struct {
	Primary      colors.RGB
	Secondary    colors.RGB
	Accent       colors.RGB
	Dim          colors.RGB
	Gradient     []colors.RGB
	GradientInfo string
	// Background runs through primary, accent and secondary.
	Background []colors.RGB
	// Source is the palette the theme was built from, dominant first.
	Source Palette
}

func DefaultTheme() Theme {
	return Theme{
		Primary:      defaultPrimary,
		Secondary:    defaultSecondary,
		Accent:       defaultAccent,
		Dim:          defaultDim,
		Gradient:     colors.Gradient(defaultPrimary, defaultSecondary, gradientSteps),
		GradientInfo: "primary → secondary (default)",
		Background:   colors.MultiGradient([]colors.RGB{defaultPrimary, defaultAccent, defaultSecondary}, backgroundSteps),
		Source:       Palette{defaultPrimary, defaultSecondary, defaultAccent},
	}
}

type scored struct {
	c          colors.RGB
	sat        float64
	brightness float64
	score      float64
}

// NewTheme picks primary/secondary/accent by saturation and brightness and
// chooses the smoothest gradient pair among them. Palettes with one or two
// colors are padded with shades of the colors they have; an empty palette
// gets the default theme.
func NewTheme(p Palette) Theme {
	if len(p) == 0 {
		return DefaultTheme()
	}
	source := append(Palette(nil), p...)
	if len(p) < 3 {
		p = padPalette(p)
	}

	metrics := make([]scored, len(p))
	for i, c := range p {
		_, sat, v := c.HSV()
		metrics[i] = scored{c: c, sat: sat, brightness: v, score: sat * (1 - math.Abs(v-0.6))}
	}

	primary := -1
	best := -1.0
	for i, m := range metrics {
		if m.score > best && m.brightness > 0.3 && m.sat > 0.2 {
			best = m.score
			primary = i
		}
	}
	if primary < 0 {
		primary = 0
	}
	secondary := pick(metrics, 0.15, 0.3, primary)
	accent := pick(metrics, 0.1, 0.25, primary, secondary)

	chosen := []scored{metrics[primary], metrics[secondary], metrics[accent]}
	for i := range chosen {
		chosen[i].c = boost(chosen[i].c, chosen[i].brightness)
	}
	// brightest leads, darkest becomes secondary
	for i := 0; i < len(chosen); i++ {
		for j := i + 1; j < len(chosen); j++ {
			if chosen[i].brightness < chosen[j].brightness {
				chosen[i], chosen[j] = chosen[j], chosen[i]
			}
		}
	}

	t := Theme{
		Primary:   chosen[0].c,
		Accent:    chosen[1].c,
		Secondary: chosen[2].c,
		Dim:       defaultDim,
		Source:    source,
	}
	start, end, info := bestGradientPair(t.Primary, t.Secondary, t.Accent)
	t.Gradient = colors.Gradient(start, end, gradientSteps)
	t.GradientInfo = info
	t.Background = colors.MultiGradient([]colors.RGB{t.Primary, t.Accent, t.Secondary}, backgroundSteps)
	return t
}

// padPalette fills a one or two color palette up to three with a lighter and
// a darker shade of the dominant color, or the midpoint of the two.
func padPalette(p Palette) Palette {
	out := append(Palette(nil), p...)
	if len(p) == 1 {
		return append(out, colors.Blend(p[0], colors.White, 0.35), colors.Scale(p[0], 0.55))
	}
	return append(out, colors.Mix(p[0], p[1], 0.5))
}

// pick returns the first index meeting the thresholds that isn't excluded,
// or the first non-excluded index when none qualify.
func pick(metrics []scored, minSat, minBright float64, exclude ...int) int {
	excluded := func(i int) bool {
		for _, e := range exclude {
			if metrics[e].c == metrics[i].c {
				return true
			}
		}
		return false
	}
	fallback := -1
	for i, m := range metrics {
		if excluded(i) {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if m.sat > minSat && m.brightness > minBright {
			return i
		}
	}
	if fallback < 0 {
		return exclude[0]
	}
	return fallback
}

func boost(c colors.RGB, brightness float64) colors.RGB {
	if brightness > 0 && brightness < 0.4 {
		c = colors.Scale(c, math.Min(0.4/brightness, 2.5))
	}
	if brightness > 0.85 {
		c = colors.Desaturate(c, 0.3)
	}
	return c
}

func bestGradientPair(primary, secondary, accent colors.RGB) (colors.RGB, colors.RGB, string) {
	type pair struct {
		start, end colors.RGB
		name       string
		smoothness float64
	}
	pairs := []pair{
		{start: primary, end: secondary, name: "primary → secondary"},
		{start: primary, end: accent, name: "primary → accent"},
		{start: secondary, end: primary, name: "secondary → primary"},
		{start: secondary, end: accent, name: "secondary → accent"},
		{start: accent, end: primary, name: "accent → primary"},
		{start: accent, end: secondary, name: "accent → secondary"},
	}
	for i := range pairs {
		pairs[i].smoothness = colors.Smoothness(pairs[i].start, pairs[i].end, gradientSteps)
	}

	bestIdx := 0
	for i := 1; i < len(pairs); i++ {
		if pairs[i].smoothness < pairs[bestIdx].smoothness {
			bestIdx = i
		}
	}
	// near-ties go to the pair with the brighter start
	for i := range pairs {
		if i == bestIdx {
			continue
		}
		if pairs[i].smoothness-pairs[bestIdx].smoothness < 5 &&
			colors.Lightness(pairs[i].start) > colors.Lightness(pairs[bestIdx].start) {
			bestIdx = i
		}
	}
	return pairs[bestIdx].start, pairs[bestIdx].end, pairs[bestIdx].name
}
