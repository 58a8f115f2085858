// Package lyrics turns raw lyric text into a Timeline of timed lines and
// keeps it consistent under manual retiming.
package lyrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"karolbroda.com/lyricmotion/internal/apperr"
)

type Line struct {
	Text  string
	Start float64
	End   float64
}

func (l Line) Duration() float64 { return l.End - l.Start }

// Progress reports how far t is through the line, clamped to [0, 1].
func (l Line) Progress(t float64) float64 {
	d := l.Duration()
	if d <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, (t-l.Start)/d))
}

// Timeline is an ordered set of lines with non-decreasing Start, each inside
// [0, Duration]. Lines may be gapped or overlap.
type Timeline struct {
	lines    []Line
	duration float64
}

// SplitLines returns the trimmed, non-empty lines of text.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r")); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func checkDuration(op string, duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("invalid duration %v", duration))
	}
	return nil
}

// ParseLyrics spreads the lines evenly over [0, duration] with no gaps.
func ParseLyrics(text string, duration float64) (*Timeline, error) {
	const op = "lyrics.parse"
	if err := checkDuration(op, duration); err != nil {
		return nil, err
	}
	texts := SplitLines(text)
	if len(texts) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, op, "lyrics are empty")
	}
	return &Timeline{lines: tile(texts, 0, duration), duration: duration}, nil
}

// tile splits [from, to] into len(texts) equal intervals, the last ending at to exactly.
func tile(texts []string, from, to float64) []Line {
	n := float64(len(texts))
	span := to - from
	out := make([]Line, len(texts))
	for i, text := range texts {
		out[i] = Line{
			Text:  text,
			Start: from + float64(i)*span/n,
			End:   from + float64(i+1)*span/n,
		}
	}
	out[len(out)-1].End = to
	return out
}

// AutoSyncWithBeats starts line i on beat i. Each line ends where the next
// begins and the last ends at duration. When there are more lines than beats
// the line on the last beat and every remaining line share the time after it
// evenly. No usable beats falls back to ParseLyrics.
func AutoSyncWithBeats(text string, beats []float64, duration float64) (*Timeline, error) {
	const op = "lyrics.autosync"
	if err := checkDuration(op, duration); err != nil {
		return nil, err
	}
	usable := sanitizeBeats(beats, duration)
	if len(usable) == 0 {
		return ParseLyrics(text, duration)
	}
	texts := SplitLines(text)
	if len(texts) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, op, "lyrics are empty")
	}

	lines := make([]Line, 0, len(texts))
	if len(texts) <= len(usable) {
		for i, t := range texts {
			end := duration
			if i+1 < len(texts) {
				end = usable[i+1]
			}
			lines = append(lines, Line{Text: t, Start: usable[i], End: end})
		}
	} else {
		last := len(usable) - 1
		for i := 0; i < last; i++ {
			lines = append(lines, Line{Text: texts[i], Start: usable[i], End: usable[i+1]})
		}
		lines = append(lines, tile(texts[last:], usable[last], duration)...)
	}
	return &Timeline{lines: lines, duration: duration}, nil
}

// sanitizeBeats keeps beats inside [0, duration) that strictly increase.
func sanitizeBeats(beats []float64, duration float64) []float64 {
	out := make([]float64, 0, len(beats))
	prev := math.Inf(-1)
	for _, b := range beats {
		if math.IsNaN(b) || b < 0 || b >= duration || b <= prev {
			continue
		}
		out = append(out, b)
		prev = b
	}
	return out
}

func (tl *Timeline) Len() int { return len(tl.lines) }

func (tl *Timeline) Duration() float64 { return tl.duration }

// Lines returns a copy of the lines in order.
func (tl *Timeline) Lines() []Line {
	out := make([]Line, len(tl.lines))
	copy(out, tl.lines)
	return out
}

func (tl *Timeline) Line(index int) (Line, bool) {
	if index < 0 || index >= len(tl.lines) {
		return Line{}, false
	}
	return tl.lines[index], true
}

// Clone returns an independent snapshot.
func (tl *Timeline) Clone() *Timeline {
	return &Timeline{lines: tl.Lines(), duration: tl.duration}
}

// Update retimes one line in place. Edits that leave the bounds, invert the
// interval, or move Start past a neighbor's Start are rejected with an
// invalid_range error and leave the timeline untouched.
func (tl *Timeline) Update(index int, start, end float64) error {
	const op = "lyrics.update"
	if index < 0 || index >= len(tl.lines) {
		return apperr.New(apperr.KindInvalidRange, op, fmt.Sprintf("line %d out of range", index))
	}
	if math.IsNaN(start) || math.IsNaN(end) {
		return apperr.New(apperr.KindInvalidRange, op, "timing is not a number")
	}
	if end <= start {
		return apperr.New(apperr.KindInvalidRange, op, "end must be after start")
	}
	if start < 0 || end > tl.duration {
		return apperr.New(apperr.KindInvalidRange, op, fmt.Sprintf("timing must lie within 0 and %.2f seconds", tl.duration))
	}
	if index > 0 && start < tl.lines[index-1].Start {
		return apperr.New(apperr.KindInvalidRange, op, "start would move before the previous line")
	}
	if index+1 < len(tl.lines) && start > tl.lines[index+1].Start {
		return apperr.New(apperr.KindInvalidRange, op, "start would move past the next line")
	}
	tl.lines[index].Start = start
	tl.lines[index].End = end
	return nil
}

// Current returns the line whose [Start, End) contains t. With overlapping
// lines the latest starting one wins. False means t falls in a gap.
func (tl *Timeline) Current(t float64) (Line, bool) {
	i, ok := tl.currentIndex(t)
	if !ok {
		return Line{}, false
	}
	return tl.lines[i], true
}

func (tl *Timeline) currentIndex(t float64) (int, bool) {
	// first line starting after t
	next := sort.Search(len(tl.lines), func(i int) bool { return tl.lines[i].Start > t })
	for i := next - 1; i >= 0; i-- {
		if t < tl.lines[i].End {
			return i, true
		}
	}
	return -1, false
}

// Upcoming returns up to count lines starting strictly after t, in order.
func (tl *Timeline) Upcoming(t float64, count int) []Line {
	if count <= 0 {
		return nil
	}
	next := sort.Search(len(tl.lines), func(i int) bool { return tl.lines[i].Start > t })
	end := next + count
	if end > len(tl.lines) {
		end = len(tl.lines)
	}
	out := make([]Line, end-next)
	copy(out, tl.lines[next:end])
	return out
}
