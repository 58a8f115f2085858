package lyrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"karolbroda.com/lyricmotion/internal/apperr"
)

// TimedLine is one LRC entry.
type TimedLine struct {
	TimeSeconds float64
	Text        string
}

// ParseSynced reads "[mm:ss.xx] text" lines. Lines with several leading
// timestamps produce one entry per timestamp; metadata tags are skipped.
func ParseSynced(raw string) []TimedLine {
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	result := make([]TimedLine, 0, len(lines))
	for _, line := range lines {
		stamps, text := splitLrcLine(strings.TrimSpace(line))
		if text == "" {
			continue
		}
		for _, stamp := range stamps {
			seconds, err := parseLrcTimeToSeconds(stamp)
			if err != nil {
				continue
			}
			result = append(result, TimedLine{TimeSeconds: seconds, Text: text})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimeSeconds < result[j].TimeSeconds
	})
	return result
}

// LooksSynced reports whether text contains at least one timed LRC line.
func LooksSynced(text string) bool {
	return len(ParseSynced(text)) > 0
}

// FromSynced builds a Timeline from LRC text. A line ends where the next
// later-starting line begins, or at duration. Stamps at or past duration are dropped.
func FromSynced(text string, duration float64) (*Timeline, error) {
	const op = "lyrics.lrc"
	if err := checkDuration(op, duration); err != nil {
		return nil, err
	}
	timed := ParseSynced(text)
	kept := timed[:0]
	for _, tl := range timed {
		if tl.TimeSeconds < duration {
			kept = append(kept, tl)
		}
	}
	if len(kept) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, op, "no timestamped lyric lines")
	}

	lines := make([]Line, len(kept))
	for i, tl := range kept {
		end := duration
		for j := i + 1; j < len(kept); j++ {
			if kept[j].TimeSeconds > tl.TimeSeconds {
				end = kept[j].TimeSeconds
				break
			}
		}
		lines[i] = Line{Text: tl.Text, Start: tl.TimeSeconds, End: end}
	}
	return &Timeline{lines: lines, duration: duration}, nil
}

func splitLrcLine(line string) ([]string, string) {
	var stamps []string
	rest := line
	for strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end <= 1 {
			return nil, ""
		}
		stamps = append(stamps, rest[1:end])
		rest = rest[end+1:]
	}
	if len(stamps) == 0 {
		return nil, ""
	}
	return stamps, strings.TrimSpace(rest)
}

func parseLrcTimeToSeconds(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("empty time value")
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", raw)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse float %q: %w", part, err)
		}
		total = total*60 + v
	}
	if total < 0 {
		return 0, errors.New("negative time not allowed")
	}
	return total, nil
}
