package lyrics

import (
	"errors"
	"testing"

	"karolbroda.com/lyricmotion/internal/apperr"
)

const sampleLRC = `[ar:Someone]
[ti:Something]
[00:01.50] first
[00:04.00]second
[00:04.00] second harmony
[01:02.25] late
[00:09.00][00:12.00] chorus
not a timed line
`

func TestParseSynced(t *testing.T) {
	got := ParseSynced(sampleLRC)
	want := []TimedLine{
		{1.5, "first"},
		{4, "second"},
		{4, "second harmony"},
		{9, "chorus"},
		{12, "chorus"},
		{62.25, "late"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseLrcTime(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:01.50", 1.5, false},
		{"3:05", 185, false},
		{"1:00:00", 3600, false},
		{"ar:Someone", 0, true},
		{"", 0, true},
		{"12", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLrcTimeToSeconds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromSynced(t *testing.T) {
	tl, err := FromSynced(sampleLRC, 30)
	if err != nil {
		t.Fatal(err)
	}
	// late line at 62.25 is past the track and dropped
	want := []Line{
		{"first", 1.5, 4},
		{"second", 4, 9},
		{"second harmony", 4, 9},
		{"chorus", 9, 12},
		{"chorus", 12, 30},
	}
	assertLines(t, tl.Lines(), want)

	if cur, ok := tl.Current(5); !ok || cur.Text != "second harmony" {
		t.Errorf("current at 5 = %q, %v", cur.Text, ok)
	}
}

func TestFromSyncedWithoutStamps(t *testing.T) {
	if _, err := FromSynced("just\nplain", 10); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
	if LooksSynced("just\nplain") {
		t.Error("plain text should not look synced")
	}
	if !LooksSynced(sampleLRC) {
		t.Error("lrc should look synced")
	}
}
