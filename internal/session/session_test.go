package session

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/audio"
	"karolbroda.com/lyricmotion/internal/colors"
	"karolbroda.com/lyricmotion/internal/compositor"
	"karolbroda.com/lyricmotion/internal/encoder"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
	"karolbroda.com/lyricmotion/internal/lyrics"
)

type fakeAnalyzer struct {
	duration float64
	beats    []float64
	err      error
	calls    int
}

func (f *fakeAnalyzer) Analyze(context.Context, []byte) (*audio.Buffer, []float64, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	const rate = 100
	buf, err := audio.FromSamples(make([]float32, int(f.duration*rate)), rate, 1)
	if err != nil {
		return nil, nil, err
	}
	return buf, f.beats, nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract([]byte) (artwork.Palette, error) {
	if f.err != nil {
		return nil, f.err
	}
	return artwork.Palette{colors.MustHex("#C04040"), colors.MustHex("#4040C0"), colors.MustHex("#40C040")}, nil
}

type countingSink struct {
	mu      sync.Mutex
	frames  int
	aborted bool
}

func (c *countingSink) AcceptFrame(context.Context, *image.RGBA) error {
	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
	return nil
}
func (c *countingSink) Finish(context.Context) ([]byte, error) { return []byte("video"), nil }
func (c *countingSink) Abort()                                 { c.aborted = true }

func newTestSession(an *fakeAnalyzer, ex *fakeExtractor) (*Session, *countingSink) {
	sink := &countingSink{}
	reg := encoder.NewRegistry()
	reg.Register(encoder.Info{Codec: "test", MIMEType: "video/test", Ext: "bin"}, func(context.Context, encoder.Spec) (encoder.Sink, error) {
		return sink, nil
	})
	s := New(Options{
		Analyzer:  an,
		Extractor: ex,
		Registry:  reg,
		Render:    func(*compositor.Frame, float64, artwork.Theme, *lyrics.Line, []lyrics.Line) {},
	})
	return s, sink
}

func testExportOptions() export.Options {
	opts := export.DefaultOptions()
	opts.Codec = "test"
	opts.Geometry = compositor.Geometry{Width: 16, Height: 16}
	return opts
}

func count(s *Session, sev events.Severity) int {
	n := 0
	for _, e := range s.Events().Entries() {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

func hasMessage(s *Session, msg string) bool {
	for _, e := range s.Events().Entries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

var (
	someAudio = []byte("audio")
	someImage = []byte("image")
)

func TestProcessIntervalSync(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 10}, &fakeExtractor{})
	if err := s.Process(context.Background(), someAudio, someImage, "line1\nline2"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []lyrics.Line{{Text: "line1", Start: 0, End: 5}, {Text: "line2", Start: 5, End: 10}}
	got := s.Timeline().Lines()
	if len(got) != len(want) {
		t.Fatalf("lines = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !hasMessage(s, "Lyrics synced with time intervals") {
		t.Error("missing interval sync event")
	}
	if !hasMessage(s, "Audio processed successfully: 10.00s duration") || !hasMessage(s, "Found 3 dominant colors") {
		t.Error("missing analysis events")
	}
}

func TestProcessBeatSync(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 8, beats: []float64{1, 3, 6}}, &fakeExtractor{})
	if err := s.Process(context.Background(), someAudio, someImage, "a\nb\nc"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	lines := s.Timeline().Lines()
	starts := []float64{1, 3, 6}
	ends := []float64{3, 6, 8}
	for i, l := range lines {
		if l.Start != starts[i] || l.End != ends[i] {
			t.Errorf("line %d = [%v, %v], want [%v, %v]", i, l.Start, l.End, starts[i], ends[i])
		}
	}
	if !hasMessage(s, "Lyrics synced with detected beats") || !hasMessage(s, "Detected 3 beats") {
		t.Error("missing beat sync events")
	}
}

func TestProcessMissingInput(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 10}, &fakeExtractor{})
	err := s.Process(context.Background(), someAudio, nil, "x")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	entries := s.Events().Entries()
	if len(entries) != 1 || entries[0].Message != "Processing failed: Please upload audio file, image file, and enter lyrics" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestAnalysisFailuresAreIndependent(t *testing.T) {
	an := &fakeAnalyzer{err: apperr.New(apperr.KindDecode, "audio.decode", "unsupported audio format")}
	s, _ := newTestSession(an, &fakeExtractor{})
	err := s.Process(context.Background(), someAudio, someImage, "x")
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("err = %v", err)
	}
	if got := count(s, events.SeverityError); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
	// the palette still finished
	if !hasMessage(s, "Found 3 dominant colors") {
		t.Error("palette extraction should not be cancelled by the audio failure")
	}

	s2, _ := newTestSession(&fakeAnalyzer{err: errors.New("a")}, &fakeExtractor{err: apperr.New(apperr.KindDecode, "artwork.decode", "bad image")})
	_ = s2.Process(context.Background(), someAudio, someImage, "x")
	if got := count(s2, events.SeverityError); got != 2 {
		t.Errorf("error events = %d, want one per failed stage", got)
	}
}

func TestAnalysisIsMemoized(t *testing.T) {
	an := &fakeAnalyzer{duration: 4}
	s, _ := newTestSession(an, &fakeExtractor{})
	ctx := context.Background()
	for range 2 {
		if err := s.AnalyzeAudio(ctx, someAudio); err != nil {
			t.Fatal(err)
		}
	}
	if an.calls != 1 {
		t.Errorf("analyzer calls = %d, want 1", an.calls)
	}
}

func TestUpdateLyricTiming(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 9}, &fakeExtractor{})
	if err := s.Process(context.Background(), someAudio, someImage, "a\nb\nc"); err != nil {
		t.Fatal(err)
	}
	before := s.Timeline().Lines()

	err := s.UpdateLyricTiming(1, 7, 8)
	if !errors.Is(err, apperr.ErrInvalidRange) {
		t.Fatalf("err = %v, want invalid range", err)
	}
	after := s.Timeline().Lines()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("line %d changed on rejected edit", i)
		}
	}

	if err := s.UpdateLyricTiming(1, 4, 5); err != nil {
		t.Fatalf("valid edit: %v", err)
	}
	if cur, ok := s.CurrentLyric(4.5); !ok || cur.Text != "b" {
		t.Errorf("current = %+v, %v", cur, ok)
	}
	if up := s.UpcomingLyrics(0.5, 5); len(up) != 2 || up[0].Text != "b" {
		t.Errorf("upcoming = %+v", up)
	}
}

func TestImportLRC(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 20}, &fakeExtractor{})
	if err := s.Process(context.Background(), someAudio, someImage, "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.ImportLRC("[00:01.00]one\n[00:05.50]two"); err != nil {
		t.Fatalf("ImportLRC: %v", err)
	}
	lines := s.Timeline().Lines()
	if len(lines) != 2 || lines[1].Start != 5.5 {
		t.Errorf("lines = %+v", lines)
	}
}

func TestExportTruncationWarnsOnce(t *testing.T) {
	s, sink := newTestSession(&fakeAnalyzer{duration: 45}, &fakeExtractor{})
	ctx := context.Background()
	if err := s.Process(ctx, someAudio, someImage, "a\nb"); err != nil {
		t.Fatal(err)
	}
	res, err := s.Export(ctx, testExportOptions(), ExportHooks{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Frames != 900 || sink.frames != 900 {
		t.Errorf("frames = %d / %d", res.Frames, sink.frames)
	}
	if got := count(s, events.SeverityWarning); got != 1 {
		t.Errorf("warnings = %d, want 1", got)
	}
	if !hasMessage(s, "Video exported successfully!") || !hasMessage(s, "Export settings: vertical format, high quality") {
		t.Error("missing export events")
	}
	if s.Exporting() {
		t.Error("export slot not released")
	}
}

func TestExportInProgressAndCancel(t *testing.T) {
	s, sink := newTestSession(&fakeAnalyzer{duration: 45}, &fakeExtractor{})
	ctx := context.Background()
	if err := s.Process(ctx, someAudio, someImage, "a\nb"); err != nil {
		t.Fatal(err)
	}

	var secondErr error
	hooks := ExportHooks{Yield: func(ctx context.Context, p export.Progress) error {
		if p.Frame == 50 {
			_, secondErr = s.Export(ctx, testExportOptions(), ExportHooks{})
			s.CancelExport()
		}
		return nil
	}}
	res, err := s.Export(ctx, testExportOptions(), hooks)
	if !errors.Is(err, apperr.ErrCancelled) || res != nil {
		t.Fatalf("res=%v err=%v, want cancelled", res, err)
	}
	if !errors.Is(secondErr, apperr.ErrExportInProgress) {
		t.Errorf("second export err = %v", secondErr)
	}
	if sink.frames != 50 || !sink.aborted {
		t.Errorf("sink frames=%d aborted=%v", sink.frames, sink.aborted)
	}
	if got := count(s, events.SeverityError); got != 1 {
		t.Errorf("error events = %d, want 1 for the rejected export", got)
	}
	// truncation warning plus the cancellation warning
	if got := count(s, events.SeverityWarning); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
	if s.Exporting() {
		t.Error("export slot not released")
	}
	// analysis survives for a retry
	if s.Analysis() == nil || s.Timeline() == nil {
		t.Error("analysis lost after cancel")
	}
}

func TestExportWithoutAnalysis(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 5}, &fakeExtractor{})
	_, err := s.Export(context.Background(), testExportOptions(), ExportHooks{})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestReset(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 5}, &fakeExtractor{})
	_ = s.Process(context.Background(), someAudio, someImage, "a")
	s.Reset()
	if s.Analysis() != nil || s.Timeline() != nil {
		t.Error("reset kept state")
	}
	entries := s.Events().Entries()
	if len(entries) != 1 || entries[0].Message != "Reset completed" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFailedUploadDropsPreviousTrack(t *testing.T) {
	an := &fakeAnalyzer{duration: 8}
	s, _ := newTestSession(an, &fakeExtractor{})
	ctx := context.Background()
	if err := s.Process(ctx, someAudio, someImage, "a\nb"); err != nil {
		t.Fatal(err)
	}

	an.err = apperr.New(apperr.KindDecode, "audio.decode", "bad")
	err := s.Process(ctx, []byte("other audio"), someImage, "a\nb")
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("err = %v", err)
	}
	if s.Analysis() != nil {
		t.Error("analysis of the previous track survived a failed upload")
	}
	if s.Timeline() != nil {
		t.Error("timeline of the previous track survived a failed upload")
	}
	if _, err := s.Export(ctx, testExportOptions(), ExportHooks{}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("export err = %v, want invalid input", err)
	}
}

func TestFailedArtworkDropsPreviousPalette(t *testing.T) {
	ex := &fakeExtractor{}
	s, _ := newTestSession(&fakeAnalyzer{duration: 5}, ex)
	ctx := context.Background()
	if err := s.Analyze(ctx, someAudio, someImage); err != nil {
		t.Fatal(err)
	}
	ex.err = apperr.New(apperr.KindDecode, "artwork.decode", "bad image")
	if err := s.ExtractPalette(ctx, []byte("other image")); err == nil {
		t.Fatal("expected error")
	}
	if s.Analysis() != nil {
		t.Error("palette of the previous image survived a failed upload")
	}
}

func TestProcessStartsWithFreshLog(t *testing.T) {
	s, _ := newTestSession(&fakeAnalyzer{duration: 5}, &fakeExtractor{})
	ctx := context.Background()
	if err := s.Process(ctx, someAudio, someImage, "a"); err != nil {
		t.Fatal(err)
	}
	first := len(s.Events().Entries())
	if err := s.Process(ctx, someAudio, someImage, "a"); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Events().Entries()); got != first {
		t.Errorf("entries after second run = %d, want %d", got, first)
	}
}

// pairedClicks is a 16-bit mono WAV with two 1 kHz bursts 50ms apart at
// each onset.
func pairedClicks(t *testing.T, duration float64, onsets []float64) []byte {
	t.Helper()
	const rate = 22050
	data := make([]int, int(duration*rate))
	burst := int(0.02 * rate)
	for _, onset := range onsets {
		for _, at := range []float64{onset, onset + 0.05} {
			start := int(at * rate)
			for i := 0; i < burst && start+i < len(data); i++ {
				data[start+i] = int(0.8 * math.Sin(2*math.Pi*1000*float64(i)/rate) * 32767)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "clicks.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDefaultAnalyzerKeepsMinimumBeatSpacing(t *testing.T) {
	s := New(Options{})
	data := pairedClicks(t, 3, []float64{0.3, 1.1, 1.9})
	if err := s.AnalyzeAudio(context.Background(), data); err != nil {
		t.Fatalf("AnalyzeAudio: %v", err)
	}

	s.mu.Lock()
	beats := append([]float64(nil), s.beats...)
	duration := s.buffer.Duration()
	s.mu.Unlock()

	if len(beats) == 0 {
		t.Fatal("no beats detected")
	}
	if len(beats) > 3 {
		t.Errorf("beats = %v, want at most one per click pair", beats)
	}
	for i, b := range beats {
		if b < 0 || b > duration {
			t.Errorf("beat %v outside [0, %v]", b, duration)
		}
		if i > 0 && b-beats[i-1] < 0.1-1e-9 {
			t.Errorf("beats %v and %v closer than 100ms", beats[i-1], b)
		}
	}
}
