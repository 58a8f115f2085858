// Package session holds everything one user works on between uploading
// files and exporting a video. The caller owns the Session and passes it
// around; nothing here is global.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/audio"
	"karolbroda.com/lyricmotion/internal/cache"
	"karolbroda.com/lyricmotion/internal/encoder"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/export"
	"karolbroda.com/lyricmotion/internal/logging"
	"karolbroda.com/lyricmotion/internal/lyrics"
	"karolbroda.com/lyricmotion/internal/observe"
)

const analysisTTL = time.Hour

type AudioAnalyzer interface {
	Analyze(ctx context.Context, data []byte) (*audio.Buffer, []float64, error)
}

type PaletteExtractor interface {
	Extract(data []byte) (artwork.Palette, error)
}

type Options struct {
	Analyzer  AudioAnalyzer
	Extractor PaletteExtractor
	Registry  *encoder.Registry
	Metrics   *observe.Metrics
	Logger    *slog.Logger
	// EventCapacity bounds the status log, events.DefaultCapacity when zero.
	EventCapacity int
	// Render replaces the compositor, mostly for tests.
	Render export.RenderFunc
}

type audioResult struct {
	buffer *audio.Buffer
	beats  []float64
}

// Analysis is a read-only view of the current inputs.
type Analysis struct {
	Duration float64
	Beats    []float64
	Palette  artwork.Palette
	Theme    artwork.Theme
}

type Session struct {
	ID string

	events *events.Log
	logger *slog.Logger
	opts   Options

	audioMemo   *cache.Memo[audioResult]
	paletteMemo *cache.Memo[artwork.Palette]

	mu       sync.Mutex
	buffer   *audio.Buffer
	beats    []float64
	palette  artwork.Palette
	theme    artwork.Theme
	text     string
	timeline *lyrics.Timeline
	job      *export.Job
}

func New(opts Options) *Session {
	if opts.Analyzer == nil {
		opts.Analyzer = audio.NewAnalyzer(audio.Options{Logger: opts.Logger})
	}
	if opts.Extractor == nil {
		opts.Extractor = artwork.NewExtractor(0, artwork.MethodBinning, 0, opts.Logger)
	}
	if opts.Registry == nil {
		opts.Registry = encoder.DefaultRegistry("")
	}
	id := uuid.NewString()
	logger := logging.OrDiscard(opts.Logger).With("session", id)
	return &Session{
		ID:          id,
		events:      events.NewLog(opts.EventCapacity, logger),
		logger:      logger,
		opts:        opts,
		audioMemo:   cache.New[audioResult](analysisTTL),
		paletteMemo: cache.New[artwork.Palette](analysisTTL),
		theme:       artwork.DefaultTheme(),
	}
}

func (s *Session) Events() *events.Log { return s.events }

// Analysis returns nil until both audio and artwork have been analyzed.
func (s *Session) Analysis() *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil || len(s.palette) == 0 {
		return nil
	}
	return &Analysis{
		Duration: s.buffer.Duration(),
		Beats:    append([]float64(nil), s.beats...),
		Palette:  append(artwork.Palette(nil), s.palette...),
		Theme:    s.theme,
	}
}

// Timeline returns a copy of the current timeline, or nil.
func (s *Session) Timeline() *lyrics.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return nil
	}
	return s.timeline.Clone()
}

// fail records err as the single error event for one operation.
func (s *Session) fail(prefix string, err error) error {
	if apperr.KindOf(err) == apperr.KindCancelled {
		s.events.Warning(prefix + ": " + apperr.Message(err))
		return err
	}
	s.events.Failure(prefix, err)
	return err
}

// Process runs the full upload flow: analyze audio and artwork in parallel,
// then sync lyrics to the detected beats.
func (s *Session) Process(ctx context.Context, audioData, imageData []byte, text string) error {
	s.events.Clear()
	if len(audioData) == 0 || len(imageData) == 0 || len(lyrics.SplitLines(text)) == 0 {
		err := apperr.New(apperr.KindInvalidInput, "session.process", "Please upload audio file, image file, and enter lyrics")
		s.events.Failure("Processing failed", err)
		return err
	}
	s.events.Info("Starting file processing...")

	if err := s.Analyze(ctx, audioData, imageData); err != nil {
		return err
	}
	if err := s.SyncLyrics(text); err != nil {
		return err
	}
	s.events.Success("Processing completed successfully!")
	return nil
}

// Analyze runs both stages to completion even when one fails; each failure
// reports its own event.
func (s *Session) Analyze(ctx context.Context, audioData, imageData []byte) error {
	var g errgroup.Group
	g.Go(func() error { return s.AnalyzeAudio(ctx, audioData) })
	g.Go(func() error { return s.ExtractPalette(ctx, imageData) })
	return g.Wait()
}

// AnalyzeAudio replaces the session's audio. The previous track's buffer
// and timeline are dropped first, so a failed upload leaves nothing to export.
func (s *Session) AnalyzeAudio(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.buffer, s.beats = nil, nil
	s.text, s.timeline = "", nil
	s.mu.Unlock()

	s.events.Info("Processing audio file...")
	started := time.Now()

	key := cache.ContentKey("audio", data)
	res, err := s.audioMemo.Get(key)
	if err != nil {
		buf, beats, aerr := s.opts.Analyzer.Analyze(ctx, data)
		if s.opts.Metrics != nil {
			s.opts.Metrics.AnalysisFinished(ctx, "audio", time.Since(started), aerr)
		}
		if aerr != nil {
			return s.fail("Processing failed", aerr)
		}
		res = audioResult{buffer: buf, beats: beats}
		s.audioMemo.Set(key, res)
	}

	s.mu.Lock()
	s.buffer, s.beats = res.buffer, res.beats
	s.mu.Unlock()

	s.events.Success(fmt.Sprintf("Audio processed successfully: %.2fs duration", res.buffer.Duration()))
	s.events.Info("Detecting beats in audio...")
	s.events.Success(fmt.Sprintf("Detected %d beats", len(res.beats)))
	return nil
}

func (s *Session) ExtractPalette(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.palette, s.theme = nil, artwork.DefaultTheme()
	s.mu.Unlock()

	s.events.Info("Extracting dominant colors from image...")
	started := time.Now()

	key := cache.ContentKey("image", data)
	palette, err := s.paletteMemo.Get(key)
	if err != nil {
		var perr error
		palette, perr = s.opts.Extractor.Extract(data)
		if s.opts.Metrics != nil {
			s.opts.Metrics.AnalysisFinished(ctx, "palette", time.Since(started), perr)
		}
		if perr != nil {
			return s.fail("Processing failed", perr)
		}
		s.paletteMemo.Set(key, palette)
	}

	theme := artwork.NewTheme(palette)
	s.mu.Lock()
	s.palette, s.theme = palette, theme
	s.mu.Unlock()

	s.events.Success(fmt.Sprintf("Found %d dominant colors", len(palette)))
	return nil
}

func (s *Session) duration(op string) (float64, []float64, error) {
	if s.buffer == nil {
		return 0, nil, apperr.New(apperr.KindInvalidInput, op, "audio has not been processed")
	}
	return s.buffer.Duration(), s.beats, nil
}

// SyncLyrics aligns text to the detected beats, or to equal intervals when
// the track has none.
func (s *Session) SyncLyrics(text string) error {
	s.events.Info("Syncing lyrics with audio...")
	s.mu.Lock()
	duration, beats, err := s.duration("session.sync")
	var tl *lyrics.Timeline
	if err == nil {
		if len(beats) > 0 {
			tl, err = lyrics.AutoSyncWithBeats(text, beats, duration)
		} else {
			tl, err = lyrics.ParseLyrics(text, duration)
		}
	}
	if err == nil {
		s.text, s.timeline = text, tl
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail("Lyrics sync failed", err)
	}
	if len(beats) > 0 {
		s.events.Success("Lyrics synced with detected beats")
	} else {
		s.events.Success("Lyrics synced with time intervals")
	}
	return nil
}

// AutoSync re-aligns text to the beats. Without beats it behaves like SyncLyrics.
func (s *Session) AutoSync(text string) error {
	s.events.Info("Auto-syncing lyrics with beats...")
	if err := s.SyncLyrics(text); err != nil {
		return err
	}
	s.events.Success("Lyrics auto-synced successfully")
	return nil
}

// ManualSync spreads text over equal intervals, ignoring beats.
func (s *Session) ManualSync(text string) error {
	s.events.Info("Manually syncing lyrics...")
	s.mu.Lock()
	duration, _, err := s.duration("session.manual_sync")
	var tl *lyrics.Timeline
	if err == nil {
		tl, err = lyrics.ParseLyrics(text, duration)
	}
	if err == nil {
		s.text, s.timeline = text, tl
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail("Lyrics sync failed", err)
	}
	s.events.Success("Lyrics manually synced")
	return nil
}

// ImportLRC replaces the timeline with timestamped lyrics.
func (s *Session) ImportLRC(text string) error {
	s.mu.Lock()
	duration, _, err := s.duration("session.import_lrc")
	var tl *lyrics.Timeline
	if err == nil {
		tl, err = lyrics.FromSynced(text, duration)
	}
	if err == nil {
		s.text, s.timeline = text, tl
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail("Lyrics import failed", err)
	}
	s.events.Success(fmt.Sprintf("Imported %d timed lines", tl.Len()))
	return nil
}

// UpdateLyricTiming retimes one line. A rejected edit leaves the timeline untouched.
func (s *Session) UpdateLyricTiming(index int, start, end float64) error {
	s.mu.Lock()
	var err error
	if s.timeline == nil {
		err = apperr.New(apperr.KindInvalidInput, "session.update_timing", "no lyrics have been synced")
	} else {
		err = s.timeline.Update(index, start, end)
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail("Timing update failed", err)
	}
	s.logger.Debug("lyric retimed", slog.Int("index", index), slog.Float64("start", start), slog.Float64("end", end))
	return nil
}

func (s *Session) CurrentLyric(t float64) (lyrics.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return lyrics.Line{}, false
	}
	return s.timeline.Current(t)
}

func (s *Session) UpcomingLyrics(t float64, count int) []lyrics.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeline == nil {
		return nil
	}
	return s.timeline.Upcoming(t, count)
}

// Reset cancels any running export and drops all inputs.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.job != nil {
		s.job.Cancel()
	}
	s.buffer, s.beats = nil, nil
	s.palette, s.theme = nil, artwork.DefaultTheme()
	s.text, s.timeline = "", nil
	s.mu.Unlock()

	s.events.Clear()
	s.events.Info("Reset completed")
}
