package session

import (
	"context"
	"fmt"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/export"
)

type ExportHooks struct {
	OnProgress func(export.Progress)
	Yield      func(ctx context.Context, p export.Progress) error
}

// Export renders the current timeline snapshot. Only one export runs per
// session; a second call while one is active fails without touching the first.
func (s *Session) Export(ctx context.Context, opts export.Options, hooks ExportHooks) (*export.Result, error) {
	s.events.Info("Starting video export...")

	s.mu.Lock()
	if s.job != nil {
		s.mu.Unlock()
		return nil, s.fail("Export failed", apperr.New(apperr.KindExportInProgress, "session.export", "an export is already running"))
	}
	input, err := s.exportInput()
	if err != nil {
		s.mu.Unlock()
		return nil, s.fail("Export failed", err)
	}

	deps := export.Deps{
		Registry:   s.opts.Registry,
		Render:     s.opts.Render,
		Events:     s.events,
		Logger:     s.logger,
		OnProgress: hooks.OnProgress,
		Yield:      hooks.Yield,
	}
	if s.opts.Metrics != nil {
		deps.Metrics = s.opts.Metrics
	}
	job := export.NewJob(input, opts, deps)
	s.job = job
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.job = nil
		s.mu.Unlock()
	}()

	s.events.Info(fmt.Sprintf("Export settings: %s format, %s quality", opts.Format, opts.Quality))
	res, err := job.Run(ctx)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindCancelled {
			return nil, s.fail("Export cancelled", err)
		}
		return nil, s.fail("Export failed", err)
	}
	s.events.Success("Video exported successfully!")
	return res, nil
}

func (s *Session) exportInput() (export.Input, error) {
	const op = "session.export"
	switch {
	case s.buffer == nil || len(s.palette) == 0:
		return export.Input{}, apperr.New(apperr.KindInvalidInput, op, "audio and artwork must be processed first")
	case s.timeline == nil:
		return export.Input{}, apperr.New(apperr.KindInvalidInput, op, "no lyrics have been synced")
	}
	return export.Input{
		Duration: s.buffer.Duration(),
		Palette:  s.palette,
		Timeline: s.timeline.Clone(),
	}, nil
}

// Exporting reports whether an export is active.
func (s *Session) Exporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

// CancelExport stops the active export at its next frame, if any.
func (s *Session) CancelExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return false
	}
	s.job.Cancel()
	return true
}
