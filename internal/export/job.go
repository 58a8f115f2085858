// Package export drives a render job from validated inputs to an encoded blob.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/artwork"
	"karolbroda.com/lyricmotion/internal/compositor"
	"karolbroda.com/lyricmotion/internal/config"
	"karolbroda.com/lyricmotion/internal/encoder"
	"karolbroda.com/lyricmotion/internal/events"
	"karolbroda.com/lyricmotion/internal/logging"
	"karolbroda.com/lyricmotion/internal/lyrics"
)

const upcomingLines = 2

type Options struct {
	Format      compositor.Format
	Quality     encoder.Quality
	Codec       string
	FrameRate   int
	MaxDuration float64
	// Geometry overrides the format's output size when set.
	Geometry compositor.Geometry
}

func DefaultOptions() Options {
	return Options{
		Format:      compositor.Vertical,
		Quality:     encoder.QualityHigh,
		Codec:       encoder.MJPEGInfo.Codec,
		FrameRate:   config.DefaultFrameRate,
		MaxDuration: config.DefaultMaxDuration,
	}
}

// OptionsFromConfig parses the export section at the boundary.
func OptionsFromConfig(cfg config.ExportConfig) (Options, error) {
	format, err := compositor.ParseFormat(cfg.Format)
	if err != nil {
		return Options{}, err
	}
	quality, err := encoder.ParseQuality(cfg.Quality)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Format:      format,
		Quality:     quality,
		Codec:       cfg.Codec,
		FrameRate:   cfg.FrameRate,
		MaxDuration: cfg.MaxDuration,
	}, nil
}

func (o Options) geometry() compositor.Geometry {
	if o.Geometry.Width > 0 || o.Geometry.Height > 0 {
		return o.Geometry
	}
	return o.Format.Geometry()
}

// Input is what a job renders. The timeline must not be shared with writers.
type Input struct {
	Duration float64
	Palette  artwork.Palette
	Timeline *lyrics.Timeline
}

type Result struct {
	Blob      []byte
	Filename  string
	MIMEType  string
	Frames    int
	Truncated bool
}

type RenderFunc func(dst *compositor.Frame, t float64, theme artwork.Theme, current *lyrics.Line, upcoming []lyrics.Line)

// Recorder receives export telemetry.
type Recorder interface {
	ExportStarted(ctx context.Context)
	FrameRendered(ctx context.Context)
	ExportFinished(ctx context.Context, status string, elapsed time.Duration)
}

type Deps struct {
	Registry *encoder.Registry
	Render   RenderFunc
	Events   *events.Log
	Logger   *slog.Logger
	Metrics  Recorder
	// OnProgress is called synchronously after every transition and frame.
	OnProgress func(Progress)
	// Yield runs between frames in Run. A non-nil error stops the job as failed.
	Yield func(ctx context.Context, p Progress) error
	Now   func() time.Time
}

// Job is a single-use export. Step and Run must not be called concurrently;
// Cancel is safe from any goroutine.
type Job struct {
	input Input
	opts  Options
	deps  Deps
	log   *slog.Logger

	sampler *Sampler

	mu       sync.Mutex
	state    State
	progress Progress
	err      error
	result   *Result

	cancelled atomic.Bool

	sink      encoder.Sink
	info      encoder.Info
	frame     *compositor.Frame
	theme     artwork.Theme
	geom      compositor.Geometry
	total     int
	next      int
	truncated bool
	started   time.Time
}

func NewJob(input Input, opts Options, deps Deps) *Job {
	if deps.Render == nil {
		deps.Render = compositor.RenderInto
	}
	if deps.Registry == nil {
		deps.Registry = encoder.DefaultRegistry("")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Job{
		input:   input,
		opts:    opts,
		deps:    deps,
		log:     logging.OrDiscard(deps.Logger).With("component", "export"),
		sampler: NewSampler(5),
	}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Result is nil until the job completes.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// TotalFrames is known once Init succeeded.
func (j *Job) TotalFrames() int { return j.total }

// Cancel asks the job to stop at the next frame boundary.
func (j *Job) Cancel() { j.cancelled.Store(true) }

func (j *Job) setState(s State, percent float64) {
	j.mu.Lock()
	j.state = s
	if percent > j.progress.Percent {
		j.progress.Percent = percent
	}
	j.progress.State = s
	j.progress.Frame = j.next
	j.progress.Total = j.total
	p := j.progress
	j.mu.Unlock()
	if j.deps.OnProgress != nil {
		j.deps.OnProgress(p)
	}
}

func (j *Job) status(msg string) {
	if j.deps.Events != nil {
		j.deps.Events.Info(msg)
	}
}

// Init validates the input and opens the encoder.
func (j *Job) Init(ctx context.Context) error {
	const op = "export.init"
	if s := j.State(); s != StateIdle {
		return apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("job is %s", s))
	}
	j.started = j.deps.Now()
	if j.deps.Metrics != nil {
		j.deps.Metrics.ExportStarted(ctx)
	}
	j.status("Initializing video processor...")
	j.setState(StateInitializing, progressInit)

	if err := j.validate(); err != nil {
		return j.fail(err)
	}

	duration := j.input.Duration
	if duration > j.opts.MaxDuration {
		duration = j.opts.MaxDuration
		j.truncated = true
		msg := fmt.Sprintf("Audio is %.1fs long; export is limited to the first %.0f seconds", j.input.Duration, j.opts.MaxDuration)
		if j.deps.Events != nil {
			j.deps.Events.Warning(msg)
		} else {
			j.log.Warn(msg)
		}
	}
	j.total = int(math.Ceil(duration * float64(j.opts.FrameRate)))
	j.geom = j.opts.geometry()
	j.theme = artwork.NewTheme(j.input.Palette)

	sink, info, err := j.deps.Registry.New(ctx, encoder.Spec{
		Codec:     j.opts.Codec,
		Quality:   j.opts.Quality,
		FrameRate: j.opts.FrameRate,
		Width:     j.geom.Width,
		Height:    j.geom.Height,
	})
	if err != nil {
		return j.fail(err)
	}
	j.sink, j.info = sink, info
	j.frame = compositor.NewFrame(j.geom)

	j.log.Info("export initialized",
		slog.String("codec", info.Codec),
		slog.Int("width", j.geom.Width),
		slog.Int("height", j.geom.Height),
		slog.Int("frames", j.total),
		slog.Bool("truncated", j.truncated),
	)
	j.status("Recording video frames...")
	j.setState(StateRendering, progressRecording)
	return nil
}

func (j *Job) validate() error {
	const op = "export.validate"
	switch {
	case !(j.input.Duration > 0) || math.IsInf(j.input.Duration, 0):
		return apperr.New(apperr.KindInvalidInput, op, "audio duration must be positive")
	case len(j.input.Palette) == 0:
		return apperr.New(apperr.KindInvalidInput, op, "palette is empty")
	case j.input.Timeline == nil || j.input.Timeline.Len() == 0:
		return apperr.New(apperr.KindInvalidInput, op, "no lyrics to render")
	case j.opts.FrameRate <= 0:
		return apperr.New(apperr.KindInvalidInput, op, "frame rate must be positive")
	case !(j.opts.MaxDuration > 0):
		return apperr.New(apperr.KindInvalidInput, op, "max export duration must be positive")
	case !j.opts.geometry().Valid():
		g := j.opts.geometry()
		return apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("invalid output size %dx%d", g.Width, g.Height))
	}
	return nil
}

// Step advances the job by one unit of work: Init when idle, one frame while
// rendering, and the finalize after the last frame. done is true once the
// job reached a terminal state.
func (j *Job) Step(ctx context.Context) (bool, error) {
	switch s := j.State(); s {
	case StateIdle:
		if err := j.Init(ctx); err != nil {
			return true, err
		}
		return false, nil
	case StateRendering:
	case StateCompleted:
		return true, nil
	case StateFailed, StateCancelled:
		return true, j.Err()
	default:
		return true, apperr.New(apperr.KindInvalidInput, "export.step", fmt.Sprintf("cannot step a %s job", s))
	}

	if j.cancelled.Load() || ctx.Err() != nil {
		return true, j.abort(ctx.Err())
	}

	if err := j.renderFrame(ctx, j.next); err != nil {
		return true, j.fail(apperr.Wrap(apperr.KindEncoder, "export.frame", fmt.Sprintf("frame %d", j.next), err))
	}
	j.next++
	if j.deps.Metrics != nil {
		j.deps.Metrics.FrameRendered(ctx)
	}
	pct := frameProgress(j.next-1, j.total)
	j.setState(StateRendering, pct)
	if j.sampler.Sample(Progress{State: StateRendering, Percent: pct, Frame: j.next, Total: j.total}) {
		j.log.Debug("rendering", slog.Int("frame", j.next), slog.Int("total", j.total), slog.Float64("percent", pct))
	}

	if j.next < j.total {
		return false, nil
	}
	return true, j.finalize(ctx)
}

func (j *Job) renderFrame(ctx context.Context, i int) error {
	t := float64(i) / float64(j.opts.FrameRate)
	var current *lyrics.Line
	if line, ok := j.input.Timeline.Current(t); ok {
		current = &line
	}
	j.deps.Render(j.frame, t, j.theme, current, j.input.Timeline.Upcoming(t, upcomingLines))
	return j.sink.AcceptFrame(ctx, j.frame.Image)
}

func (j *Job) finalize(ctx context.Context) error {
	j.status("Finalizing video...")
	j.setState(StateFinalizing, progressRenderEnd)

	blob, err := j.sink.Finish(ctx)
	j.sink = nil
	j.frame = nil
	if err != nil {
		return j.fail(apperr.Wrap(apperr.KindEncoder, "export.finish", "finalize video", err))
	}

	res := &Result{
		Blob:      blob,
		Filename:  fmt.Sprintf("lyricmotion-%s-%d.%s", j.opts.Format, j.deps.Now().UnixMilli(), j.info.Ext),
		MIMEType:  j.info.MIMEType,
		Frames:    j.total,
		Truncated: j.truncated,
	}
	j.mu.Lock()
	j.result = res
	j.mu.Unlock()
	j.setState(StateCompleted, progressDone)
	j.finished(ctx, StateCompleted)
	j.log.Info("export completed", slog.String("file", res.Filename), slog.Int("bytes", len(blob)))
	return nil
}

func (j *Job) release() {
	if j.sink != nil {
		j.sink.Abort()
		j.sink = nil
	}
	j.frame = nil
}

func (j *Job) fail(err error) error {
	j.release()
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	j.setState(StateFailed, 0)
	j.finished(context.Background(), StateFailed)
	j.log.Error("export failed", slog.String("kind", string(apperr.KindOf(err))), slog.Any("error", err))
	return err
}

func (j *Job) abort(cause error) error {
	j.release()
	msg := fmt.Sprintf("stopped at frame %d of %d", j.next, j.total)
	err := apperr.Wrap(apperr.KindCancelled, "export.step", msg, cause)
	if cause == nil {
		err = apperr.New(apperr.KindCancelled, "export.step", msg)
	}
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	j.setState(StateCancelled, 0)
	j.finished(context.Background(), StateCancelled)
	j.log.Info("export cancelled", slog.Int("frame", j.next), slog.Int("total", j.total))
	return err
}

func (j *Job) finished(ctx context.Context, s State) {
	if j.deps.Metrics != nil && !j.started.IsZero() {
		j.deps.Metrics.ExportFinished(ctx, s.String(), j.deps.Now().Sub(j.started))
	}
}

// Run drives the job to a terminal state.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	for {
		done, err := j.Step(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return j.Result(), nil
		}
		if j.deps.Yield != nil {
			if err := j.deps.Yield(ctx, j.Progress()); err != nil {
				if ctx.Err() != nil || apperr.KindOf(err) == apperr.KindCancelled {
					return nil, j.abort(err)
				}
				return nil, j.fail(err)
			}
		}
	}
}
