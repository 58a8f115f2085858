package audio

import (
	"context"
	"log/slog"
	"time"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/logging"
)

type Options struct {
	Beats BeatParams
	// FFmpegPath decodes containers the pure-Go decoders don't handle. Empty disables it.
	FFmpegPath string
	Logger     *slog.Logger
}

type Analyzer struct {
	beats      BeatParams
	ffmpegPath string
	logger     *slog.Logger
}

func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{
		beats:      opts.Beats.withDefaults(),
		ffmpegPath: opts.FFmpegPath,
		logger:     logging.OrDiscard(opts.Logger).With("component", "audio"),
	}
}

// Decode turns raw file bytes into a Buffer.
func (a *Analyzer) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecode, opDecode, "audio is empty")
	}
	switch sniff(data) {
	case containerWAV:
		return decodeWAV(data)
	case containerMP3:
		return decodeMP3(data)
	default:
		return decodeFFmpeg(ctx, a.ffmpegPath, data)
	}
}

// Analyze decodes data and detects its beats. Identical input yields an
// identical duration and beat list.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*Buffer, []float64, error) {
	started := time.Now()
	buf, err := a.Decode(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	beats, err := DetectBeats(ctx, buf, a.beats)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("audio analyzed",
		"duration_seconds", buf.Duration(),
		"sample_rate", buf.SampleRate(),
		"channels", buf.Channels(),
		"beats", len(beats),
		"elapsed", time.Since(started),
	)
	return buf, beats, nil
}
