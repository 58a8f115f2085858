package audio

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"karolbroda.com/lyricmotion/internal/apperr"
)

// BeatParams tunes the spectral-flux onset detector. Zero fields take the
// values from DefaultBeatParams.
type BeatParams struct {
	WindowSize int
	HopSize    int
	// ThresholdK scales the trailing stddev added to the trailing mean.
	ThresholdK float64
	// ThresholdWindow is the trailing window length in seconds.
	ThresholdWindow float64
	// MinInterval is the minimum spacing between accepted beats in seconds.
	MinInterval float64
}

func DefaultBeatParams() BeatParams {
	return BeatParams{
		WindowSize:      1024,
		HopSize:         512,
		ThresholdK:      1.5,
		ThresholdWindow: 1.0,
		MinInterval:     0.1,
	}
}

func (p BeatParams) withDefaults() BeatParams {
	def := DefaultBeatParams()
	if p.WindowSize <= 0 {
		p.WindowSize = def.WindowSize
	}
	if p.HopSize <= 0 {
		p.HopSize = def.HopSize
	}
	if p.ThresholdWindow <= 0 {
		p.ThresholdWindow = def.ThresholdWindow
	}
	if p.ThresholdK <= 0 {
		p.ThresholdK = def.ThresholdK
	}
	if p.MinInterval <= 0 {
		p.MinInterval = def.MinInterval
	}
	return p
}

// fluxFloor keeps numerical noise in silent passages from registering as onsets.
const fluxFloor = 1e-9

// DetectBeats returns strictly increasing onset times in [0, buf.Duration()].
// An empty result is not an error.
func DetectBeats(ctx context.Context, buf *Buffer, params BeatParams) ([]float64, error) {
	p := params.withDefaults()
	flux, err := spectralFlux(ctx, buf.samples, p.WindowSize, p.HopSize)
	if err != nil {
		return nil, err
	}

	rate := float64(buf.sampleRate)
	trailing := int(math.Round(p.ThresholdWindow * rate / float64(p.HopSize)))
	if trailing < 1 {
		trailing = 1
	}

	beats := make([]float64, 0)
	last := math.Inf(-1)
	for i := 1; i < len(flux); i++ {
		f := flux[i]
		if f <= fluxFloor || f <= flux[i-1] {
			continue
		}
		if i+1 < len(flux) && f < flux[i+1] {
			continue
		}
		if f <= threshold(flux, i, trailing, p.ThresholdK) {
			continue
		}

		t := (float64(i*p.HopSize) + float64(p.WindowSize)/2) / rate
		t = math.Min(math.Max(t, 0), buf.duration)
		if t <= last || t-last < p.MinInterval {
			continue
		}
		beats = append(beats, t)
		last = t
	}
	return beats, nil
}

// threshold is mean + k*stddev of the frames preceding i inside the trailing window.
func threshold(flux []float64, i, window int, k float64) float64 {
	start := i - window
	if start < 0 {
		start = 0
	}
	n := float64(i - start)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range flux[start:i] {
		sum += v
	}
	mean := sum / n
	var variance float64
	for _, v := range flux[start:i] {
		d := v - mean
		variance += d * d
	}
	return mean + k*math.Sqrt(variance/n)
}

// spectralFlux computes the half-wave rectified magnitude increase between
// consecutive Hann-windowed frames. flux[0] is always zero.
func spectralFlux(ctx context.Context, x []float32, n, hop int) ([]float64, error) {
	frames := 1 + int(math.Max(0, float64(len(x)-n))/float64(hop))
	win := hann(n)
	fft := fourier.NewFFT(n)

	buf := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	prev := make([]float64, n/2+1)
	cur := make([]float64, n/2+1)
	flux := make([]float64, frames)

	for i := 0; i < frames; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperr.Wrap(apperr.KindCancelled, "audio.beats", "beat detection cancelled", err)
			}
		}
		start := i * hop
		for k := 0; k < n; k++ {
			if start+k < len(x) {
				buf[k] = float64(x[start+k]) * win[k]
			} else {
				buf[k] = 0
			}
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			cur[k] = cmplx.Abs(c)
		}
		if i > 0 {
			var sum float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					sum += d
				}
			}
			flux[i] = sum
		}
		prev, cur = cur, prev
	}
	return flux, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
