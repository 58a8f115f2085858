package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"karolbroda.com/lyricmotion/internal/apperr"
)

const (
	opDecode = "audio.decode"

	// sample rate requested from ffmpeg for containers decoded out of process
	ffmpegSampleRate = 44100
)

type container int

const (
	containerUnknown container = iota
	containerWAV
	containerMP3
)

func sniff(data []byte) container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return containerWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return containerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return containerMP3
	}
	return containerUnknown
}

func decodeWAV(data []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, apperr.New(apperr.KindDecode, opDecode, "invalid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "failed to read wav samples", err)
	}
	if buf.Format == nil {
		return nil, apperr.New(apperr.KindDecode, opDecode, "wav format missing")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, apperr.New(apperr.KindDecode, opDecode, "wav has no channels")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, apperr.New(apperr.KindDecode, opDecode, fmt.Sprintf("unsupported wav bit depth %d", bitDepth))
	}

	scale := float64(int64(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := range samples {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = float32(sum / float64(channels) / scale)
	}
	return newBuffer(samples, buf.Format.SampleRate, channels)
}

func decodeMP3(data []byte) (*Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "invalid mp3 stream", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "failed to decode mp3", err)
	}

	// go-mp3 always emits s16le stereo
	const bytesPerFrame = 4
	samples := make([]float32, len(pcm)/bytesPerFrame)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		samples[i] = float32((float64(left)+float64(right))/2) / 32768
	}
	return newBuffer(samples, decoder.SampleRate(), 2)
}

// decodeFFmpeg pipes data through ffmpeg and reads back mono f32le.
func decodeFFmpeg(ctx context.Context, ffmpegPath string, data []byte) (*Buffer, error) {
	if strings.TrimSpace(ffmpegPath) == "" {
		return nil, apperr.New(apperr.KindDecode, opDecode, "unsupported audio format")
	}
	bin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "unsupported audio format", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-v", "error",
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", ffmpegSampleRate),
		"-f", "f32le",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.Wrap(apperr.KindCancelled, opDecode, "decode cancelled", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "unsupported audio format", err)
	}

	raw := stdout.Bytes()
	if len(raw)%4 != 0 {
		return nil, apperr.Wrap(apperr.KindDecode, opDecode, "truncated ffmpeg output", errors.New("unexpected byte length"))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return newBuffer(samples, ffmpegSampleRate, 1)
}
