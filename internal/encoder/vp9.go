package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"karolbroda.com/lyricmotion/internal/apperr"
)

var VP9Info = Info{Codec: "vp9", MIMEType: "video/webm;codecs=vp9", Ext: "webm"}

func vp9CRF(q Quality) int {
	switch q {
	case QualityLow:
		return 40
	case QualityMedium:
		return 33
	default:
		return 24
	}
}

// vp9Sink pipes raw RGBA frames into an ffmpeg child and collects the webm
// it writes to stdout.
type vp9Sink struct {
	spec   Spec
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc

	out    bytes.Buffer
	stderr lockedBuffer
	done   chan error

	mu     sync.Mutex
	closed bool
}

func NewVP9(ctx context.Context, ffmpegPath string, spec Spec) (Sink, error) {
	const op = "encoder.vp9"
	if ffmpegPath == "" {
		return nil, apperr.New(apperr.KindEncoderInit, op, "ffmpeg is disabled")
	}
	bin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoderInit, op, "ffmpeg not found", err)
	}
	if err := probeEncoder(ctx, bin, "libvpx-vp9"); err != nil {
		return nil, apperr.Wrap(apperr.KindEncoderInit, op, "ffmpeg has no vp9 encoder", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, bin, vp9Args(spec)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.KindEncoderInit, op, "open ffmpeg stdin", err)
	}
	s := &vp9Sink{spec: spec, cmd: cmd, stdin: stdin, cancel: cancel, done: make(chan error, 1)}
	cmd.Stdout = &s.out
	cmd.Stderr = &s.stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.KindEncoderInit, op, "start ffmpeg", err)
	}
	go func() { s.done <- cmd.Wait() }()
	return s, nil
}

func vp9Args(spec Spec) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", strconv.Itoa(spec.FrameRate),
		"-i", "pipe:0",
		"-c:v", "libvpx-vp9",
		"-crf", strconv.Itoa(vp9CRF(spec.Quality)),
		"-b:v", "0",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-pix_fmt", "yuv420p",
		"-f", "webm",
		"pipe:1",
	}
}

func probeEncoder(ctx context.Context, bin, name string) error {
	out, err := exec.CommandContext(ctx, bin, "-hide_banner", "-encoders").Output()
	if err != nil {
		return err
	}
	if !bytes.Contains(out, []byte(name)) {
		return fmt.Errorf("encoder %s not listed", name)
	}
	return nil
}

func (s *vp9Sink) AcceptFrame(ctx context.Context, frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := frame.Bounds()
	if b.Dx() != s.spec.Width || b.Dy() != s.spec.Height {
		return fmt.Errorf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), s.spec.Width, s.spec.Height)
	}
	rowBytes := b.Dx() * 4
	if frame.Stride == rowBytes {
		_, err := s.stdin.Write(frame.Pix[:rowBytes*b.Dy()])
		return s.pipeErr(err)
	}
	for y := 0; y < b.Dy(); y++ {
		off := y * frame.Stride
		if _, err := s.stdin.Write(frame.Pix[off : off+rowBytes]); err != nil {
			return s.pipeErr(err)
		}
	}
	return nil
}

// lockedBuffer is written by exec's copy goroutine while frames may still be
// failing on the caller's side.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *vp9Sink) pipeErr(err error) error {
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("ffmpeg: %s: %w", msg, err)
	}
	return fmt.Errorf("write frame to ffmpeg: %w", err)
}

func (s *vp9Sink) Finish(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSinkClosed
	}
	s.closed = true
	defer s.cancel()

	if err := s.stdin.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return nil, fmt.Errorf("close ffmpeg stdin: %w", err)
	}
	select {
	case err := <-s.done:
		if err != nil {
			return nil, s.pipeErr(err)
		}
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return nil, ctx.Err()
	}
	return s.out.Bytes(), nil
}

func (s *vp9Sink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	_ = s.stdin.Close()
	<-s.done
	s.out = bytes.Buffer{}
}
