package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

var MJPEGInfo = Info{Codec: "mjpeg", MIMEType: "video/x-msvideo", Ext: "avi"}

var errSinkClosed = errors.New("sink is closed")

func jpegQuality(q Quality) int {
	switch q {
	case QualityLow:
		return 60
	case QualityMedium:
		return 80
	default:
		return 92
	}
}

// mjpegSink keeps each frame as a JPEG and assembles an AVI on Finish.
type mjpegSink struct {
	spec    Spec
	opts    jpeg.Options
	frames  [][]byte
	scratch bytes.Buffer
	closed  bool
}

func NewMJPEG(_ context.Context, spec Spec) (Sink, error) {
	return &mjpegSink{spec: spec, opts: jpeg.Options{Quality: jpegQuality(spec.Quality)}}, nil
}

func (s *mjpegSink) AcceptFrame(ctx context.Context, frame *image.RGBA) error {
	if s.closed {
		return errSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b := frame.Bounds(); b.Dx() != s.spec.Width || b.Dy() != s.spec.Height {
		return fmt.Errorf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), s.spec.Width, s.spec.Height)
	}
	s.scratch.Reset()
	if err := jpeg.Encode(&s.scratch, frame, &s.opts); err != nil {
		return fmt.Errorf("encode jpeg frame: %w", err)
	}
	s.frames = append(s.frames, bytes.Clone(s.scratch.Bytes()))
	return nil
}

func (s *mjpegSink) Finish(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, errSinkClosed
	}
	s.closed = true
	defer s.release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := writeAVI(&out, s.frames, s.spec.Width, s.spec.Height, s.spec.FrameRate); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (s *mjpegSink) Abort() {
	s.closed = true
	s.release()
}

func (s *mjpegSink) release() {
	s.frames = nil
	s.scratch = bytes.Buffer{}
}

// binaryWriter keeps the first write error so the layout code stays linear.
type binaryWriter struct {
	w   io.Writer
	err error
}

func (bw *binaryWriter) fourCC(s string) {
	if bw.err == nil {
		_, bw.err = io.WriteString(bw.w, s)
	}
}

func (bw *binaryWriter) u32(v uint32) {
	if bw.err == nil {
		bw.err = binary.Write(bw.w, binary.LittleEndian, v)
	}
}

func (bw *binaryWriter) u16(v uint16) {
	if bw.err == nil {
		bw.err = binary.Write(bw.w, binary.LittleEndian, v)
	}
}

func (bw *binaryWriter) raw(data []byte) {
	if bw.err == nil {
		_, bw.err = bw.w.Write(data)
	}
}

const (
	avifHasIndex  = 0x10
	aviifKeyframe = 0x10
	hdrlSize      = 4 + 64 + 124 // "hdrl" + avih + strl
)

// writeAVI lays out a single-stream MJPEG AVI with an idx1 index.
func writeAVI(w io.Writer, frames [][]byte, width, height, fps int) error {
	count := uint32(len(frames))
	var moviData, maxFrame uint32
	for _, f := range frames {
		moviData += 8 + padded(uint32(len(f)))
		maxFrame = max(maxFrame, uint32(len(f)))
	}
	moviSize := 4 + moviData
	idx1Size := 8 + count*16
	fileSize := 4 + (8 + hdrlSize) + (8 + moviSize) + idx1Size

	imgW, imgH := uint32(width), uint32(height)
	bw := &binaryWriter{w: w}

	bw.fourCC("RIFF")
	bw.u32(fileSize)
	bw.fourCC("AVI ")

	bw.fourCC("LIST")
	bw.u32(hdrlSize)
	bw.fourCC("hdrl")

	bw.fourCC("avih")
	bw.u32(56)
	bw.u32(uint32(1_000_000 / fps))
	bw.u32(maxFrame * uint32(fps))
	bw.u32(0)
	bw.u32(avifHasIndex)
	bw.u32(count)
	bw.u32(0)
	bw.u32(1)
	bw.u32(maxFrame)
	bw.u32(imgW)
	bw.u32(imgH)
	bw.u32(0)
	bw.u32(0)
	bw.u32(0)
	bw.u32(0)

	bw.fourCC("LIST")
	bw.u32(116)
	bw.fourCC("strl")

	bw.fourCC("strh")
	bw.u32(56)
	bw.fourCC("vids")
	bw.fourCC("MJPG")
	bw.u32(0)
	bw.u16(0)
	bw.u16(0)
	bw.u32(0)
	bw.u32(1)
	bw.u32(uint32(fps))
	bw.u32(0)
	bw.u32(count)
	bw.u32(maxFrame)
	bw.u32(0)
	bw.u32(0)
	bw.u16(0)
	bw.u16(0)
	bw.u16(uint16(imgW))
	bw.u16(uint16(imgH))

	// BITMAPINFOHEADER
	bw.fourCC("strf")
	bw.u32(40)
	bw.u32(40)
	bw.u32(imgW)
	bw.u32(imgH)
	bw.u16(1)
	bw.u16(24)
	bw.fourCC("MJPG")
	bw.u32(imgW * imgH * 3)
	bw.u32(0)
	bw.u32(0)
	bw.u32(0)
	bw.u32(0)

	bw.fourCC("LIST")
	bw.u32(moviSize)
	bw.fourCC("movi")
	for _, f := range frames {
		bw.fourCC("00dc")
		bw.u32(uint32(len(f)))
		bw.raw(f)
		if len(f)%2 != 0 {
			bw.raw([]byte{0})
		}
	}

	bw.fourCC("idx1")
	bw.u32(count * 16)
	offset := uint32(4) // relative to the "movi" fourcc
	for _, f := range frames {
		bw.fourCC("00dc")
		bw.u32(aviifKeyframe)
		bw.u32(offset)
		bw.u32(uint32(len(f)))
		offset += 8 + padded(uint32(len(f)))
	}

	if bw.err != nil {
		return fmt.Errorf("write avi: %w", bw.err)
	}
	return nil
}

func padded(n uint32) uint32 {
	return n + n%2
}
