package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"

	"karolbroda.com/lyricmotion/internal/apperr"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestMJPEGWritesAVI(t *testing.T) {
	ctx := context.Background()
	reg := DefaultRegistry("")
	sink, info, err := reg.New(ctx, Spec{Codec: "mjpeg", Quality: QualityMedium, FrameRate: 30, Width: 32, Height: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if info.Ext != "avi" || info.MIMEType != "video/x-msvideo" {
		t.Errorf("info = %+v", info)
	}

	colorsIn := []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	for _, c := range colorsIn {
		if err := sink.AcceptFrame(ctx, solidFrame(32, 16, c)); err != nil {
			t.Fatalf("AcceptFrame: %v", err)
		}
	}
	blob, err := sink.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if string(blob[0:4]) != "RIFF" || string(blob[8:12]) != "AVI " {
		t.Fatalf("bad riff header %q", blob[:12])
	}
	if got := binary.LittleEndian.Uint32(blob[4:8]); int(got) != len(blob)-8 {
		t.Errorf("riff size = %d, want %d", got, len(blob)-8)
	}
	// RIFF(12) + LIST hdrl(12) + avih header(8) + 4 dwords
	if got := binary.LittleEndian.Uint32(blob[48:52]); got != 3 {
		t.Errorf("total frames = %d, want 3", got)
	}
	if got := binary.LittleEndian.Uint32(blob[32:36]); got != 1_000_000/30 {
		t.Errorf("us per frame = %d", got)
	}

	movi := bytes.Index(blob, []byte("movi"))
	idx := bytes.Index(blob, []byte("idx1"))
	if movi < 0 || idx < movi {
		t.Fatalf("movi at %d, idx1 at %d", movi, idx)
	}
	if got := binary.LittleEndian.Uint32(blob[idx+4 : idx+8]); got != 3*16 {
		t.Errorf("idx1 size = %d", got)
	}

	// every index entry points at a decodable jpeg with the right color
	for i := 0; i < 3; i++ {
		entry := blob[idx+8+i*16:]
		off := int(binary.LittleEndian.Uint32(entry[8:12]))
		size := int(binary.LittleEndian.Uint32(entry[12:16]))
		chunk := movi + off
		if string(blob[chunk:chunk+4]) != "00dc" {
			t.Fatalf("frame %d: chunk id %q", i, blob[chunk:chunk+4])
		}
		img, err := jpeg.Decode(bytes.NewReader(blob[chunk+8 : chunk+8+size]))
		if err != nil {
			t.Fatalf("frame %d: decode: %v", i, err)
		}
		r, g, b, _ := img.At(16, 8).RGBA()
		want := colorsIn[i]
		if diff(r>>8, want.R) > 12 || diff(g>>8, want.G) > 12 || diff(b>>8, want.B) > 12 {
			t.Errorf("frame %d: got %d,%d,%d want %v", i, r>>8, g>>8, b>>8, want)
		}
	}
}

func diff(a uint32, b uint8) uint32 {
	if a > uint32(b) {
		return a - uint32(b)
	}
	return uint32(b) - a
}

func TestMJPEGRejectsWrongSizeAndClosedUse(t *testing.T) {
	ctx := context.Background()
	sink, err := NewMJPEG(ctx, Spec{Codec: "mjpeg", FrameRate: 30, Width: 32, Height: 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.AcceptFrame(ctx, solidFrame(16, 16, color.RGBA{A: 255})); err == nil {
		t.Error("expected size mismatch error")
	}
	sink.Abort()
	if err := sink.AcceptFrame(ctx, solidFrame(32, 16, color.RGBA{A: 255})); !errors.Is(err, errSinkClosed) {
		t.Errorf("after Abort: %v", err)
	}
	if _, err := sink.Finish(ctx); !errors.Is(err, errSinkClosed) {
		t.Errorf("Finish after Abort: %v", err)
	}
}

func TestRegistryErrors(t *testing.T) {
	ctx := context.Background()
	reg := DefaultRegistry("")
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown codec", Spec{Codec: "h265", FrameRate: 30, Width: 16, Height: 16}},
		{"zero rate", Spec{Codec: "mjpeg", Width: 16, Height: 16}},
		{"vp9 without ffmpeg", Spec{Codec: "vp9", FrameRate: 30, Width: 16, Height: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := reg.New(ctx, tt.spec)
			if !errors.Is(err, apperr.ErrEncoderInit) {
				t.Fatalf("err = %v, want encoder_init", err)
			}
		})
	}
	if got := reg.Codecs(); len(got) != 2 || got[0] != "mjpeg" || got[1] != "vp9" {
		t.Errorf("codecs = %v", got)
	}
}

func TestParseQuality(t *testing.T) {
	for in, want := range map[string]Quality{"low": QualityLow, "Medium": QualityMedium, "": QualityHigh} {
		got, err := ParseQuality(in)
		if err != nil || got != want {
			t.Errorf("ParseQuality(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseQuality("ultra"); err == nil {
		t.Error("expected error")
	}
}

func TestVP9PipeErrorReadsStderrWhileFFmpegWrites(t *testing.T) {
	s := &vp9Sink{}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			_, _ = s.stderr.Write([]byte("x"))
		}
	}()
	for range 50 {
		_ = s.pipeErr(io.ErrClosedPipe)
	}
	wg.Wait()

	_, _ = s.stderr.Write([]byte(" broken pipe\n"))
	err := s.pipeErr(io.ErrClosedPipe)
	if !errors.Is(err, io.ErrClosedPipe) || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("err = %v, want ffmpeg stderr wrapped around the pipe error", err)
	}
	if s.pipeErr(nil) != nil {
		t.Error("nil write error should stay nil")
	}
}
