package terminal

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestKittyChunks(t *testing.T) {
	payload := strings.Repeat("A", kittyChunkSize*2+10)
	got := kittyChunks(payload, 40, 20)

	if !strings.HasPrefix(got, "\x1b_Ga=T,f=100,c=40,r=20,m=1;") {
		t.Errorf("bad first chunk: %.40q", got)
	}
	if n := strings.Count(got, "\x1b_G"); n != 3 {
		t.Errorf("chunks = %d, want 3", n)
	}
	if !strings.Contains(got, "\x1b_Gm=0;") {
		t.Error("last chunk must clear the more flag")
	}
}

func TestFitCellsKeepsAspect(t *testing.T) {
	tests := []struct {
		w, h, cols, rows int
		wantW, wantH     uint
	}{
		{1080, 1920, 40, 20, 225, 400},
		{1920, 1080, 40, 20, 400, 225},
		{1, 1000, 1, 1, 10, 20},
	}
	for _, tt := range tests {
		w, h := fitCells(tt.w, tt.h, tt.cols, tt.rows)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitCells(%d,%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.cols, tt.rows, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestPreviewHalfBlock(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	var buf bytes.Buffer
	if err := Preview(&buf, img, Capabilities{}, 4, 2); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestPreviewKitty(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := Preview(&buf, img, Capabilities{SupportsKittyGraphics: true}, 4, 2); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "\x1b_Ga=T") {
		t.Errorf("output %.20q", buf.String())
	}
}
