// Package terminal shows rendered frames in the terminal, through the kitty
// graphics protocol when the user opts in and as half-block art otherwise.
package terminal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/nfnt/resize"

	"karolbroda.com/lyricmotion/internal/artwork"
)

const kittyChunkSize = 4096

type Capabilities struct {
	IsTTY                 bool
	SupportsKittyGraphics bool
	TermProgram           string
}

// DetectCapabilities inspects f and the environment. Kitty graphics are
// opt-in through LYRICMOTION_KITTY_GRAPHICS.
func DetectCapabilities(f *os.File) Capabilities {
	caps := Capabilities{
		IsTTY:       isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()),
		TermProgram: os.Getenv("TERM_PROGRAM"),
	}
	switch strings.ToLower(os.Getenv("LYRICMOTION_KITTY_GRAPHICS")) {
	case "1", "true", "yes", "on":
		caps.SupportsKittyGraphics = caps.IsTTY
		if caps.TermProgram == "" {
			caps.TermProgram = "kitty"
		}
	}
	return caps
}

// Reset restores cursor and screen state after an interrupted TUI.
func Reset(w io.Writer) {
	io.WriteString(w, "\033[?25h\033[0m\033[?1049l")
}

// fitCells scales w x h into a cols x rows cell box assuming 10x20 px cells.
func fitCells(w, h, cols, rows int) (uint, uint) {
	newWidth := float64(cols * 10)
	newHeight := float64(rows * 20)
	aspect := float64(w) / float64(h)
	if aspect > newWidth/newHeight {
		newHeight = newWidth / aspect
	} else {
		newWidth = newHeight * aspect
	}
	return uint(max(newWidth, 10)), uint(max(newHeight, 10))
}

// EncodeKitty returns the escape sequence that draws img in a cols x rows box.
func EncodeKitty(img image.Image, cols, rows int) (string, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", fmt.Errorf("empty image")
	}
	w, h := fitCells(b.Dx(), b.Dy(), cols, rows)
	resized := resize.Resize(w, h, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("encode preview png: %w", err)
	}
	return kittyChunks(base64.StdEncoding.EncodeToString(buf.Bytes()), cols, rows), nil
}

func kittyChunks(encoded string, cols, rows int) string {
	var out strings.Builder
	for i := 0; i < len(encoded); i += kittyChunkSize {
		end := min(i+kittyChunkSize, len(encoded))
		more := 1
		if end >= len(encoded) {
			more = 0
		}
		if i == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, encoded[i:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, encoded[i:end])
		}
	}
	return out.String()
}

// Preview writes img to w using the best method caps allow.
func Preview(w io.Writer, img image.Image, caps Capabilities, cols, rows int) error {
	if caps.SupportsKittyGraphics {
		seq, err := EncodeKitty(img, cols, rows)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, seq+"\n")
		return err
	}
	for _, line := range artwork.RenderHalfBlockArt(img, cols, rows) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
