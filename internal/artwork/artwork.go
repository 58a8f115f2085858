// Package artwork decodes cover images and derives the palette and theme the
// compositor paints with.
package artwork

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"karolbroda.com/lyricmotion/internal/apperr"
	"karolbroda.com/lyricmotion/internal/colors"
)

// Palette is ordered by dominance, most dominant first.
type Palette []colors.RGB

// Hex returns the palette as "#RRGGBB" strings.
func (p Palette) Hex() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}

// Decode parses JPEG, PNG, GIF, WebP or BMP bytes.
func Decode(data []byte) (image.Image, error) {
	const op = "artwork.decode"
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecode, op, "image is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, op, "unsupported or corrupt image", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperr.New(apperr.KindDecode, op, "image has no pixels")
	}
	return img, nil
}
