package artwork

import (
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/lyricmotion/internal/colors"
)

// RenderHalfBlockArt draws img as rows of "▀" cells, two pixels per cell.
func RenderHalfBlockArt(img image.Image, width int, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	resized := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	bounds := resized.Bounds()

	lines := make([]string, height)
	for row := 0; row < height; row++ {
		var line strings.Builder
		topY := bounds.Min.Y + row*2
		bottomY := topY + 1
		if bottomY >= bounds.Max.Y {
			bottomY = topY
		}

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			top := resized.At(x, topY)
			bottom := resized.At(x, bottomY)
			_, _, _, ta := top.RGBA()
			_, _, _, ba := bottom.RGBA()
			if ta>>8 < 128 && ba>>8 < 128 {
				line.WriteByte(' ')
				continue
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(colors.FromColor(top).Hex())).
				Background(lipgloss.Color(colors.FromColor(bottom).Hex()))
			line.WriteString(style.Render("▀"))
		}
		lines[row] = line.String()
	}
	return lines
}
