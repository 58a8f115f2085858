package artwork

import (
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/nfnt/resize"

	"karolbroda.com/lyricmotion/internal/colors"
	"karolbroda.com/lyricmotion/internal/logging"
)

const (
	MethodBinning = "binning"
	MethodKmeans  = "kmeans"

	// 3 bits per channel, 512 bins
	binShift = 5
)

type Extractor struct {
	Size          int
	Method        string
	ThumbnailSize int
	Logger        *slog.Logger
}

func NewExtractor(size int, method string, thumbnail int, logger *slog.Logger) *Extractor {
	return &Extractor{
		Size:          size,
		Method:        method,
		ThumbnailSize: thumbnail,
		Logger:        logging.OrDiscard(logger).With("component", "artwork"),
	}
}

// Extract decodes data and returns its dominant colors.
func (e *Extractor) Extract(data []byte) (Palette, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return e.FromImage(img), nil
}

// FromImage ranks colors of an already decoded image. The result is never
// empty for an image with at least one pixel.
func (e *Extractor) FromImage(img image.Image) Palette {
	size := e.Size
	if size <= 0 {
		size = 5
	}
	thumb := uint(e.ThumbnailSize)
	if thumb == 0 {
		thumb = 128
	}
	small := resize.Thumbnail(thumb, thumb, img, resize.Bilinear)

	if e.Method == MethodKmeans {
		p, err := kmeans(small, size)
		if err == nil && len(p) > 0 {
			return p
		}
		logging.OrDiscard(e.Logger).Debug("kmeans failed, falling back to binning", "error", err)
	}
	return binColors(small, size)
}

type bin struct {
	key     int
	count   int
	r, g, b int
}

func binColors(img image.Image, size int) Palette {
	bounds := img.Bounds()
	bins := make(map[int]*bin)
	var order []*bin

	collect := func(skipTransparent bool) {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				px := img.At(x, y)
				if skipTransparent {
					if _, _, _, a := px.RGBA(); a == 0 {
						continue
					}
				}
				c := colors.FromColor(px)
				key := int(c.R>>binShift)<<6 | int(c.G>>binShift)<<3 | int(c.B>>binShift)
				bn, ok := bins[key]
				if !ok {
					bn = &bin{key: key}
					bins[key] = bn
					order = append(order, bn)
				}
				bn.count++
				bn.r += int(c.R)
				bn.g += int(c.G)
				bn.b += int(c.B)
			}
		}
	}

	collect(true)
	if len(order) == 0 {
		// fully transparent image still yields a palette
		collect(false)
	}

	// order is first-seen, so a stable sort breaks count ties by first encounter
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > size {
		order = order[:size]
	}
	p := make(Palette, len(order))
	for i, bn := range order {
		p[i] = colors.RGB{
			R: uint8(bn.r / bn.count),
			G: uint8(bn.g / bn.count),
			B: uint8(bn.b / bn.count),
		}
	}
	return p
}

func kmeans(img image.Image, size int) (Palette, error) {
	items, err := prominentcolor.KmeansWithAll(size, img, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, nil)
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Cnt > items[j].Cnt
	})
	p := make(Palette, 0, len(items))
	for _, it := range items {
		p = append(p, colors.RGB{R: uint8(it.Color.R), G: uint8(it.Color.G), B: uint8(it.Color.B)})
	}
	return p, nil
}
