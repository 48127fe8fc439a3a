package output

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

// Palette maps class labels to colours.
type Palette map[int]color.RGBA

var DefaultPalette = Palette{
	0: {R: 34, G: 139, B: 34, A: 255},
	1: {R: 210, G: 180, B: 140, A: 255},
	2: {R: 30, G: 144, B: 255, A: 255},
	3: {R: 220, G: 20, B: 60, A: 255},
	4: {R: 255, G: 215, B: 0, A: 255},
}

// colorFor returns the palette colour of a label or a generated one for
// labels the palette does not cover.
func (p Palette) colorFor(label int) color.RGBA {
	if c, ok := p[label]; ok {
		return c
	}
	hue := float64((label*67)%360) / 360
	return hueToRGB(hue)
}

func hueToRGB(h float64) color.RGBA {
	f := func(n float64) uint8 {
		k := n + h*6
		for k >= 6 {
			k -= 6
		}
		v := 1 - max(0, min(k, 4-k, 1))
		return uint8(255 * v)
	}
	return color.RGBA{R: f(5), G: f(3), B: f(1), A: 255}
}

// CreateClassificationImage renders a classified raster to a PNG, one pixel
// per cell scaled by pixelSize. Invalid cells are left transparent.
func CreateClassificationImage(r *raster.Raster, palette Palette, pixelSize int, outputPath string) error {
	if len(r.Bands) != 1 {
		return fmt.Errorf("expected a single band classification, got %d bands", len(r.Bands))
	}
	if palette == nil {
		palette = DefaultPalette
	}
	pixelSize = max(pixelSize, 1)
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	g := r.Grid
	dc := gg.NewContext(g.Width*pixelSize, g.Height*pixelSize)
	b := r.Bands[0]
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := y*g.Width + x
			if !b.Valid[i] {
				continue
			}
			c := palette.colorFor(int(b.Values[i]))
			dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
			dc.DrawRectangle(float64(x*pixelSize), float64(y*pixelSize), float64(pixelSize), float64(pixelSize))
			dc.Fill()
		}
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// Legend lists the labels present in a classification with their colours.
func Legend(r *raster.Raster, palette Palette) []LegendEntry {
	if palette == nil {
		palette = DefaultPalette
	}
	seen := make(map[int]bool)
	for _, b := range r.Bands {
		for i, v := range b.Values {
			if b.Valid[i] {
				seen[int(v)] = true
			}
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	legend := make([]LegendEntry, len(labels))
	for i, l := range labels {
		c := palette.colorFor(l)
		legend[i] = LegendEntry{Label: l, R: c.R, G: c.G, B: c.B}
	}
	return legend
}

type LegendEntry struct {
	Label int   `csv:"label"`
	R     uint8 `csv:"r"`
	G     uint8 `csv:"g"`
	B     uint8 `csv:"b"`
}
