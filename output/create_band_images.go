package output

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func valueToColor(norm float64) color.RGBA {
	var r, g, b uint8
	if norm <= 0.5 {
		// blue to green
		ratio := norm / 0.5
		r = 0
		g = uint8(255 * ratio)
		b = uint8(255 * (1 - ratio))
	} else {
		// green to red
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * ratio)
		g = uint8(255 * (1 - ratio))
		b = 0
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// CreateBandImages writes one JPEG quick-look per band, stretched between
// the band minimum and maximum. Invalid cells are white.
func CreateBandImages(r *raster.Raster, bands []string, folder string) ([]string, error) {
	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create result folder: %w", err)
	}
	if len(bands) == 0 {
		bands = r.BandNames()
	}

	width, height := r.Grid.Width, r.Grid.Height
	var imagePaths []string
	for _, name := range bands {
		b, ok := r.Band(name)
		if !ok {
			return nil, fmt.Errorf("band %s not found", name)
		}
		stats := raster.EmptyMinMax()
		for i, v := range b.Values {
			if b.Valid[i] {
				stats = stats.Add(v)
			}
		}

		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for i, v := range b.Values {
			x, y := i%width, i/width
			if !b.Valid[i] {
				img.Set(x, y, color.White)
				continue
			}
			img.Set(x, y, valueToColor(normalize(v, stats.Min, stats.Max)))
		}

		outputPath := filepath.Join(folder, name+".jpeg")
		if err := writeJPEG(img, outputPath); err != nil {
			return nil, err
		}
		imagePaths = append(imagePaths, outputPath)
	}
	return imagePaths, nil
}

func writeJPEG(img image.Image, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 100}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}
