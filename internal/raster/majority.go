package raster

import (
	"context"
	"fmt"
	"math"
)

// ManhattanKernel returns the offsets within Manhattan distance radius of the
// centre, centre included. Radius 1 yields the 4-connected neighbours.
func ManhattanKernel(radius int) [][2]int {
	var offsets [][2]int
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if abs(dx)+abs(dy) <= radius {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type labelCount struct {
	label int
	count int
}

// mode returns the most frequent label, ties going to the lowest label.
func mode(counts []labelCount) int {
	best := counts[0]
	for _, c := range counts[1:] {
		if c.count > best.count || (c.count == best.count && c.label < best.label) {
			best = c
		}
	}
	return best.label
}

// MajorityFilter replaces each valid cell of the first band with the mode of
// the valid labels inside a Manhattan disk of the given radius. Cells at the
// edges only use the neighbours that exist; invalid cells stay invalid.
func MajorityFilter(ctx context.Context, r *Raster, radius int, opts TileOptions) (*Raster, error) {
	if len(r.Bands) == 0 {
		return nil, fmt.Errorf("majority filter needs a labeled band")
	}
	if radius < 0 {
		return nil, fmt.Errorf("invalid majority filter radius %d", radius)
	}
	src := r.Bands[0]
	g := r.Grid
	kernel := ManhattanKernel(radius)

	out := NewBand(src.Name, g.Size())
	err := ForEachTile(ctx, g, opts, func(t Tile) error {
		counts := make([]labelCount, 0, len(kernel))
		for y := t.Y0; y < t.Y1; y++ {
			for x := t.X0; x < t.X1; x++ {
				i := y*g.Width + x
				if !src.Valid[i] {
					continue
				}
				counts = counts[:0]
				for _, off := range kernel {
					nx, ny := x+off[0], y+off[1]
					if nx < 0 || ny < 0 || nx >= g.Width || ny >= g.Height {
						continue
					}
					j := ny*g.Width + nx
					if !src.Valid[j] {
						continue
					}
					label := int(math.Round(src.Values[j]))
					found := false
					for k := range counts {
						if counts[k].label == label {
							counts[k].count++
							found = true
							break
						}
					}
					if !found {
						counts = append(counts, labelCount{label: label, count: 1})
					}
				}
				out.Values[i] = float64(mode(counts))
				out.Valid[i] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return New(g, out)
}
