package raster

import (
	"context"
	"runtime"
	"sync"

	"github.com/gammazero/workerpool"
)

const defaultTileSize = 256

// Tile is a half-open pixel window [X0,X1) x [Y0,Y1).
type Tile struct {
	Index  int
	X0, Y0 int
	X1, Y1 int
}

// TileOptions controls how per-cell work is split across workers.
type TileOptions struct {
	Size    int
	Workers int
	// OnTile is called once per finished tile, from any worker.
	OnTile func()
}

func (o TileOptions) withDefaults() TileOptions {
	if o.Size <= 0 {
		o.Size = defaultTileSize
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Tiles partitions the grid into square tiles of the given size.
func Tiles(g Grid, size int) []Tile {
	if size <= 0 {
		size = defaultTileSize
	}
	var tiles []Tile
	for y := 0; y < g.Height; y += size {
		for x := 0; x < g.Width; x += size {
			tiles = append(tiles, Tile{
				Index: len(tiles),
				X0:    x,
				Y0:    y,
				X1:    min(x+size, g.Width),
				Y1:    min(y+size, g.Height),
			})
		}
	}
	return tiles
}

// CountTiles returns how many tiles ForEachTile will visit for the grid.
func CountTiles(g Grid, opts TileOptions) int {
	opts = opts.withDefaults()
	return len(Tiles(g, opts.Size))
}

// ForEachTile runs fn for every tile of the grid on a worker pool. Tiles must
// only write to disjoint parts of their output. The first error stops the
// submission of further tiles and is returned.
func ForEachTile(ctx context.Context, g Grid, opts TileOptions, fn func(t Tile) error) error {
	opts = opts.withDefaults()
	tiles := Tiles(g, opts.Size)

	wp := workerpool.New(opts.Workers)
	var (
		once     sync.Once
		firstErr error
		failed   = make(chan struct{})
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			close(failed)
		})
	}

submit:
	for _, t := range tiles {
		select {
		case <-ctx.Done():
			fail(ctx.Err())
			break submit
		case <-failed:
			break submit
		default:
		}
		wp.Submit(func() {
			select {
			case <-failed:
				return
			default:
			}
			if err := fn(t); err != nil {
				fail(err)
				return
			}
			if opts.OnTile != nil {
				opts.OnTile()
			}
		})
	}
	wp.StopWait()

	return firstErr
}

// Map builds a single band by evaluating fn on every cell, tile by tile.
func Map(ctx context.Context, g Grid, name string, opts TileOptions, fn func(i int) (float64, bool)) (Band, error) {
	out := NewBand(name, g.Size())
	err := ForEachTile(ctx, g, opts, func(t Tile) error {
		for y := t.Y0; y < t.Y1; y++ {
			for x := t.X0; x < t.X1; x++ {
				i := y*g.Width + x
				out.Values[i], out.Valid[i] = fn(i)
			}
		}
		return nil
	})
	return out, err
}
