package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"golang.org/x/sync/errgroup"
)

const DefaultTrees = 50

type Options struct {
	Trees int
	// Seed drives the bootstrap and feature draws. Zero picks a time based
	// seed and the forest is not reproducible.
	Seed int64
	// MinLeaf is the minimum number of samples per leaf, 1 when unset.
	MinLeaf int
	// MaxDepth limits the tree depth. Zero means unlimited.
	MaxDepth int
	// FeaturesPerSplit defaults to ceil(sqrt(number of bands)).
	FeaturesPerSplit int
	Workers          int
}

func (o Options) withDefaults(features int) Options {
	if o.Trees <= 0 {
		o.Trees = DefaultTrees
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.MinLeaf <= 0 {
		o.MinLeaf = 1
	}
	if o.FeaturesPerSplit <= 0 {
		o.FeaturesPerSplit = int(math.Ceil(math.Sqrt(float64(features))))
	}
	o.FeaturesPerSplit = min(o.FeaturesPerSplit, features)
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Forest is a trained random forest. It is immutable and safe for
// concurrent use.
type Forest struct {
	bandNames []string
	// classes holds the labels in ascending order; trees predict indexes into it.
	classes []int
	trees   []*node
	seed    int64
}

var ErrEmptyTraining = errors.New("cannot train on an empty sample set")

// Train fits a forest on the given bands of the sample set. Every band name
// must exist in the set; columns are taken in the order of bandNames.
func Train(ctx context.Context, set *dataset.SampleSet, bandNames []string, opts Options) (*Forest, error) {
	columns := make([]int, len(bandNames))
	for i, name := range bandNames {
		columns[i] = slices.Index(set.BandNames, name)
		if columns[i] < 0 {
			return nil, fmt.Errorf("band %s is not part of the samples %v", name, set.BandNames)
		}
	}

	x := make([][]float64, set.Len())
	y := make([]int, set.Len())
	for i, v := range set.Vectors {
		row := make([]float64, len(columns))
		for j, c := range columns {
			row[j] = v.Values[c]
		}
		x[i] = row
		y[i] = int(v.Label)
	}
	return TrainMatrix(ctx, x, y, bandNames, opts)
}

// TrainMatrix fits a forest on rows of x labeled by y. Each tree is grown on
// a bootstrap resample drawn from its own random source, so the result does
// not depend on scheduling.
func TrainMatrix(ctx context.Context, x [][]float64, y []int, bandNames []string, opts Options) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTraining
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	if len(bandNames) == 0 {
		return nil, errors.New("at least one band is required")
	}
	for i, row := range x {
		if len(row) != len(bandNames) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(bandNames))
		}
	}
	opts = opts.withDefaults(len(bandNames))

	classes := slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	classIndex := make([]int, len(y))
	for i, label := range y {
		classIndex[i], _ = slices.BinarySearch(classes, label)
	}

	f := &Forest{
		bandNames: slices.Clone(bandNames),
		classes:   classes,
		trees:     make([]*node, opts.Trees),
		seed:      opts.Seed,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for t := range opts.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewSource(opts.Seed + int64(t)))
			sample := make([]int, len(x))
			for i := range sample {
				sample[i] = rnd.Intn(len(x))
			}
			b := &treeBuilder{
				x:        x,
				y:        classIndex,
				classes:  len(classes),
				features: opts.FeaturesPerSplit,
				minLeaf:  opts.MinLeaf,
				maxDepth: opts.MaxDepth,
				rnd:      rnd,
			}
			f.trees[t] = b.build(sample, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forest) BandNames() []string {
	return slices.Clone(f.bandNames)
}

func (f *Forest) Classes() []int {
	return slices.Clone(f.classes)
}

func (f *Forest) Trees() int {
	return len(f.trees)
}

func (f *Forest) Seed() int64 {
	return f.seed
}

// MaxDepth returns the depth of the deepest tree.
func (f *Forest) MaxDepth() int {
	depth := 0
	for _, t := range f.trees {
		depth = max(depth, t.depth())
	}
	return depth
}

// vote returns the majority class across trees, the lowest label on ties.
// votes is scratch space of len(f.classes).
func (f *Forest) vote(values []float64, votes []int) int {
	clear(votes)
	for _, t := range f.trees {
		votes[t.predict(values)]++
	}
	return f.classes[majority(votes)]
}

// Predict classifies one feature vector aligned with BandNames.
func (f *Forest) Predict(values []float64) (int, error) {
	if len(values) != len(f.bandNames) {
		return 0, fmt.Errorf("got %d values, the forest was trained on %d bands", len(values), len(f.bandNames))
	}
	return f.vote(values, make([]int, len(f.classes))), nil
}

// PredictSet classifies every vector of a sample set. The set must carry
// the training bands in the same order.
func (f *Forest) PredictSet(set *dataset.SampleSet) ([]int, error) {
	if !slices.Equal(set.BandNames, f.bandNames) {
		return nil, &SchemaMismatchError{Trained: f.BandNames(), Got: slices.Clone(set.BandNames)}
	}
	votes := make([]int, len(f.classes))
	out := make([]int, set.Len())
	for i, v := range set.Vectors {
		out[i] = f.vote(v.Values, votes)
	}
	return out, nil
}
