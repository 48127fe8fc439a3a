package dataset

import (
	"errors"
	"fmt"
)

const DefaultSplitFraction = 0.6

// EmptySplitError is returned when one side of a split has no sample.
type EmptySplitError struct {
	Training   int
	Validation int
}

func (e *EmptySplitError) Error() string {
	return fmt.Sprintf("empty split: %d training and %d validation samples", e.Training, e.Validation)
}

var ErrAlreadySplit = errors.New("sample set already has split tags")

const golden = 0x9E3779B97F4A7C15

func splitmix64(z uint64) uint64 {
	z += golden
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// RandomValue returns a uniform value in [0,1) that only depends on the seed
// and the index.
func RandomValue(seed int64, index int) float64 {
	z := splitmix64(splitmix64(uint64(seed)) + uint64(index)*golden)
	return float64(z>>11) / (1 << 53)
}

// Split tags every vector with its random value. Values below fraction go
// to validation, the others to training, so fraction is the expected share
// of validation samples. The input set is not modified.
func Split(set *SampleSet, fraction float64, seed int64) (*SampleSet, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, fmt.Errorf("split fraction must be in (0, 1), got %v", fraction)
	}
	if set.Tagged() {
		return nil, ErrAlreadySplit
	}

	out := &SampleSet{BandNames: set.BandNames, Vectors: make([]FeatureVector, len(set.Vectors))}
	var training, validation int
	for i, v := range set.Vectors {
		v.Random = RandomValue(seed, i)
		if v.Random < fraction {
			v.Split = Validation
			validation++
		} else {
			v.Split = Training
			training++
		}
		out.Vectors[i] = v
	}
	if training == 0 || validation == 0 {
		return nil, &EmptySplitError{Training: training, Validation: validation}
	}
	return out, nil
}
