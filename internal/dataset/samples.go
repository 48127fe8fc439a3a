package dataset

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Label is a land-cover class code. Codes follow the merge order of the
// sample collections, starting at 0.
type Label int

// Class names a label.
type Class struct {
	Name  string
	Label Label
}

type SamplePoint struct {
	Location orb.Point
	Label    Label
}

type SplitTag int

const (
	Unassigned SplitTag = iota
	Training
	Validation
)

func (s SplitTag) String() string {
	switch s {
	case Training:
		return "training"
	case Validation:
		return "validation"
	default:
		return "unassigned"
	}
}

// FeatureVector is a sample point with the feature raster values at its
// location, aligned with SampleSet.BandNames.
type FeatureVector struct {
	SamplePoint
	Values []float64
	Random float64
	Split  SplitTag
}

// SampleSet is an ordered list of feature vectors sharing the same bands.
type SampleSet struct {
	BandNames []string
	Vectors   []FeatureVector
}

func (s *SampleSet) Len() int {
	return len(s.Vectors)
}

// Tagged reports whether a split was already assigned.
func (s *SampleSet) Tagged() bool {
	for _, v := range s.Vectors {
		if v.Split != Unassigned {
			return true
		}
	}
	return false
}

// Subset returns the vectors carrying the given split tag, in order.
func (s *SampleSet) Subset(split SplitTag) *SampleSet {
	out := &SampleSet{BandNames: s.BandNames}
	for _, v := range s.Vectors {
		if v.Split == split {
			out.Vectors = append(out.Vectors, v)
		}
	}
	return out
}

func (s *SampleSet) Training() *SampleSet {
	return s.Subset(Training)
}

func (s *SampleSet) Validation() *SampleSet {
	return s.Subset(Validation)
}

// Matrix returns the feature values and labels as parallel slices.
func (s *SampleSet) Matrix() ([][]float64, []int) {
	x := make([][]float64, len(s.Vectors))
	y := make([]int, len(s.Vectors))
	for i, v := range s.Vectors {
		x[i] = v.Values
		y[i] = int(v.Label)
	}
	return x, y
}

// ClassCounts counts the vectors of every label.
func (s *SampleSet) ClassCounts() map[Label]int {
	counts := make(map[Label]int)
	for _, v := range s.Vectors {
		counts[v.Label]++
	}
	return counts
}

func (s *SampleSet) String() string {
	return fmt.Sprintf("%d samples over %d bands", len(s.Vectors), len(s.BandNames))
}
