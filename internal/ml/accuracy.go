package ml

import (
	"fmt"
	"slices"
	"strings"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

// ConfusionMatrix counts validation points by (true, predicted) label.
type ConfusionMatrix struct {
	Counts map[[2]int]int
	// Excluded counts the points that had no valid prediction.
	Excluded int
}

func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{Counts: make(map[[2]int]int)}
}

func (m *ConfusionMatrix) Add(actual, predicted int) {
	m.Counts[[2]int{actual, predicted}]++
}

func (m *ConfusionMatrix) Get(actual, predicted int) int {
	return m.Counts[[2]int{actual, predicted}]
}

// Labels returns every label seen as actual or predicted, ascending.
func (m *ConfusionMatrix) Labels() []int {
	var labels []int
	for k := range m.Counts {
		labels = append(labels, k[0], k[1])
	}
	slices.Sort(labels)
	return slices.Compact(labels)
}

func (m *ConfusionMatrix) Total() int {
	total := 0
	for _, c := range m.Counts {
		total += c
	}
	return total
}

func (m *ConfusionMatrix) Correct() int {
	correct := 0
	for k, c := range m.Counts {
		if k[0] == k[1] {
			correct += c
		}
	}
	return correct
}

// Accuracy is the trace over the total, 0 for an empty matrix.
func (m *ConfusionMatrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return float64(m.Correct()) / float64(total)
}

func (m *ConfusionMatrix) marginals() (actual, predicted map[int]int) {
	actual, predicted = make(map[int]int), make(map[int]int)
	for k, c := range m.Counts {
		actual[k[0]] += c
		predicted[k[1]] += c
	}
	return actual, predicted
}

// Kappa is Cohen's kappa coefficient.
func (m *ConfusionMatrix) Kappa() float64 {
	total := float64(m.Total())
	if total == 0 {
		return 0
	}
	actual, predicted := m.marginals()
	expected := 0.0
	for _, l := range m.Labels() {
		expected += float64(actual[l]) * float64(predicted[l]) / (total * total)
	}
	if expected == 1 {
		return 1
	}
	return (m.Accuracy() - expected) / (1 - expected)
}

// ProducersAccuracy is the share of each actual class predicted correctly.
func (m *ConfusionMatrix) ProducersAccuracy() map[int]float64 {
	actual, _ := m.marginals()
	out := make(map[int]float64, len(actual))
	for l, n := range actual {
		out[l] = float64(m.Get(l, l)) / float64(n)
	}
	return out
}

// ConsumersAccuracy is the share of each predicted class that is correct.
func (m *ConfusionMatrix) ConsumersAccuracy() map[int]float64 {
	_, predicted := m.marginals()
	out := make(map[int]float64, len(predicted))
	for l, n := range predicted {
		out[l] = float64(m.Get(l, l)) / float64(n)
	}
	return out
}

// MatrixRow is one cell of the confusion matrix table.
type MatrixRow struct {
	Actual    int `csv:"actual"`
	Predicted int `csv:"predicted"`
	Count     int `csv:"count"`
}

// Rows lists every (actual, predicted) pair over Labels, zeros included.
func (m *ConfusionMatrix) Rows() []MatrixRow {
	labels := m.Labels()
	rows := make([]MatrixRow, 0, len(labels)*len(labels))
	for _, a := range labels {
		for _, p := range labels {
			rows = append(rows, MatrixRow{Actual: a, Predicted: p, Count: m.Get(a, p)})
		}
	}
	return rows
}

// String renders the matrix with actual labels as rows.
func (m *ConfusionMatrix) String() string {
	labels := m.Labels()
	var sb strings.Builder
	sb.WriteString("actual\\predicted")
	for _, p := range labels {
		fmt.Fprintf(&sb, "\t%d", p)
	}
	sb.WriteString("\n")
	for _, a := range labels {
		fmt.Fprintf(&sb, "%d", a)
		for _, p := range labels {
			fmt.Fprintf(&sb, "\t%d", m.Get(a, p))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Evaluate samples the predicted raster at every validation point. Points
// outside the raster or on an invalid prediction are excluded and counted.
func Evaluate(predicted *raster.Raster, validation *dataset.SampleSet) (*ConfusionMatrix, error) {
	if len(predicted.Bands) != 1 {
		return nil, fmt.Errorf("expected a single band prediction, got %d bands", len(predicted.Bands))
	}
	m := NewConfusionMatrix()
	for _, v := range validation.Vectors {
		values, _, valid := predicted.Sample(v.Location.Lon(), v.Location.Lat())
		if !valid {
			m.Excluded++
			continue
		}
		m.Add(int(v.Label), int(values[0]))
	}
	return m, nil
}

// EvaluateLabels builds the matrix from per-point predictions. A nil valid
// slice marks every prediction as valid.
func EvaluateLabels(actual, predicted []int, valid []bool) (*ConfusionMatrix, error) {
	if len(actual) != len(predicted) || (valid != nil && len(valid) != len(actual)) {
		return nil, fmt.Errorf("got %d labels and %d predictions", len(actual), len(predicted))
	}
	m := NewConfusionMatrix()
	for i := range actual {
		if valid != nil && !valid[i] {
			m.Excluded++
			continue
		}
		m.Add(actual[i], predicted[i])
	}
	return m, nil
}
