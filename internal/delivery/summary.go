package delivery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/forest-guardian/landcover-classifier/internal/ml"
	"github.com/forest-guardian/landcover-classifier/internal/notification"
	"github.com/forest-guardian/landcover-classifier/internal/raster"
	"github.com/paulmach/orb"
)

type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// RunSummary gathers what a run produced and the recoverable issues it met.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageTiming
	// Centroid of the region of interest, longitude first.
	Centroid orb.Point

	FeatureBands    []string
	DegenerateBands []*raster.DegenerateStatisticsError
	Classes         []dataset.Class

	Points     int
	Extract    dataset.ExtractStats
	Training   int
	Validation int
	Trees      int
	// Seed is the one the forest was trained with.
	Seed int64

	TrainingCounts   map[dataset.Label]int
	ValidationCounts map[dataset.Label]int

	Matrix *ml.ConfusionMatrix
	// Outputs maps an output kind to the written path.
	Outputs map[string]string
}

func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) addOutput(kind, path string) {
	if s.Outputs == nil {
		s.Outputs = make(map[string]string)
	}
	s.Outputs[kind] = path
}

func (s *RunSummary) outputKinds() []string {
	kinds := make([]string, 0, len(s.Outputs))
	for k := range s.Outputs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (s *RunSummary) className(label int) string {
	for _, c := range s.Classes {
		if int(c.Label) == label {
			return c.Name
		}
	}
	return fmt.Sprintf("class %d", label)
}

// ClassLines describes the split of every class.
func (s *RunSummary) ClassLines() []string {
	lines := make([]string, 0, len(s.Classes))
	for _, c := range s.Classes {
		lines = append(lines, fmt.Sprintf("%s (%d): %d training, %d validation",
			c.Name, c.Label, s.TrainingCounts[c.Label], s.ValidationCounts[c.Label]))
	}
	return lines
}

// Format renders the summary for the terminal.
func (s *RunSummary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s finished in %s\n", s.ID, s.Duration().Round(time.Second))
	fmt.Fprintf(&sb, "Feature bands: %s\n", strings.Join(s.FeatureBands, ", "))
	for _, d := range s.DegenerateBands {
		fmt.Fprintf(&sb, "Warning: %s\n", d.Error())
	}
	fmt.Fprintf(&sb, "Samples: %d points, %d extracted, %d masked, %d out of bounds\n",
		s.Points, s.Extract.Extracted, s.Extract.Masked, len(s.Extract.OutOfBounds))
	fmt.Fprintf(&sb, "Split: %d training, %d validation\n", s.Training, s.Validation)
	if s.Matrix != nil {
		fmt.Fprintf(&sb, "Accuracy: %.4f (kappa %.4f) over %d points, %d excluded\n",
			s.Matrix.Accuracy(), s.Matrix.Kappa(), s.Matrix.Total(), s.Matrix.Excluded)
		sb.WriteString(s.Matrix.String())
	}
	for _, kind := range s.outputKinds() {
		fmt.Fprintf(&sb, "%s: %s\n", kind, s.Outputs[kind])
	}
	return sb.String()
}

// Markdown renders the run report written next to the outputs.
func (s *RunSummary) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Land cover classification %s\n\n", s.ID)
	sb.WriteString("## Run Overview\n")
	fmt.Fprintf(&sb, "- **Started**: %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration**: %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "- **Trees**: %d\n", s.Trees)
	fmt.Fprintf(&sb, "- **Seed**: %d\n", s.Seed)
	fmt.Fprintf(&sb, "- **Region centroid**: %.5f, %.5f\n", s.Centroid.Lat(), s.Centroid.Lon())
	fmt.Fprintf(&sb, "- **Feature bands**: %s\n\n", strings.Join(s.FeatureBands, ", "))

	sb.WriteString("## Stages\n| Stage | Duration |\n|---|---|\n")
	for _, st := range s.Stages {
		fmt.Fprintf(&sb, "| %s | %s |\n", st.Stage, st.Duration.Round(time.Millisecond))
	}

	sb.WriteString("\n## Samples\n")
	fmt.Fprintf(&sb, "- **Points**: %d\n- **Extracted**: %d\n- **Masked**: %d\n- **Out of bounds**: %d\n",
		s.Points, s.Extract.Extracted, s.Extract.Masked, len(s.Extract.OutOfBounds))
	fmt.Fprintf(&sb, "- **Training**: %d\n- **Validation**: %d\n", s.Training, s.Validation)
	if len(s.Classes) > 0 {
		sb.WriteString("\n| Class | Label | Training | Validation |\n|---|---|---|---|\n")
		for _, c := range s.Classes {
			fmt.Fprintf(&sb, "| %s | %d | %d | %d |\n", c.Name, c.Label, s.TrainingCounts[c.Label], s.ValidationCounts[c.Label])
		}
	}

	if len(s.DegenerateBands) > 0 {
		sb.WriteString("\n## Warnings\n")
		for _, d := range s.DegenerateBands {
			fmt.Fprintf(&sb, "- %s\n", d.Error())
		}
	}

	if m := s.Matrix; m != nil {
		sb.WriteString("\n## Accuracy\n")
		fmt.Fprintf(&sb, "- **Overall accuracy**: %.2f%%\n", 100*m.Accuracy())
		fmt.Fprintf(&sb, "- **Kappa**: %.4f\n", m.Kappa())
		fmt.Fprintf(&sb, "- **Excluded points**: %d\n\n", m.Excluded)

		labels := m.Labels()
		sb.WriteString("| actual \\ predicted |")
		for _, p := range labels {
			fmt.Fprintf(&sb, " %s |", s.className(p))
		}
		sb.WriteString(" producer's |\n|---|")
		for range labels {
			sb.WriteString("---|")
		}
		sb.WriteString("---|\n")
		producers, consumers := m.ProducersAccuracy(), m.ConsumersAccuracy()
		for _, a := range labels {
			fmt.Fprintf(&sb, "| %s |", s.className(a))
			for _, p := range labels {
				fmt.Fprintf(&sb, " %d |", m.Get(a, p))
			}
			fmt.Fprintf(&sb, " %.2f |\n", producers[a])
		}
		sb.WriteString("| consumer's |")
		for _, p := range labels {
			fmt.Fprintf(&sb, " %.2f |", consumers[p])
		}
		sb.WriteString(" |\n")
	}

	if len(s.Outputs) > 0 {
		sb.WriteString("\n## Outputs\n")
		for _, kind := range s.outputKinds() {
			fmt.Fprintf(&sb, "- **%s**: %s\n", kind, s.Outputs[kind])
		}
	}
	return sb.String()
}

// DiscordFields lists the headline numbers for a run notification.
func (s *RunSummary) DiscordFields() []notification.DiscordField {
	fields := []notification.DiscordField{
		{Name: "Run", Value: s.ID},
		{Name: "Duration", Value: s.Duration().Round(time.Second).String(), Inline: true},
		{Name: "Samples", Value: fmt.Sprintf("%d training / %d validation", s.Training, s.Validation), Inline: true},
	}
	if s.Matrix != nil {
		fields = append(fields, notification.DiscordField{
			Name: "Accuracy", Value: fmt.Sprintf("%.4f", s.Matrix.Accuracy()), Inline: true,
		})
	}
	return fields
}
