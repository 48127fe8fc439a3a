package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/forest-guardian/landcover-classifier/internal/ml"
	"github.com/gocarina/gocsv"
)

type TableSink interface {
	Write(rows []dataset.SampleRow) (string, error)
}

// CSVSink writes the samples table to Path.
type CSVSink struct {
	Path string
}

func (s *CSVSink) Write(rows []dataset.SampleRow) (string, error) {
	if err := WriteCSV(s.Path, rows); err != nil {
		return "", err
	}
	return s.Path, nil
}

// WriteCSV writes rows with a header taken from their csv tags.
func WriteCSV[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write CSV %s: %w", path, err)
	}
	return nil
}

func WriteConfusionMatrix(path string, m *ml.ConfusionMatrix) error {
	return WriteCSV(path, m.Rows())
}
