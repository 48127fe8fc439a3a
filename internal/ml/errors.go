package ml

import "fmt"

// SchemaMismatchError is returned when the bands given for prediction differ
// from the training bands, in name or order.
type SchemaMismatchError struct {
	Trained []string
	Got     []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: forest trained on %v, got %v", e.Trained, e.Got)
}
