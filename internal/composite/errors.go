package composite

import (
	"fmt"
	"time"
)

// InsufficientDataError is returned when no observation of a source survives
// filtering for a time window.
type InsufficientDataError struct {
	Source string
	Start  time.Time
	End    time.Time
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("no %s observations between %s and %s",
		e.Source, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}
