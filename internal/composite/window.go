package composite

import (
	"fmt"
	"strings"
	"time"
)

// Window is a half-open date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Name identifies the window by the month it starts in.
func (w Window) Name() string {
	return w.Start.Format("2006-01")
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// MonthWindow covers one calendar month.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// MonthWindows returns one window per month of the year, in the given order.
func MonthWindows(year int, months ...time.Month) []Window {
	windows := make([]Window, len(months))
	for i, m := range months {
		windows[i] = MonthWindow(year, m)
	}
	return windows
}

// ParseMonths reads a comma separated list of YYYY-MM months.
func ParseMonths(s string) ([]Window, error) {
	var windows []Window
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := time.Parse("2006-01", part)
		if err != nil {
			return nil, fmt.Errorf("invalid month %q: %w", part, err)
		}
		windows = append(windows, MonthWindow(t.Year(), t.Month()))
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no month in %q", s)
	}
	return windows, nil
}

func checkDisjoint(windows []Window) error {
	for i := range windows {
		if !windows[i].Start.Before(windows[i].End) {
			return fmt.Errorf("window %s is empty", windows[i].Name())
		}
		for j := i + 1; j < len(windows); j++ {
			if windows[i].overlaps(windows[j]) {
				return fmt.Errorf("windows %s and %s overlap", windows[i].Name(), windows[j].Name())
			}
		}
	}
	return nil
}
