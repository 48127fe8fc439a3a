package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSortedKeys(t *testing.T) {
	d1 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)
	m := map[time.Time]int{d2: 2, d3: 3, d1: 1}

	assert.Equal(t, []time.Time{d1, d2, d3}, GetSortedKeys(m, true))
	assert.Equal(t, []time.Time{d3, d2, d1}, GetSortedKeys(m, false))
}
