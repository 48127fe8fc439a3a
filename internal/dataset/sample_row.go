package dataset

// SampleRow is one line of the samples table.
type SampleRow struct {
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
	Landcover int     `csv:"landcover"`
	Random    float64 `csv:"random"`
	Split     string  `csv:"split"`
}

func (s *SampleSet) Rows() []SampleRow {
	rows := make([]SampleRow, len(s.Vectors))
	for i, v := range s.Vectors {
		rows[i] = SampleRow{
			Longitude: v.Location.Lon(),
			Latitude:  v.Location.Lat(),
			Landcover: int(v.Label),
			Random:    v.Random,
			Split:     v.Split.String(),
		}
	}
	return rows
}
