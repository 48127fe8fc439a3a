package sentinel

import (
	"fmt"
	"math"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

// AddIndices appends the ndvi and bsi bands to a raster holding the red,
// near infrared, blue and short-wave infrared bands.
func AddIndices(r *raster.Raster) (*raster.Raster, error) {
	bands := make(map[string]raster.Band, 4)
	for _, name := range []string{BandRed, BandNIR, BandBlue, BandSWIR1} {
		b, ok := r.Band(name)
		if !ok {
			return nil, fmt.Errorf("missing band %s to compute indices", name)
		}
		bands[name] = b
	}
	red, nir, blue, swir1 := bands[BandRed], bands[BandNIR], bands[BandBlue], bands[BandSWIR1]

	size := r.Grid.Size()
	ndvi := raster.NewBand(BandNDVI, size)
	bsi := raster.NewBand(BandBSI, size)
	for i := 0; i < size; i++ {
		ndvi.Values[i], ndvi.Valid[i] = calculateIndex(
			nir.Values[i], red.Values[i], nir.Valid[i] && red.Valid[i])

		a := swir1.Values[i] + red.Values[i]
		b := nir.Values[i] + blue.Values[i]
		bsi.Values[i], bsi.Valid[i] = calculateIndex(
			a, b, swir1.Valid[i] && red.Valid[i] && nir.Valid[i] && blue.Valid[i])
	}

	return r.WithBands(ndvi, bsi)
}

// calculateIndex returns the normalized difference (a-b)/(a+b). A zero
// denominator or a result outside [-1, 1], which only negative inputs
// produce, yields an invalid cell.
func calculateIndex(a, b float64, valid bool) (float64, bool) {
	if !valid {
		return 0, false
	}
	denominator := a + b
	if denominator == 0 {
		return 0, false
	}
	v := (a - b) / denominator
	if math.IsNaN(v) || v < -1 || v > 1 {
		return 0, false
	}
	return v, true
}
