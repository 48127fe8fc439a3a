package sentinel

import (
	"fmt"

	"github.com/forest-guardian/landcover-classifier/internal/raster"
)

// MaskClouds invalidates every cell whose quality band has the opaque cloud
// or cirrus bit set. Band values are left untouched and the quality band
// itself is dropped from the result.
func MaskClouds(obs raster.Observation) (raster.Observation, error) {
	qaName := obs.QualityBand
	if qaName == "" {
		qaName = BandQA
	}
	qa, ok := obs.Raster.Band(qaName)
	if !ok {
		return obs, fmt.Errorf("observation %s has no quality band %s", obs.Time.Format("2006-01-02"), qaName)
	}

	clear := make([]bool, len(qa.Values))
	for i, v := range qa.Values {
		flags := int64(v)
		clear[i] = qa.Valid[i] && flags&cloudBit == 0 && flags&cirrusBit == 0
	}

	bands := make([]raster.Band, 0, len(obs.Raster.Bands)-1)
	for _, b := range obs.Raster.Bands {
		if b.Name == qaName {
			continue
		}
		valid := make([]bool, len(b.Valid))
		for i := range valid {
			valid[i] = b.Valid[i] && clear[i]
		}
		bands = append(bands, raster.Band{Name: b.Name, Values: b.Values, Valid: valid})
	}

	masked, err := raster.New(obs.Raster.Grid, bands...)
	if err != nil {
		return obs, err
	}
	obs.Raster = masked
	obs.QualityBand = ""
	return obs, nil
}

// CloudFraction returns the share of cells flagged as cloud or cirrus.
func CloudFraction(obs raster.Observation) float64 {
	qaName := obs.QualityBand
	if qaName == "" {
		qaName = BandQA
	}
	qa, ok := obs.Raster.Band(qaName)
	if !ok || len(qa.Values) == 0 {
		return 0
	}
	cloudy := 0
	for _, v := range qa.Values {
		if int64(v)&(cloudBit|cirrusBit) != 0 {
			cloudy++
		}
	}
	return float64(cloudy) / float64(len(qa.Values))
}
