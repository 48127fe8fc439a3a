package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/landcover-classifier/internal/dataset"
	"github.com/paulmach/orb/geojson"
)

// CreateSamplesGeoJSON writes the sample set as a FeatureCollection of
// points carrying their label, random value, split tag and feature values.
func CreateSamplesGeoJSON(set *dataset.SampleSet, classes []dataset.Class, outputPath string) error {
	names := make(map[dataset.Label]string, len(classes))
	for _, c := range classes {
		names[c.Label] = c.Name
	}

	fc := geojson.NewFeatureCollection()
	for _, v := range set.Vectors {
		f := geojson.NewFeature(v.Location)
		f.Properties["landcover"] = int(v.Label)
		if name, ok := names[v.Label]; ok {
			f.Properties["class"] = name
		}
		f.Properties["random"] = v.Random
		f.Properties["split"] = v.Split.String()
		for i, band := range set.BandNames {
			f.Properties[band] = v.Values[i]
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write GeoJSON file: %w", err)
	}
	return nil
}
