package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Collection is a named set of points of one land-cover class.
type Collection struct {
	Name   string
	Points []orb.Point
}

// LoadCollection reads a GeoJSON FeatureCollection of Point or MultiPoint
// features. The collection takes the file name without extension. Any
// label property carried by the features is ignored.
func LoadCollection(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, fmt.Errorf("failed to read sample collection: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Collection{}, fmt.Errorf("failed to parse sample collection %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	collection := Collection{Name: name}
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			collection.Points = append(collection.Points, g)
		case orb.MultiPoint:
			collection.Points = append(collection.Points, g...)
		default:
			return Collection{}, fmt.Errorf("feature %d of %s is a %T, expected a point", i, name, f.Geometry)
		}
	}
	return collection, nil
}

func LoadCollections(paths []string) ([]Collection, error) {
	collections := make([]Collection, 0, len(paths))
	for _, path := range paths {
		c, err := LoadCollection(path)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}

// MergeCollections concatenates the collections into one labeled point list.
// The i-th collection gets label i.
func MergeCollections(collections ...Collection) ([]SamplePoint, []Class) {
	var points []SamplePoint
	classes := make([]Class, len(collections))
	for i, c := range collections {
		classes[i] = Class{Name: c.Name, Label: Label(i)}
		for _, p := range c.Points {
			points = append(points, SamplePoint{Location: p, Label: Label(i)})
		}
	}
	return points, classes
}
