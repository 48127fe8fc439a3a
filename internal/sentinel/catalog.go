package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Scene is one catalog entry.
type Scene struct {
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	CloudPercentage float64   `json:"cloud_percentage"`
}

type catalogResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Datetime   time.Time `json:"datetime"`
			CloudCover *float64  `json:"eo:cloud_cover"`
		} `json:"properties"`
	} `json:"features"`
	Context struct {
		Next *int `json:"next"`
	} `json:"context"`
}

// SearchCatalog lists the scenes of a sensor intersecting the region in [start, end).
func (c *CopernicusClient) SearchCatalog(ctx context.Context, sensor string, roi orb.Geometry, start, end time.Time) ([]Scene, error) {
	bbox := roi.Bound()
	request := map[string]interface{}{
		"bbox":        []float64{bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1]},
		"datetime":    fmt.Sprintf("%s/%s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
		"collections": []string{sensor},
		"limit":       100,
	}

	var scenes []Scene
	for {
		body, err := json.Marshal(request)
		if err != nil {
			return nil, err
		}
		content, err := c.post(ctx, "/api/v1/catalog/1.0.0/search", body)
		if err != nil {
			return nil, fmt.Errorf("catalog search for %s: %w", sensor, err)
		}

		var resp catalogResponse
		if err := json.Unmarshal(content, &resp); err != nil {
			return nil, fmt.Errorf("invalid catalog response: %w", err)
		}
		for _, f := range resp.Features {
			if !f.Properties.Datetime.Before(end) {
				continue
			}
			scene := Scene{ID: f.ID, Time: f.Properties.Datetime}
			if f.Properties.CloudCover != nil {
				scene.CloudPercentage = *f.Properties.CloudCover
			}
			scenes = append(scenes, scene)
		}

		if resp.Context.Next == nil {
			return scenes, nil
		}
		request["next"] = *resp.Context.Next
	}
}
