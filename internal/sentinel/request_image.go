package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://sh.dataspace.copernicus.eu"
	defaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	maxPixels       = 2500
)

var errUnauthorized = errors.New("unauthorized access, check your client ID and secret")

const opticalEvalscript = `
//VERSION=3
function setup() {
  return {
    input: ["B02", "B03", "B04", "B08", "B11", "QA60"],
    output: { id: "default", bands: 6, sampleType: SampleType.FLOAT32 },
  }
}

function evaluatePixel(sample) {
  return [sample.B02, sample.B03, sample.B04, sample.B08, sample.B11, sample.QA60];
}
`

// VV backscatter in decibels
const radarEvalscript = `
//VERSION=3
function setup() {
  return {
    input: ["VV", "dataMask"],
    output: { id: "default", bands: 1, sampleType: SampleType.FLOAT32 },
  }
}

function evaluatePixel(sample) {
  if (sample.dataMask == 0 || sample.VV <= 0) {
    return [NaN];
  }
  return [10 * Math.log(sample.VV) / Math.LN10];
}
`

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return int(pixels)
}

func dataFilter(sensor string, start, end time.Time) map[string]interface{} {
	filter := map[string]interface{}{
		"timeRange": map[string]string{
			"from": start.Format(time.RFC3339),
			"to":   end.Format(time.RFC3339),
		},
	}
	if sensor == SensorRadar {
		filter["acquisitionMode"] = "IW"
		filter["polarization"] = "DV"
		filter["orbitDirection"] = "DESCENDING"
	}
	return filter
}

func buildProcessRequest(sensor string, start, end time.Time, roi orb.Geometry, scale float64) ([]byte, error) {
	bbox := roi.Bound()
	if scale <= 0 {
		scale = 10
	}
	evalscript := opticalEvalscript
	data := map[string]interface{}{
		"type":       sensor,
		"dataFilter": dataFilter(sensor, start, end),
	}
	if sensor == SensorRadar {
		evalscript = radarEvalscript
		data["processing"] = map[string]interface{}{
			"backCoeff":    "SIGMA0_ELLIPSOID",
			"orthorectify": true,
		}
	}

	geometry, err := geojson.NewGeometry(roi).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export geometry to GeoJSON: %w", err)
	}

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": json.RawMessage(geometry),
			},
			"data": []map[string]interface{}{data},
		},
		"output": map[string]interface{}{
			"width":  calculatePixels(bbox.Max[0]-bbox.Min[0], scale),
			"height": calculatePixels(bbox.Max[1]-bbox.Min[1], scale),
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format":     map[string]string{"type": "image/tiff"},
				},
			},
		},
		"evalscript": evalscript,
	}

	return json.Marshal(requestPayload)
}

// CopernicusClient talks to the Copernicus Data Space Sentinel Hub APIs.
type CopernicusClient struct {
	BaseURL       string
	TokenURL      string
	ClientIDs     []string
	ClientSecrets []string
	Retries       int
	RetryDelay    time.Duration
}

func (c *CopernicusClient) baseURL() string {
	if c.BaseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

// post sends the payload with every configured credential pair until one succeeds.
func (c *CopernicusClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if len(c.ClientIDs) == 0 || len(c.ClientSecrets) == 0 {
		return nil, errors.New("missing required Copernicus client ID or client secret")
	}
	if len(c.ClientIDs) != len(c.ClientSecrets) {
		return nil, errors.New("mismatched number of client IDs and secrets")
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	retries := max(c.Retries, 1)

	var err error
	for i, clientID := range c.ClientIDs {
		config := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: c.ClientSecrets[i],
			TokenURL:     tokenURL,
		}
		httpClient := config.Client(ctx)

		var content []byte
		for attempt := 1; attempt <= retries; attempt++ {
			content, err = c.do(ctx, httpClient, path, body)
			if err == nil || errors.Is(err, errUnauthorized) {
				break
			}
			if attempt < retries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.RetryDelay):
				}
			}
		}
		if err == nil {
			return content, nil
		}
		err = fmt.Errorf("request to %s failed after %d attempts: %w", path, retries, err)
	}
	return nil, err
}

func (c *CopernicusClient) do(ctx context.Context, httpClient *http.Client, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case response.StatusCode == http.StatusOK:
		return content, nil
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	default:
		return nil, fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(content)))
	}
}

// RequestImage downloads one GeoTIFF covering the region for the given time range.
func (c *CopernicusClient) RequestImage(ctx context.Context, sensor string, start, end time.Time, roi orb.Geometry, scale float64) ([]byte, error) {
	body, err := buildProcessRequest(sensor, start, end, roi, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.post(ctx, "/api/v1/process", body)
}
