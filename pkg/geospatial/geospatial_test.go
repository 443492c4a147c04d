package geospatial

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var markers = []Marker{
	{ID: 1, Name: "C1", Latitude: 55.0, Longitude: 37.0, Properties: map[string]interface{}{"status": "approved"}},
	{ID: 2, Name: "C2", Latitude: 59.0, Longitude: 30.0},
	{ID: 3, Name: "broken", Latitude: 120, Longitude: 30.0},
}

func TestFeatureCollection(t *testing.T) {
	fc, skipped := FeatureCollection(markers)
	assert.Equal(t, 1, skipped)
	require.Len(t, fc.Features, 2)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)
	assert.Equal(t, "Point", decoded.Features[0].Geometry.Type)
	assert.Equal(t, []float64{37.0, 55.0}, decoded.Features[0].Geometry.Coordinates)
	assert.Equal(t, "C1", decoded.Features[0].Properties["name"])
	assert.Equal(t, "approved", decoded.Features[0].Properties["status"])
}

func TestViewFor(t *testing.T) {
	view, err := ViewFor(markers)
	require.NoError(t, err)
	assert.Equal(t, [2]float64{57.0, 33.5}, view.Center)
	assert.Equal(t, [2][2]float64{{55.0, 30.0}, {59.0, 37.0}}, view.Bounds)

	_, err = ViewFor(nil)
	assert.ErrorIs(t, err, ErrNoMarkers)
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(0, 0))
	assert.Error(t, ValidateCoordinates(-91, 0))
	assert.Error(t, ValidateCoordinates(0, 181))
}
