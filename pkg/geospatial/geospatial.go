package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNoMarkers is returned when bounds are asked for an empty set.
var ErrNoMarkers = errors.New("no markers")

// Marker is a named point with extra GeoJSON properties.
type Marker struct {
	ID         int64
	Name       string
	Latitude   float64
	Longitude  float64
	Properties map[string]interface{}
}

// Point converts to orb's lon/lat order.
func (m Marker) Point() orb.Point {
	return orb.Point{m.Longitude, m.Latitude}
}

// ValidateCoordinates checks latitude and longitude ranges.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}

// FeatureCollection builds one point feature per marker. Markers with
// impossible coordinates are skipped and counted.
func FeatureCollection(markers []Marker) (*geojson.FeatureCollection, int) {
	fc := geojson.NewFeatureCollection()
	skipped := 0
	for _, m := range markers {
		if err := ValidateCoordinates(m.Latitude, m.Longitude); err != nil {
			skipped++
			continue
		}
		feature := geojson.NewFeature(m.Point())
		feature.ID = m.ID
		feature.Properties["id"] = m.ID
		feature.Properties["name"] = m.Name
		for k, v := range m.Properties {
			feature.Properties[k] = v
		}
		fc.Append(feature)
	}
	return fc, skipped
}

// Bounds returns the box around every valid marker.
func Bounds(markers []Marker) (orb.Bound, error) {
	var points orb.MultiPoint
	for _, m := range markers {
		if ValidateCoordinates(m.Latitude, m.Longitude) == nil {
			points = append(points, m.Point())
		}
	}
	if len(points) == 0 {
		return orb.Bound{}, ErrNoMarkers
	}
	return points.Bound(), nil
}

// View is what a map needs to frame a set of markers.
type View struct {
	Center [2]float64 `json:"center"` // lat, lon
	// Bounds is [[south, west], [north, east]].
	Bounds [2][2]float64 `json:"bounds"`
}

// ViewFor frames markers for display.
func ViewFor(markers []Marker) (*View, error) {
	bound, err := Bounds(markers)
	if err != nil {
		return nil, err
	}
	center := bound.Center()
	return &View{
		Center: [2]float64{center.Lat(), center.Lon()},
		Bounds: [2][2]float64{
			{bound.Min.Lat(), bound.Min.Lon()},
			{bound.Max.Lat(), bound.Max.Lon()},
		},
	}, nil
}
