// Package crossings serves the read-only crossing list and map.
package crossings

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/pkg/geospatial"
)

type Lister interface {
	ListCrossings(ctx context.Context) ([]gateway.Crossing, error)
}

type ListView struct {
	Crossings []gateway.Crossing `json:"crossings"`
	Count     int                `json:"count"`
}

// MapView is a GeoJSON collection of crossings framed for display.
type MapView struct {
	Collection *geojson.FeatureCollection `json:"collection"`
	View       *geospatial.View           `json:"view,omitempty"`
	// Skipped counts crossings whose coordinates could not be placed.
	Skipped int `json:"skipped"`
}

type Service interface {
	ListCrossings(ctx context.Context) (*ListView, error)
	CrossingMap(ctx context.Context) (*MapView, error)
}

type crossingService struct {
	api    Lister
	logger *zap.Logger
}

func NewService(api Lister, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &crossingService{api: api, logger: logger}
}

func (s *crossingService) ListCrossings(ctx context.Context) (*ListView, error) {
	crossings, err := s.api.ListCrossings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list crossings: %w", err)
	}
	if crossings == nil {
		crossings = []gateway.Crossing{}
	}
	return &ListView{Crossings: crossings, Count: len(crossings)}, nil
}

func (s *crossingService) CrossingMap(ctx context.Context) (*MapView, error) {
	crossings, err := s.api.ListCrossings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list crossings: %w", err)
	}

	markers := make([]geospatial.Marker, 0, len(crossings))
	for _, c := range crossings {
		markers = append(markers, geospatial.Marker{
			ID:         c.ID,
			Name:       c.Name,
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			Properties: map[string]interface{}{"description": c.Description},
		})
	}

	collection, skipped := geospatial.FeatureCollection(markers)
	if skipped > 0 {
		s.logger.Warn("Crossings with invalid coordinates left off the map", zap.Int("skipped", skipped))
	}

	view, err := geospatial.ViewFor(markers)
	if err != nil && !errors.Is(err, geospatial.ErrNoMarkers) {
		return nil, err
	}
	return &MapView{Collection: collection, View: view, Skipped: skipped}, nil
}
