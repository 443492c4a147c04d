// Package mapexport publishes approved closures as a GeoJSON map layer in S3.
package mapexport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/metrics"
	"crossing-closures/closure-portal/pkg/geospatial"
	"crossing-closures/closure-portal/pkg/storage"
)

const ContentType = "application/geo+json"

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("map export bucket is not configured")

// Source is the part of the API the export reads.
type Source interface {
	Login(ctx context.Context, username, password string) (string, error)
	ExportApproved(ctx context.Context) ([]gateway.MapExportItem, error)
}

type Config struct {
	Bucket   string
	Key      string
	Username string
	Password string
}

// Result describes one export run.
type Result struct {
	Features   int       `json:"features"`
	Skipped    int       `json:"skipped"`
	Uploaded   bool      `json:"uploaded"`
	Key        string    `json:"key"`
	ExportedAt time.Time `json:"exported_at"`
}

type Exporter struct {
	api     Source
	s3      storage.S3Client
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewExporter(api Source, s3 storage.S3Client, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{api: api, s3: s3, cfg: cfg, metrics: m, logger: logger, now: time.Now}
}

// Run logs in with the service account, builds the layer and uploads it.
// The upload is skipped when the stored layer is byte-identical.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	result, err := e.run(ctx)
	e.metrics.RecordExport(err == nil)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Map export finished",
		zap.String("bucket", e.cfg.Bucket),
		zap.String("key", result.Key),
		zap.Int("features", result.Features),
		zap.Int("skipped", result.Skipped),
		zap.Bool("uploaded", result.Uploaded),
	)
	return result, nil
}

func (e *Exporter) run(ctx context.Context) (*Result, error) {
	if e.cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	token, err := e.api.Login(ctx, e.cfg.Username, e.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("service account login failed: %w", err)
	}
	items, err := e.api.ExportApproved(gateway.WithToken(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved closures: %w", err)
	}

	layer, skipped, err := BuildLayer(items)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Features:   len(items) - skipped,
		Skipped:    skipped,
		Key:        e.cfg.Key,
		ExportedAt: e.now().UTC(),
	}

	if e.unchanged(ctx, layer) {
		return result, nil
	}
	if err := e.s3.Upload(ctx, e.cfg.Bucket, e.cfg.Key, ContentType, bytes.NewReader(layer)); err != nil {
		return nil, err
	}
	result.Uploaded = true
	return result, nil
}

// unchanged compares layer with the stored object. Any read failure counts as changed.
func (e *Exporter) unchanged(ctx context.Context, layer []byte) bool {
	body, err := e.s3.Download(ctx, e.cfg.Bucket, e.cfg.Key)
	if err != nil {
		e.logger.Debug("No previous map layer", zap.Error(err))
		return false
	}
	defer body.Close()
	previous, err := io.ReadAll(body)
	if err != nil {
		return false
	}
	return bytes.Equal(previous, layer)
}

// PresignedURL returns a temporary download link for the current layer.
// A nil Exporter reports ErrNotConfigured.
func (e *Exporter) PresignedURL(ctx context.Context, ttl time.Duration) (string, error) {
	if e == nil || e.cfg.Bucket == "" {
		return "", ErrNotConfigured
	}
	return e.s3.GetPresignedURL(ctx, e.cfg.Bucket, e.cfg.Key, ttl)
}

// BuildLayer renders approved closures as a FeatureCollection, one point per closure.
func BuildLayer(items []gateway.MapExportItem) ([]byte, int, error) {
	markers := make([]geospatial.Marker, 0, len(items))
	for _, item := range items {
		markers = append(markers, geospatial.Marker{
			ID:        item.ID,
			Name:      item.Name,
			Latitude:  item.Latitude,
			Longitude: item.Longitude,
			Properties: map[string]interface{}{
				"closure_id": item.ID,
				"start_date": item.StartDate.UTC().Format(time.RFC3339),
				"end_date":   item.EndDate.UTC().Format(time.RFC3339),
				"reason":     item.Reason,
			},
		})
	}
	fc, skipped := geospatial.FeatureCollection(markers)
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode map layer: %w", err)
	}
	return data, skipped, nil
}
