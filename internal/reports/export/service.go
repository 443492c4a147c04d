// Package export renders closures as downloadable workbooks and printable sheets.
package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/pkg/workflows"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Source is the part of the API exports read.
type Source interface {
	ListClosures(ctx context.Context, status workflows.Status) ([]gateway.Closure, error)
	GetClosure(ctx context.Context, id int64) (*gateway.Closure, error)
}

type Service struct {
	api    Source
	logger *zap.Logger
	now    func() time.Time
}

func NewService(api Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger, now: time.Now}
}

// Workbook exports the closures with status, or all of them when status is empty.
// Drafts follow the list rule and are exported for railway operators only.
func (s *Service) Workbook(ctx context.Context, user *gateway.User, status workflows.Status) (*File, error) {
	if status != "" && !status.Valid() {
		return nil, validate.Errors{"status": "unknown status"}
	}
	if status == workflows.StatusDraft && user.Role != workflows.RoleRailwayOperator {
		return nil, fmt.Errorf("%w: drafts are exported for railway operators only", workflows.ErrForbidden)
	}

	closures, err := s.api.ListClosures(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}

	exporter := NewExcelExporter(DefaultExcelOptions())
	defer exporter.Close()
	if err := exporter.Write(closures); err != nil {
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	var buf bytes.Buffer
	if err := exporter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	label := string(status)
	if label == "" {
		label = "all"
	}
	s.logger.Info("Closures exported",
		zap.Int64("user_id", user.ID),
		zap.String("status", label),
		zap.Int("rows", len(closures)),
	)
	return &File{
		Name:        fmt.Sprintf("closures-%s-%s.xlsx", label, s.now().UTC().Format("20060102")),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

// Sheet renders one closure as a PDF.
func (s *Service) Sheet(ctx context.Context, id int64) (*File, error) {
	closure, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", id, err)
	}

	generator := NewPDFGenerator(DefaultPDFOptions())
	if err := generator.GenerateSheet(closure, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to render closure sheet: %w", err)
	}
	data, err := generator.OutputToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write closure sheet: %w", err)
	}
	return &File{
		Name:        fmt.Sprintf("closure-%d.pdf", closure.ID),
		ContentType: ContentTypePDF,
		Data:        data,
	}, nil
}
