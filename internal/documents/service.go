package documents

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

type Service interface {
	ListDocuments(ctx context.Context, actor workflows.Actor, closureID int64) (*ListView, error)
	UploadDocument(ctx context.Context, actor workflows.Actor, req UploadRequest) (*DocumentView, error)
	DeleteDocument(ctx context.Context, actor workflows.Actor, closureID, documentID int64) (*DeleteResult, error)
	DownloadDocument(ctx context.Context, closureID, documentID int64) (*gateway.FileStream, string, error)
}

type documentService struct {
	api           gateway.ClosuresAPI
	maxUploadSize int64
	logger        *zap.Logger
}

func NewService(api gateway.ClosuresAPI, maxUploadSize int64, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentService{api: api, maxUploadSize: maxUploadSize, logger: logger}
}

func (s *documentService) ListDocuments(ctx context.Context, actor workflows.Actor, closureID int64) (*ListView, error) {
	closure, err := s.api.GetClosure(ctx, closureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", closureID, err)
	}
	docs, err := s.api.ListDocuments(ctx, closureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents of closure %d: %w", closureID, err)
	}

	subject := closure.Subject()
	canDelete := workflows.Allowed(actor, subject, workflows.ActionDeleteDocument)
	view := &ListView{
		ClosureID:     closureID,
		Documents:     make([]DocumentView, 0, len(docs)),
		CanUpload:     workflows.Allowed(actor, subject, workflows.ActionUploadDocument),
		Types:         TypeOptions(),
		DefaultType:   DefaultType,
		MaxUploadSize: s.maxUploadSize,
	}
	for _, doc := range docs {
		view.Documents = append(view.Documents, NewDocumentView(closureID, doc, canDelete))
	}
	return view, nil
}

// ValidateUpload checks the request without touching the API.
func (s *documentService) ValidateUpload(req UploadRequest) error {
	errs := validate.Errors{}
	errs.Check("title", validate.Required(req.Title))
	if !req.DocumentType.Valid() {
		errs.Add("document_type", "unknown document type")
	}
	if req.Content == nil || req.FileName == "" {
		errs.Add("file", "required")
	} else if req.Size == 0 {
		errs.Add("file", "is empty")
	} else if s.maxUploadSize > 0 && req.Size > s.maxUploadSize {
		errs.Add("file", fmt.Sprintf("must be at most %d MB", s.maxUploadSize>>20))
	}
	return errs.Err()
}

func (s *documentService) UploadDocument(ctx context.Context, actor workflows.Actor, req UploadRequest) (*DocumentView, error) {
	if req.DocumentType == "" {
		req.DocumentType = DefaultType
	}
	if err := s.ValidateUpload(req); err != nil {
		return nil, err
	}

	closure, err := s.api.GetClosure(ctx, req.ClosureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", req.ClosureID, err)
	}
	if err := workflows.Check(actor, closure.Subject(), workflows.ActionUploadDocument); err != nil {
		return nil, err
	}

	doc, err := s.api.UploadDocument(ctx, req.ClosureID, gateway.DocumentUpload{
		Title:        req.Title,
		DocumentType: string(req.DocumentType),
		FileName:     path.Base(req.FileName),
		Content:      req.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	s.logger.Info("Document uploaded",
		zap.Int64("closure_id", req.ClosureID),
		zap.Int64("document_id", doc.ID),
		zap.String("document_type", string(req.DocumentType)),
		zap.Int64("size", req.Size),
	)
	view := NewDocumentView(req.ClosureID, *doc, workflows.Allowed(actor, closure.Subject(), workflows.ActionDeleteDocument))
	return &view, nil
}

func (s *documentService) DeleteDocument(ctx context.Context, actor workflows.Actor, closureID, documentID int64) (*DeleteResult, error) {
	closure, err := s.api.GetClosure(ctx, closureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", closureID, err)
	}
	if err := workflows.Check(actor, closure.Subject(), workflows.ActionDeleteDocument); err != nil {
		return nil, err
	}
	if err := s.api.DeleteDocument(ctx, closureID, documentID); err != nil {
		return nil, fmt.Errorf("failed to delete document %d: %w", documentID, err)
	}

	s.logger.Info("Document deleted", zap.Int64("closure_id", closureID), zap.Int64("document_id", documentID))
	return &DeleteResult{ClosureID: closureID, DocumentID: documentID, Deleted: true}, nil
}

// DownloadDocument opens the file of a listed document and returns it with a file name.
func (s *documentService) DownloadDocument(ctx context.Context, closureID, documentID int64) (*gateway.FileStream, string, error) {
	docs, err := s.api.ListDocuments(ctx, closureID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list documents of closure %d: %w", closureID, err)
	}
	for _, doc := range docs {
		if doc.ID != documentID {
			continue
		}
		stream, err := s.api.DownloadDocument(ctx, doc.File)
		if err != nil {
			return nil, "", fmt.Errorf("failed to download document %d: %w", documentID, err)
		}
		return stream, path.Base(doc.File), nil
	}
	return nil, "", fmt.Errorf("document %d of closure %d: %w", documentID, closureID, views.ErrNotFound)
}
