package gateway

import (
	"context"

	"crossing-closures/closure-portal/pkg/workflows"
)

// AuthAPI is the part of the API used to establish sessions.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context) (*User, error)
}

// ClosuresAPI covers closures, their documents and comments.
type ClosuresAPI interface {
	ListClosures(ctx context.Context, status workflows.Status) ([]Closure, error)
	GetClosure(ctx context.Context, id int64) (*Closure, error)
	CreateClosure(ctx context.Context, in ClosureInput) (*Closure, error)
	UpdateClosure(ctx context.Context, id int64, in ClosureInput) (*Closure, error)
	DeleteClosure(ctx context.Context, id int64) error
	SendForApproval(ctx context.Context, id int64) error
	ApproveAdministration(ctx context.Context, id int64) error
	ApproveGibdd(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64) error
	SignClosure(ctx context.Context, id int64, signature string) error
	AddComment(ctx context.Context, closureID int64, text string) (*Comment, error)
	DocumentsAPI
}

// DocumentsAPI covers closure attachments.
type DocumentsAPI interface {
	ListDocuments(ctx context.Context, closureID int64) ([]Document, error)
	UploadDocument(ctx context.Context, closureID int64, upload DocumentUpload) (*Document, error)
	DeleteDocument(ctx context.Context, closureID, documentID int64) error
	DownloadDocument(ctx context.Context, fileRef string) (*FileStream, error)
}

// ReferenceAPI covers read-only data.
type ReferenceAPI interface {
	ListCrossings(ctx context.Context) ([]Crossing, error)
	ListActivities(ctx context.Context) ([]Activity, error)
	ExportApproved(ctx context.Context) ([]MapExportItem, error)
}

// API is everything the Client offers.
type API interface {
	AuthAPI
	ClosuresAPI
	ReferenceAPI
}

var _ API = (*Client)(nil)
