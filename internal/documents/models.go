package documents

import (
	"fmt"
	"io"
	"time"

	"crossing-closures/closure-portal/internal/gateway"
)

type DocumentType string

const (
	TypeRoadScheme           DocumentType = "road_scheme"
	TypeInterServiceApproval DocumentType = "inter_service_approval"
	TypeContract             DocumentType = "contract"
	TypeSupporting           DocumentType = "supporting"
	TypeOther                DocumentType = "other"
)

// DefaultType is preselected in upload forms.
const DefaultType = TypeSupporting

// Types lists the document types in the order forms offer them.
var Types = []DocumentType{
	TypeRoadScheme,
	TypeInterServiceApproval,
	TypeContract,
	TypeSupporting,
	TypeOther,
}

func (t DocumentType) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

func (t DocumentType) Label() string {
	switch t {
	case TypeRoadScheme:
		return "Road scheme"
	case TypeInterServiceApproval:
		return "Inter-service approval"
	case TypeContract:
		return "Contract"
	case TypeSupporting:
		return "Supporting document"
	case TypeOther:
		return "Other"
	default:
		return string(t)
	}
}

// TypeOption is one entry of the document type selector.
type TypeOption struct {
	Value DocumentType `json:"value"`
	Label string       `json:"label"`
}

// TypeOptions returns the selector entries for every known type.
func TypeOptions() []TypeOption {
	out := make([]TypeOption, 0, len(Types))
	for _, t := range Types {
		out = append(out, TypeOption{Value: t, Label: t.Label()})
	}
	return out
}

// DocumentView is a document as shown in a closure's document list.
type DocumentView struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	DocumentType DocumentType `json:"document_type"`
	TypeLabel    string       `json:"type_label"`
	UploadedBy   string       `json:"uploaded_by,omitempty"`
	UploadedAt   time.Time    `json:"uploaded_at"`
	DownloadURL  string       `json:"download_url"`
	CanDelete    bool         `json:"can_delete"`
}

// ListView is the document panel of a closure.
type ListView struct {
	ClosureID     int64          `json:"closure_id"`
	Documents     []DocumentView `json:"documents"`
	CanUpload     bool           `json:"can_upload"`
	Types         []TypeOption   `json:"types"`
	DefaultType   DocumentType   `json:"default_type"`
	MaxUploadSize int64          `json:"max_upload_size"`
}

// UploadRequest is a file posted by the browser.
type UploadRequest struct {
	ClosureID    int64
	Title        string
	DocumentType DocumentType
	FileName     string
	Size         int64
	Content      io.Reader
}

// DeleteResult tells the browser which entry to drop from its list.
type DeleteResult struct {
	ClosureID  int64 `json:"closure_id"`
	DocumentID int64 `json:"document_id"`
	Deleted    bool  `json:"deleted"`
}

// DownloadPath is the portal route streaming a document file.
func DownloadPath(closureID, documentID int64) string {
	return fmt.Sprintf("/api/closures/%d/documents/%d/file", closureID, documentID)
}

// NewDocumentView converts an API document. canDelete comes from the lifecycle rules.
func NewDocumentView(closureID int64, doc gateway.Document, canDelete bool) DocumentView {
	view := DocumentView{
		ID:           doc.ID,
		Title:        doc.Title,
		DocumentType: DocumentType(doc.DocumentType),
		TypeLabel:    DocumentType(doc.DocumentType).Label(),
		UploadedAt:   doc.UploadedAt,
		DownloadURL:  DownloadPath(closureID, doc.ID),
		CanDelete:    canDelete,
	}
	if doc.UploadedBy != nil {
		view.UploadedBy = doc.UploadedBy.FullName()
	}
	return view
}
