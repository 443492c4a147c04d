package closures

import (
	"time"

	"crossing-closures/closure-portal/internal/documents"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/security"
	"crossing-closures/closure-portal/pkg/workflows"
)

// Controls are the buttons the current user gets on a closure.
type Controls struct {
	Edit                  bool               `json:"edit"`
	Delete                bool               `json:"delete"`
	SendForApproval       bool               `json:"send_for_approval"`
	Sign                  bool               `json:"sign"`
	ApproveAdministration bool               `json:"approve_administration"`
	ApproveGibdd          bool               `json:"approve_gibdd"`
	Reject                bool               `json:"reject"`
	Comment               bool               `json:"comment"`
	UploadDocument        bool               `json:"upload_document"`
	Actions               []workflows.Action `json:"actions"`
}

func NewControls(actor workflows.Actor, subject workflows.Subject) Controls {
	actions := workflows.AllowedActions(actor, subject)
	c := Controls{Actions: actions}
	if c.Actions == nil {
		c.Actions = []workflows.Action{}
	}
	for _, action := range actions {
		switch action {
		case workflows.ActionEdit:
			c.Edit = true
		case workflows.ActionDelete:
			c.Delete = true
		case workflows.ActionSendForApproval:
			c.SendForApproval = true
		case workflows.ActionSign:
			c.Sign = true
		case workflows.ActionApproveAdministration:
			c.ApproveAdministration = true
		case workflows.ActionApproveGibdd:
			c.ApproveGibdd = true
		case workflows.ActionReject:
			c.Reject = true
		case workflows.ActionComment:
			c.Comment = true
		case workflows.ActionUploadDocument:
			c.UploadDocument = true
		}
	}
	return c
}

// Summary is one row of a closure list.
type Summary struct {
	ID            int64            `json:"id"`
	CrossingID    int64            `json:"crossing_id"`
	CrossingName  string           `json:"crossing_name"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       time.Time        `json:"end_date"`
	Reason        string           `json:"reason"`
	Status        workflows.Status `json:"status"`
	StatusLabel   string           `json:"status_label"`
	AdminApproved bool             `json:"admin_approved"`
	GibddApproved bool             `json:"gibdd_approved"`
	CreatedBy     string           `json:"created_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewSummary(c gateway.Closure) Summary {
	s := Summary{
		ID:            c.ID,
		CrossingID:    c.RailwayCrossing,
		CrossingName:  c.CrossingName(),
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		Reason:        c.Reason,
		Status:        c.Status,
		StatusLabel:   workflows.StatusLabel(c.Status),
		AdminApproved: c.AdminApproved,
		GibddApproved: c.GibddApproved,
		CreatedAt:     c.CreatedAt,
	}
	if c.CreatedBy != nil {
		s.CreatedBy = c.CreatedBy.FullName()
	}
	return s
}

// Tab is a status filter offered above the list. An empty status means all.
type Tab struct {
	Status workflows.Status `json:"status"`
	Label  string           `json:"label"`
	Active bool             `json:"active"`
}

type ListView struct {
	Status    workflows.Status `json:"status"`
	Tabs      []Tab            `json:"tabs"`
	Closures  []Summary        `json:"closures"`
	CanCreate bool             `json:"can_create"`
}

// Approvals shows both sign-offs, administration first.
type Approvals struct {
	Administration bool `json:"administration"`
	TrafficPolice  bool `json:"traffic_police"`
}

type Signature struct {
	Stamp      string     `json:"stamp"`
	SignerName string     `json:"signer_name,omitempty"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
}

func newSignature(stamp string) *Signature {
	if stamp == "" {
		return nil
	}
	sig := &Signature{Stamp: stamp}
	if info, err := security.ParseStamp(stamp); err == nil {
		sig.SignerName = info.SignerName
		sig.SignedAt = &info.SigningTime
	}
	return sig
}

type CommentView struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailView is the closure page.
type DetailView struct {
	Summary
	Crossing  *gateway.Crossing        `json:"crossing,omitempty"`
	Approvals Approvals                `json:"approvals"`
	Signature *Signature               `json:"signature,omitempty"`
	Comments  []CommentView            `json:"comments"`
	Documents []documents.DocumentView `json:"documents"`
	Controls  Controls                 `json:"controls"`
	UpdatedAt time.Time                `json:"updated_at"`
	Alert     *views.Alert             `json:"alert,omitempty"`
}

func NewDetailView(c *gateway.Closure, actor workflows.Actor) *DetailView {
	subject := c.Subject()
	view := &DetailView{
		Summary:   NewSummary(*c),
		Crossing:  c.RailwayCrossingDetail,
		Approvals: Approvals{Administration: c.AdminApproved, TrafficPolice: c.GibddApproved},
		Signature: newSignature(c.DigitalSignature),
		Comments:  make([]CommentView, 0, len(c.Comments)),
		Documents: make([]documents.DocumentView, 0, len(c.Documents)),
		Controls:  NewControls(actor, subject),
		UpdatedAt: c.UpdatedAt,
	}
	for _, comment := range c.Comments {
		cv := CommentView{ID: comment.ID, Text: comment.Text, CreatedAt: comment.CreatedAt}
		if comment.User != nil {
			cv.Author = comment.User.FullName()
		}
		view.Comments = append(view.Comments, cv)
	}
	canDelete := workflows.Allowed(actor, subject, workflows.ActionDeleteDocument)
	for _, doc := range c.Documents {
		view.Documents = append(view.Documents, documents.NewDocumentView(c.ID, doc, canDelete))
	}
	return view
}

// FormAction says what to do once the form is saved.
type FormAction string

const (
	FormSave   FormAction = "save"
	FormSubmit FormAction = "submit"
)

// FormInput is the body of a create or update request.
type FormInput struct {
	RailwayCrossing int64      `json:"railway_crossing"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Reason          string     `json:"reason"`
	Action          FormAction `json:"action"`
	// Sign stamps the closure with the current user's signature.
	Sign bool `json:"sign"`
}

// Validate runs the field checks. Nothing is sent when it fails.
func (in FormInput) Validate() error {
	errs := validate.Errors{}
	errs.Check("railway_crossing", validate.RequiredID(in.RailwayCrossing))
	errs.Check("start_date", validate.RequiredTime(in.StartDate))
	errs.Check("end_date", validate.RequiredTime(in.EndDate))
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() {
		errs.Check("end_date", validate.After(in.StartDate, in.EndDate))
	}
	errs.Check("reason", validate.Reason(in.Reason))
	if in.Action != "" {
		errs.Check("action", validate.OneOf(string(in.Action), string(FormSave), string(FormSubmit)))
	}
	return errs.Err()
}

func (in FormInput) closureInput() gateway.ClosureInput {
	return gateway.ClosureInput{
		RailwayCrossing: in.RailwayCrossing,
		StartDate:       in.StartDate.UTC(),
		EndDate:         in.EndDate.UTC(),
		Reason:          trimmed(in.Reason),
	}
}

type CrossingOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FormValues are the current field values of the form.
type FormValues struct {
	RailwayCrossing int64      `json:"railway_crossing,omitempty"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	Reason          string     `json:"reason"`
}

// FormView backs both the create and the edit form.
type FormView struct {
	Mode            string                   `json:"mode"`
	ClosureID       int64                    `json:"closure_id,omitempty"`
	Values          FormValues               `json:"values"`
	Crossings       []CrossingOption         `json:"crossings"`
	DocumentTypes   []documents.TypeOption   `json:"document_types"`
	DefaultDocType  documents.DocumentType   `json:"default_document_type"`
	Documents       []documents.DocumentView `json:"documents"`
	Signature       *Signature               `json:"signature,omitempty"`
	CanUpload       bool                     `json:"can_upload"`
	MinReasonLength int                      `json:"min_reason_length"`
}
