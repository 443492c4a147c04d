package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"crossing-closures/closure-portal/pkg/workflows"
)

// User is the profile returned by the auth endpoints.
type User struct {
	ID        int64          `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Role      workflows.Role `json:"role"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Actor returns the identity used by the lifecycle rules.
func (u User) Actor() workflows.Actor {
	return workflows.Actor{ID: u.ID, Role: u.Role}
}

// UserRef accepts either a nested user object or a bare user id.
type UserRef struct {
	User
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, &r.User)
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("user reference: %w", err)
	}
	r.User = User{ID: id}
	return nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.User)
}

// Crossing is a railway/road intersection.
type Crossing struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Closure   int64     `json:"closure,omitempty"`
	User      *User     `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	DocumentType string    `json:"document_type"`
	Closure      int64     `json:"closure"`
	UploadedBy   *UserRef  `json:"uploaded_by,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	File         string    `json:"file"`
}

// Closure is a request to close a crossing for a time window.
type Closure struct {
	ID                    int64            `json:"id"`
	RailwayCrossing       int64            `json:"railway_crossing"`
	RailwayCrossingDetail *Crossing        `json:"railway_crossing_detail,omitempty"`
	CreatedBy             *User            `json:"created_by,omitempty"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"`
	Reason                string           `json:"reason"`
	Status                workflows.Status `json:"status"`
	StatusDisplay         string           `json:"status_display,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
	AdminApproved         bool             `json:"admin_approved"`
	GibddApproved         bool             `json:"gibdd_approved"`
	DigitalSignature      string           `json:"digital_signature,omitempty"`
	Comments              []Comment        `json:"comments"`
	Documents             []Document       `json:"documents,omitempty"`
}

// CreatorID is zero when the creator is not known.
func (c *Closure) CreatorID() int64 {
	if c.CreatedBy == nil {
		return 0
	}
	return c.CreatedBy.ID
}

// Subject returns the fields the lifecycle rules look at.
func (c *Closure) Subject() workflows.Subject {
	return workflows.Subject{
		Status:        c.Status,
		AdminApproved: c.AdminApproved,
		GibddApproved: c.GibddApproved,
		CreatorID:     c.CreatorID(),
	}
}

// CrossingName prefers the nested crossing detail.
func (c *Closure) CrossingName() string {
	if c.RailwayCrossingDetail != nil {
		return c.RailwayCrossingDetail.Name
	}
	return fmt.Sprintf("Crossing #%d", c.RailwayCrossing)
}

// ClosureInput is the writable part of a closure.
type ClosureInput struct {
	RailwayCrossing int64     `json:"railway_crossing"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Reason          string    `json:"reason"`
}

// Activity is one entry of the cross-closure activity feed.
type Activity struct {
	ID          int64     `json:"id"`
	ClosureID   int64     `json:"closure_id"`
	ClosureName string    `json:"closure_name"`
	User        *User     `json:"user,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapExportItem is an approved closure flattened with its crossing location.
type MapExportItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// DocumentUpload is a file to attach to a closure.
type DocumentUpload struct {
	Title        string
	DocumentType string
	FileName     string
	Content      io.Reader
}

// FileStream is a downloaded document body. Callers must close Body.
type FileStream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}
