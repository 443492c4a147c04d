package workflows

import (
	"errors"
	"fmt"
)

// Role is the authorization signal carried by the user profile.
type Role string

const (
	RoleRailwayOperator Role = "railway_operator"
	RoleAdministration  Role = "administration"
	RoleTrafficPolice   Role = "traffic_police"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRailwayOperator, RoleAdministration, RoleTrafficPolice:
		return true
	}
	return false
}

// IsApprover reports whether the role takes part in approval.
func (r Role) IsApprover() bool {
	return r == RoleAdministration || r == RoleTrafficPolice
}

// Action is something a user may do to a closure.
type Action string

const (
	ActionEdit                  Action = "edit"
	ActionDelete                Action = "delete"
	ActionSendForApproval       Action = "send_for_approval"
	ActionApproveAdministration Action = "approve_administration"
	ActionApproveGibdd          Action = "approve_gibdd"
	ActionReject                Action = "reject"
	ActionSign                  Action = "sign"
	ActionComment               Action = "comment"
	ActionUploadDocument        Action = "upload_document"
	ActionDeleteDocument        Action = "delete_document"
)

// Actions lists every action in the order controls are rendered.
var Actions = []Action{
	ActionEdit,
	ActionSendForApproval,
	ActionSign,
	ActionApproveAdministration,
	ActionApproveGibdd,
	ActionReject,
	ActionDelete,
	ActionComment,
	ActionUploadDocument,
	ActionDeleteDocument,
}

// Actor is the identity asking to act.
type Actor struct {
	ID   int64
	Role Role
}

// Subject is the part of a closure the rules look at.
type Subject struct {
	Status        Status
	AdminApproved bool
	GibddApproved bool
	CreatorID     int64
}

// Allowed reports whether actor may perform action on subject.
// The API enforces the same rules; the portal uses them to decide which
// controls to offer and to refuse obviously invalid requests early.
func Allowed(actor Actor, subject Subject, action Action) bool {
	if !actor.Role.Valid() {
		return false
	}

	isCreator := actor.Role == RoleRailwayOperator && actor.ID != 0 && actor.ID == subject.CreatorID

	switch action {
	case ActionEdit, ActionSendForApproval, ActionSign, ActionUploadDocument, ActionDeleteDocument:
		return isCreator && subject.Status == StatusDraft
	case ActionDelete:
		return isCreator && (subject.Status == StatusDraft || subject.Status == StatusRejected)
	case ActionApproveAdministration:
		return actor.Role == RoleAdministration &&
			subject.Status == StatusPending &&
			!subject.AdminApproved
	case ActionApproveGibdd:
		// administration signs off first
		return actor.Role == RoleTrafficPolice &&
			subject.Status == StatusPending &&
			subject.AdminApproved &&
			!subject.GibddApproved
	case ActionReject:
		return actor.Role.IsApprover() && subject.Status == StatusPending
	case ActionComment:
		return true
	default:
		return false
	}
}

// AllowedActions returns every action actor may perform on subject.
func AllowedActions(actor Actor, subject Subject) []Action {
	var actions []Action
	for _, action := range Actions {
		if Allowed(actor, subject, action) {
			actions = append(actions, action)
		}
	}
	return actions
}

// StatusLabel returns the display label for a status.
func StatusLabel(s Status) string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPending:
		return "Pending approval"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}

// RoleLabel returns the display label for a role.
func RoleLabel(r Role) string {
	switch r {
	case RoleRailwayOperator:
		return "Railway operator"
	case RoleAdministration:
		return "Regional administration"
	case RoleTrafficPolice:
		return "Traffic police"
	default:
		return "Unknown role"
	}
}

// ErrForbidden is wrapped by Check when the rules refuse an action.
var ErrForbidden = errors.New("action not allowed")

// Check returns an error wrapping ErrForbidden unless the action is allowed.
func Check(actor Actor, subject Subject, action Action) error {
	if Allowed(actor, subject, action) {
		return nil
	}
	return fmt.Errorf("%w: %s on a %s closure", ErrForbidden, action, subject.Status)
}

// Submission requirements checked before a draft is sent for approval.
var (
	ErrUnsigned    = errors.New("the closure must be signed before it is sent for approval")
	ErrNoDocuments = errors.New("at least one document must be attached before the closure is sent for approval")
)

// CheckSubmission verifies a draft is ready to be sent for approval.
func CheckSubmission(signed bool, documents int) error {
	if !signed {
		return ErrUnsigned
	}
	if documents < 1 {
		return ErrNoDocuments
	}
	return nil
}
