package workflows

// Status is the lifecycle state of a closure request as reported by the API.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// StateMachine describes the status transitions the portal expects to observe.
// The API owns the lifecycle; this is only used to flag surprising answers.
type StateMachine struct {
	allowedTransitions map[Status][]Status
}

// NewStateMachine creates a new state machine with the observed transitions
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[Status][]Status{
			StatusDraft:   {StatusPending},
			StatusPending: {StatusApproved, StatusRejected},
			// rejected -> draft is decided by the API and is not encoded here
			StatusApproved: {},
			StatusRejected: {},
		},
	}
}

// CanTransition checks if a status transition is expected.
// Staying in the same status is always expected (approval flags may change).
func (sm *StateMachine) CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the expected next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from Status) []Status {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []Status{}
	}
	return allowed
}
