package notifications

import (
	"time"

	"crossing-closures/closure-portal/pkg/workflows"
)

// TransitionEvent describes one successful closure action.
type TransitionEvent struct {
	ID            string           `json:"id"`
	ClosureID     int64            `json:"closure_id"`
	CrossingName  string           `json:"crossing_name"`
	Action        workflows.Action `json:"action"`
	ActorID       int64            `json:"actor_id"`
	ActorRole     workflows.Role   `json:"actor_role"`
	From          workflows.Status `json:"from_status"`
	To            workflows.Status `json:"to_status"`
	AdminApproved bool             `json:"admin_approved"`
	GibddApproved bool             `json:"gibdd_approved"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// Subject is the short line used as the SNS subject.
func (e TransitionEvent) Subject() string {
	return "Closure " + workflows.StatusLabel(e.To) + ": " + e.CrossingName
}
