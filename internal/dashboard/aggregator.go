// Package dashboard assembles the landing view: closure counts and the activity feed.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

// DefaultActivityLimit is how many feed entries the dashboard shows.
const DefaultActivityLimit = 10

// Source is the part of the API the dashboard reads.
type Source interface {
	ListCrossings(ctx context.Context) ([]gateway.Crossing, error)
	ListClosures(ctx context.Context, status workflows.Status) ([]gateway.Closure, error)
	ListActivities(ctx context.Context) ([]gateway.Activity, error)
}

// Counts are the dashboard tiles.
type Counts struct {
	Crossings int `json:"crossings"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	// Drafts is only filled for railway operators.
	Drafts *int `json:"drafts,omitempty"`
	// AwaitingMe counts pending closures the user can approve right now.
	AwaitingMe int `json:"awaiting_me"`
}

type ActivityView struct {
	ID          int64     `json:"id"`
	ClosureID   int64     `json:"closure_id"`
	ClosureName string    `json:"closure_name"`
	User        string    `json:"user,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary is the dashboard view.
type Summary struct {
	Greeting      string         `json:"greeting"`
	Role          workflows.Role `json:"role"`
	RoleLabel     string         `json:"role_label"`
	Counts        Counts         `json:"counts"`
	CanCreate     bool           `json:"can_create"`
	Activities    []ActivityView `json:"activities"`
	ActivityAlert *views.Alert   `json:"activity_alert,omitempty"`
	ComputedAt    time.Time      `json:"computed_at"`
}

// AggregatorConfig bounds the activity feed.
type AggregatorConfig struct {
	ActivityLimit int `json:"activity_limit"`
}

// Aggregator handles dashboard data aggregation
type Aggregator struct {
	source Source
	logger *zap.Logger
	config AggregatorConfig
	now    func() time.Time
}

func NewAggregator(source Source, logger *zap.Logger, config AggregatorConfig) *Aggregator {
	if config.ActivityLimit <= 0 {
		config.ActivityLimit = DefaultActivityLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{source: source, logger: logger, config: config, now: time.Now}
}

// GetDashboardSummary fetches counts and the activity feed concurrently.
// A failing count fails the view; a failing feed only gets its own alert,
// unless the token was rejected.
func (a *Aggregator) GetDashboardSummary(ctx context.Context, user *gateway.User) (*Summary, error) {
	summary := &Summary{
		Greeting:   user.FullName(),
		Role:       user.Role,
		RoleLabel:  workflows.RoleLabel(user.Role),
		CanCreate:  user.Role == workflows.RoleRailwayOperator,
		Activities: []ActivityView{},
	}

	var (
		wg            sync.WaitGroup
		activities    []gateway.Activity
		activitiesErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		activities, activitiesErr = a.source.ListActivities(ctx)
	}()

	counts, err := a.computeCounts(ctx, user)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	summary.Counts = *counts

	if errors.Is(activitiesErr, gateway.ErrUnauthorized) {
		return nil, activitiesErr
	}
	if activitiesErr != nil {
		a.logger.Warn("Activity feed unavailable", zap.Error(activitiesErr))
		summary.ActivityAlert = views.WarningAlert("Recent activity could not be loaded")
	} else {
		summary.Activities = a.activityViews(activities)
	}

	summary.ComputedAt = a.now()
	return summary, nil
}

func (a *Aggregator) computeCounts(ctx context.Context, user *gateway.User) (*Counts, error) {
	counts := &Counts{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		crossings, err := a.source.ListCrossings(gctx)
		if err != nil {
			return fmt.Errorf("crossings: %w", err)
		}
		counts.Crossings = len(crossings)
		return nil
	})
	g.Go(func() error {
		pending, err := a.source.ListClosures(gctx, workflows.StatusPending)
		if err != nil {
			return fmt.Errorf("pending closures: %w", err)
		}
		counts.Pending = len(pending)
		counts.AwaitingMe = awaiting(user.Actor(), pending)
		return nil
	})
	g.Go(func() error {
		approved, err := a.source.ListClosures(gctx, workflows.StatusApproved)
		if err != nil {
			return fmt.Errorf("approved closures: %w", err)
		}
		counts.Approved = len(approved)
		return nil
	})
	g.Go(func() error {
		rejected, err := a.source.ListClosures(gctx, workflows.StatusRejected)
		if err != nil {
			return fmt.Errorf("rejected closures: %w", err)
		}
		counts.Rejected = len(rejected)
		return nil
	})
	if user.Role == workflows.RoleRailwayOperator {
		g.Go(func() error {
			drafts, err := a.source.ListClosures(gctx, workflows.StatusDraft)
			if err != nil {
				return fmt.Errorf("draft closures: %w", err)
			}
			n := len(drafts)
			counts.Drafts = &n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func awaiting(actor workflows.Actor, pending []gateway.Closure) int {
	n := 0
	for i := range pending {
		subject := pending[i].Subject()
		if workflows.Allowed(actor, subject, workflows.ActionApproveAdministration) ||
			workflows.Allowed(actor, subject, workflows.ActionApproveGibdd) {
			n++
		}
	}
	return n
}

func (a *Aggregator) activityViews(activities []gateway.Activity) []ActivityView {
	if len(activities) > a.config.ActivityLimit {
		activities = activities[:a.config.ActivityLimit]
	}
	out := make([]ActivityView, 0, len(activities))
	for _, act := range activities {
		v := ActivityView{
			ID:          act.ID,
			ClosureID:   act.ClosureID,
			ClosureName: act.ClosureName,
			Text:        act.Text,
			CreatedAt:   act.CreatedAt,
		}
		if act.User != nil {
			v.User = act.User.FullName()
		}
		out = append(out, v)
	}
	return out
}
