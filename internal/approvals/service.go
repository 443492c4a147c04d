// Package approvals serves the queue of pending closures for approvers.
package approvals

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/closures"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/pkg/workflows"
)

type Tab string

const (
	TabAll  Tab = "all"
	TabMine Tab = "mine"
)

func (t Tab) Valid() bool {
	return t == TabAll || t == TabMine
}

// Flag labels one sign-off on a row.
type Flag struct {
	Label    string `json:"label"`
	Approved bool   `json:"approved"`
	Text     string `json:"text"`
}

type Row struct {
	closures.Summary
	Flags    []Flag            `json:"flags"`
	Controls closures.Controls `json:"controls"`
}

type TabLink struct {
	Tab    Tab    `json:"tab"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

type QueueView struct {
	Tab  Tab       `json:"tab"`
	Tabs []TabLink `json:"tabs"`
	Rows []Row     `json:"rows"`
}

// Lister is the part of the API the queue reads.
type Lister interface {
	ListClosures(ctx context.Context, status workflows.Status) ([]gateway.Closure, error)
}

type Service struct {
	api    Lister
	logger *zap.Logger
}

func NewService(api Lister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, logger: logger}
}

// Queue lists pending closures. The mine tab keeps only rows user can approve or reject.
func (s *Service) Queue(ctx context.Context, user *gateway.User, tab Tab) (*QueueView, error) {
	if tab == "" {
		tab = TabAll
	}
	if !tab.Valid() {
		return nil, validate.Errors{"tab": fmt.Sprintf("unknown tab %q", tab)}
	}

	pending, err := s.api.ListClosures(ctx, workflows.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending closures: %w", err)
	}

	actor := user.Actor()
	all := make([]Row, 0, len(pending))
	mine := make([]Row, 0)
	for i := range pending {
		row := newRow(actor, &pending[i])
		all = append(all, row)
		if actsOn(row.Controls) {
			mine = append(mine, row)
		}
	}

	view := &QueueView{
		Tab: tab,
		Tabs: []TabLink{
			{Tab: TabAll, Label: "All pending", Count: len(all), Active: tab == TabAll},
			{Tab: TabMine, Label: "Awaiting my decision", Count: len(mine), Active: tab == TabMine},
		},
		Rows: all,
	}
	if tab == TabMine {
		view.Rows = mine
	}

	s.logger.Debug("Approval queue built",
		zap.Int64("user_id", user.ID),
		zap.String("tab", string(tab)),
		zap.Int("rows", len(view.Rows)))
	return view, nil
}

func newRow(actor workflows.Actor, c *gateway.Closure) Row {
	return Row{
		Summary:  closures.NewSummary(*c),
		Flags:    flags(c),
		Controls: closures.NewControls(actor, c.Subject()),
	}
}

func actsOn(c closures.Controls) bool {
	return c.ApproveAdministration || c.ApproveGibdd
}

// flags lists administration before traffic police; the second sign-off waits on the first.
func flags(c *gateway.Closure) []Flag {
	admin := Flag{Label: workflows.RoleLabel(workflows.RoleAdministration), Approved: c.AdminApproved, Text: "Awaiting approval"}
	if c.AdminApproved {
		admin.Text = "Approved"
	}

	police := Flag{Label: workflows.RoleLabel(workflows.RoleTrafficPolice), Approved: c.GibddApproved}
	switch {
	case c.GibddApproved:
		police.Text = "Approved"
	case !c.AdminApproved:
		police.Text = "Waiting for administration"
	default:
		police.Text = "Awaiting approval"
	}
	return []Flag{admin, police}
}
