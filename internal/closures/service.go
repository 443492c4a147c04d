package closures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/documents"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/notifications"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/security"
	"crossing-closures/closure-portal/pkg/workflows"
)

// Notifier is told about every successful status action.
type Notifier interface {
	PublishTransition(ctx context.Context, event notifications.TransitionEvent)
}

// CrossingLister provides the crossing choices of the form.
type CrossingLister interface {
	ListCrossings(ctx context.Context) ([]gateway.Crossing, error)
}

type Service interface {
	ListClosures(ctx context.Context, user *gateway.User, status workflows.Status) (*ListView, error)
	GetClosure(ctx context.Context, user *gateway.User, id int64) (*DetailView, error)
	NewForm(ctx context.Context, user *gateway.User) (*FormView, error)
	EditForm(ctx context.Context, user *gateway.User, id int64) (*FormView, error)
	CreateClosure(ctx context.Context, user *gateway.User, in FormInput) (*DetailView, error)
	UpdateClosure(ctx context.Context, user *gateway.User, id int64, in FormInput) (*DetailView, error)
	Transition(ctx context.Context, user *gateway.User, id int64, action workflows.Action) (*DetailView, error)
	DeleteClosure(ctx context.Context, user *gateway.User, id int64) error
	AddComment(ctx context.Context, user *gateway.User, id int64, text string) (*DetailView, error)
}

type closureService struct {
	api       gateway.ClosuresAPI
	crossings CrossingLister
	notifier  Notifier
	machine   *workflows.StateMachine
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(api gateway.ClosuresAPI, crossings CrossingLister, notifier Notifier, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &closureService{
		api:       api,
		crossings: crossings,
		notifier:  notifier,
		machine:   workflows.NewStateMachine(),
		logger:    logger,
		now:       time.Now,
	}
}

var transitionMessages = map[workflows.Action]string{
	workflows.ActionSendForApproval:       "Closure sent for approval",
	workflows.ActionApproveAdministration: "Approved on behalf of the administration",
	workflows.ActionApproveGibdd:          "Approved on behalf of the traffic police",
	workflows.ActionReject:                "Closure rejected",
	workflows.ActionSign:                  "Closure signed",
}

func (s *closureService) ListClosures(ctx context.Context, user *gateway.User, status workflows.Status) (*ListView, error) {
	if status != "" && !status.Valid() {
		return nil, validate.Errors{"status": "unknown status"}
	}
	isOperator := user.Role == workflows.RoleRailwayOperator
	if status == workflows.StatusDraft && !isOperator {
		return nil, fmt.Errorf("%w: drafts are listed for railway operators only", workflows.ErrForbidden)
	}

	closures, err := s.api.ListClosures(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}

	view := &ListView{
		Status:    status,
		Tabs:      tabs(user.Role, status),
		Closures:  make([]Summary, 0, len(closures)),
		CanCreate: isOperator,
	}
	for _, c := range closures {
		view.Closures = append(view.Closures, NewSummary(c))
	}
	return view, nil
}

func tabs(role workflows.Role, active workflows.Status) []Tab {
	out := []Tab{{Label: "All", Active: active == ""}}
	for _, status := range workflows.Statuses {
		if status == workflows.StatusDraft && role != workflows.RoleRailwayOperator {
			continue
		}
		out = append(out, Tab{Status: status, Label: workflows.StatusLabel(status), Active: status == active})
	}
	return out
}

func (s *closureService) GetClosure(ctx context.Context, user *gateway.User, id int64) (*DetailView, error) {
	closure, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", id, err)
	}
	return NewDetailView(closure, user.Actor()), nil
}

func (s *closureService) NewForm(ctx context.Context, user *gateway.User) (*FormView, error) {
	if user.Role != workflows.RoleRailwayOperator {
		return nil, fmt.Errorf("%w: only railway operators create closures", workflows.ErrForbidden)
	}
	crossings, err := s.crossingOptions(ctx)
	if err != nil {
		return nil, err
	}
	return &FormView{
		Mode:            "create",
		Crossings:       crossings,
		DocumentTypes:   documents.TypeOptions(),
		DefaultDocType:  documents.DefaultType,
		Documents:       []documents.DocumentView{},
		MinReasonLength: validate.MinReasonLength,
	}, nil
}

func (s *closureService) EditForm(ctx context.Context, user *gateway.User, id int64) (*FormView, error) {
	closure, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", id, err)
	}
	actor := user.Actor()
	if err := workflows.Check(actor, closure.Subject(), workflows.ActionEdit); err != nil {
		return nil, err
	}
	crossings, err := s.crossingOptions(ctx)
	if err != nil {
		return nil, err
	}

	detail := NewDetailView(closure, actor)
	start, end := closure.StartDate, closure.EndDate
	return &FormView{
		Mode:      "edit",
		ClosureID: closure.ID,
		Values: FormValues{
			RailwayCrossing: closure.RailwayCrossing,
			StartDate:       &start,
			EndDate:         &end,
			Reason:          closure.Reason,
		},
		Crossings:       crossings,
		DocumentTypes:   documents.TypeOptions(),
		DefaultDocType:  documents.DefaultType,
		Documents:       detail.Documents,
		Signature:       detail.Signature,
		CanUpload:       detail.Controls.UploadDocument,
		MinReasonLength: validate.MinReasonLength,
	}, nil
}

func (s *closureService) crossingOptions(ctx context.Context) ([]CrossingOption, error) {
	crossings, err := s.crossings.ListCrossings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list crossings: %w", err)
	}
	out := make([]CrossingOption, 0, len(crossings))
	for _, c := range crossings {
		out = append(out, CrossingOption{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// CreateClosure saves a new draft. A new closure has no documents yet, so
// asking to submit it is refused before anything is sent.
func (s *closureService) CreateClosure(ctx context.Context, user *gateway.User, in FormInput) (*DetailView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if user.Role != workflows.RoleRailwayOperator {
		return nil, fmt.Errorf("%w: only railway operators create closures", workflows.ErrForbidden)
	}
	if in.Action == FormSubmit {
		if err := workflows.CheckSubmission(in.Sign, 0); err != nil {
			return nil, err
		}
	}

	created, err := s.api.CreateClosure(ctx, in.closureInput())
	if err != nil {
		return nil, fmt.Errorf("failed to create closure: %w", err)
	}
	s.logger.Info("Closure created", zap.Int64("closure_id", created.ID), zap.Int64("user_id", user.ID))

	if in.Sign {
		if err := s.sign(ctx, user, created.ID); err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return nil, err
			}
			// the draft already exists
			s.logger.Warn("Draft created but not signed", zap.Int64("closure_id", created.ID), zap.Error(err))
			view, reloadErr := s.reload(ctx, user, created.ID, "")
			if reloadErr != nil {
				return nil, fmt.Errorf("closure %d was saved as a draft but not signed: %w", created.ID, err)
			}
			view.Alert = views.WarningAlert("Closure saved as a draft but could not be signed. Sign it from the closure page.")
			return view, nil
		}
	}

	return s.reload(ctx, user, created.ID, "Closure saved as a draft")
}

// UpdateClosure saves an edited draft and, on submit, signs and sends it.
// Submission requirements are checked before the first change is sent.
func (s *closureService) UpdateClosure(ctx context.Context, user *gateway.User, id int64, in FormInput) (*DetailView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	before, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", id, err)
	}
	actor := user.Actor()
	if err := workflows.Check(actor, before.Subject(), workflows.ActionEdit); err != nil {
		return nil, err
	}

	submit := in.Action == FormSubmit
	if submit {
		if err := workflows.CheckSubmission(before.DigitalSignature != "" || in.Sign, len(before.Documents)); err != nil {
			return nil, err
		}
	}

	if _, err := s.api.UpdateClosure(ctx, id, in.closureInput()); err != nil {
		return nil, fmt.Errorf("failed to update closure %d: %w", id, err)
	}
	if in.Sign {
		if err := s.sign(ctx, user, id); err != nil {
			return nil, err
		}
	}
	if !submit {
		return s.reload(ctx, user, id, "Closure saved")
	}

	if err := s.api.SendForApproval(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to send closure %d for approval: %w", id, err)
	}
	after, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload closure %d: %w", id, err)
	}
	s.observe(ctx, user, workflows.ActionSendForApproval, before, after)

	view := NewDetailView(after, actor)
	view.Alert = views.SuccessAlert(transitionMessages[workflows.ActionSendForApproval])
	return view, nil
}

// Transition runs one lifecycle action and returns the closure as the API now reports it.
func (s *closureService) Transition(ctx context.Context, user *gateway.User, id int64, action workflows.Action) (*DetailView, error) {
	message, ok := transitionMessages[action]
	if !ok {
		return nil, fmt.Errorf("action %q: %w", action, views.ErrNotFound)
	}

	before, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load closure %d: %w", id, err)
	}
	actor := user.Actor()
	if err := workflows.Check(actor, before.Subject(), action); err != nil {
		return nil, err
	}

	switch action {
	case workflows.ActionSendForApproval:
		if len(before.Documents) == 0 {
			return nil, workflows.ErrNoDocuments
		}
		if err := s.api.SendForApproval(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to send closure %d for approval: %w", id, err)
		}
	case workflows.ActionApproveAdministration:
		if err := s.api.ApproveAdministration(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to approve closure %d: %w", id, err)
		}
	case workflows.ActionApproveGibdd:
		if err := s.api.ApproveGibdd(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to approve closure %d: %w", id, err)
		}
	case workflows.ActionReject:
		if err := s.api.Reject(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to reject closure %d: %w", id, err)
		}
	case workflows.ActionSign:
		if err := s.sign(ctx, user, id); err != nil {
			return nil, err
		}
	}

	after, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload closure %d: %w", id, err)
	}
	if action != workflows.ActionSign {
		s.observe(ctx, user, action, before, after)
	}

	view := NewDetailView(after, actor)
	view.Alert = views.SuccessAlert(message)
	return view, nil
}

func (s *closureService) DeleteClosure(ctx context.Context, user *gateway.User, id int64) error {
	closure, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load closure %d: %w", id, err)
	}
	if err := workflows.Check(user.Actor(), closure.Subject(), workflows.ActionDelete); err != nil {
		return err
	}
	if err := s.api.DeleteClosure(ctx, id); err != nil {
		return fmt.Errorf("failed to delete closure %d: %w", id, err)
	}
	s.logger.Info("Closure deleted",
		zap.Int64("closure_id", id),
		zap.String("status", string(closure.Status)),
		zap.Int64("user_id", user.ID),
	)
	return nil
}

// AddComment appends to the thread. Comments cannot be edited or removed.
func (s *closureService) AddComment(ctx context.Context, user *gateway.User, id int64, text string) (*DetailView, error) {
	text = trimmed(text)
	if text == "" {
		return nil, validate.Errors{"text": "required"}
	}
	if err := workflows.Check(user.Actor(), workflows.Subject{}, workflows.ActionComment); err != nil {
		return nil, err
	}
	if _, err := s.api.AddComment(ctx, id, text); err != nil {
		return nil, fmt.Errorf("failed to comment on closure %d: %w", id, err)
	}
	return s.reload(ctx, user, id, "Comment added")
}

func (s *closureService) sign(ctx context.Context, user *gateway.User, id int64) error {
	stamp := security.Stamp(user.FirstName, user.LastName, s.now())
	if strings.TrimSpace(user.FirstName+user.LastName) == "" {
		stamp = security.Stamp(user.Username, "", s.now())
	}
	if err := s.api.SignClosure(ctx, id, stamp); err != nil {
		return fmt.Errorf("failed to sign closure %d: %w", id, err)
	}
	return nil
}

func (s *closureService) reload(ctx context.Context, user *gateway.User, id int64, message string) (*DetailView, error) {
	closure, err := s.api.GetClosure(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload closure %d: %w", id, err)
	}
	view := NewDetailView(closure, user.Actor())
	view.Alert = views.SuccessAlert(message)
	return view, nil
}

// observe logs surprising status changes and publishes the event. The API's
// answer is trusted either way.
func (s *closureService) observe(ctx context.Context, user *gateway.User, action workflows.Action, before, after *gateway.Closure) {
	if !s.machine.CanTransition(before.Status, after.Status) {
		s.logger.Warn("Unexpected closure status change",
			zap.Int64("closure_id", after.ID),
			zap.String("action", string(action)),
			zap.String("from", string(before.Status)),
			zap.String("to", string(after.Status)),
		)
	}
	if s.notifier == nil {
		return
	}
	s.notifier.PublishTransition(ctx, notifications.TransitionEvent{
		ClosureID:     after.ID,
		CrossingName:  after.CrossingName(),
		Action:        action,
		ActorID:       user.ID,
		ActorRole:     user.Role,
		From:          before.Status,
		To:            after.Status,
		AdminApproved: after.AdminApproved,
		GibddApproved: after.GibddApproved,
		OccurredAt:    s.now().UTC(),
	})
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
