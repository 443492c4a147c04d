package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/session"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

// HomePath is where the browser goes after signing in.
const HomePath = "/"

// Sessions opens and closes portal sessions.
type Sessions interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Restore(ctx context.Context, token string) (*session.Session, error)
	Logout(ctx context.Context, id string) error
}

type Handler struct {
	sessions Sessions
	guard    *middleware.Guard
	logger   *zap.Logger
}

func NewHandler(sessions Sessions, guard *middleware.Guard, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, guard: guard, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type RestoreRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// LoginView is the sign-in form.
type LoginView struct {
	View     string  `json:"view"`
	Title    string  `json:"title"`
	Action   string  `json:"action"`
	Fields   []Field `json:"fields"`
	Redirect string  `json:"redirect,omitempty"`
}

// SessionView reports the guard state to the frontend.
type SessionView struct {
	State    session.State `json:"state"`
	User     *Profile      `json:"user,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
}

type Profile struct {
	ID        int64          `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email,omitempty"`
	FullName  string         `json:"full_name"`
	Role      workflows.Role `json:"role"`
	RoleLabel string         `json:"role_label"`
	CanCreate bool           `json:"can_create"`
}

func NewProfile(u *gateway.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName(),
		Role:      u.Role,
		RoleLabel: workflows.RoleLabel(u.Role),
		CanCreate: u.Role == workflows.RoleRailwayOperator,
	}
}

// LoginPage returns the sign-in form, or a redirect home for a live session.
func (h *Handler) LoginPage(c *gin.Context) {
	view := LoginView{
		View:   "login",
		Title:  "Railway crossing closures",
		Action: "/auth/login",
		Fields: []Field{
			{Name: "username", Label: "Username", Type: "text"},
			{Name: "password", Label: "Password", Type: "password"},
		},
	}
	if _, state, err := h.guard.Resolve(c); err == nil && state == session.StateAuthenticated {
		view.Redirect = HomePath
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.guard.SetSessionCookie(c, sess.ID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, SessionView{
		State:    session.StateAuthenticated,
		User:     NewProfile(sess.User),
		Redirect: HomePath,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), h.guard.SessionID(c)); err != nil {
		h.logger.Error("Failed to drop session on logout", zap.Error(err))
	}
	h.guard.ClearSessionCookie(c)
	c.JSON(http.StatusOK, SessionView{
		State:    session.StateUnauthenticated,
		Redirect: middleware.LoginPath,
	})
}

// Restore opens a session from a token the browser kept. The profile is
// fetched on the next guarded request.
func (h *Handler) Restore(c *gin.Context) {
	var req RestoreRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	sess, err := h.sessions.Restore(c.Request.Context(), req.Token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.guard.SetSessionCookie(c, sess.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, SessionView{State: session.StateResolving})
}

// Session reports the guard state without redirecting.
func (h *Handler) Session(c *gin.Context) {
	sess, state, err := h.guard.Resolve(c)
	if err != nil {
		h.logger.Error("Failed to resolve session", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, views.AlertBody{
			Alert: views.ErrorAlert("Your session could not be checked, please retry"),
		})
		return
	}

	view := SessionView{State: state}
	switch state {
	case session.StateAuthenticated:
		view.User = NewProfile(sess.User)
	case session.StateUnauthenticated:
		view.Redirect = middleware.LoginPath
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, NewProfile(middleware.CurrentUser(c)))
}
