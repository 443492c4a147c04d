package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/metrics"
	"crossing-closures/closure-portal/internal/session"
	"crossing-closures/closure-portal/internal/views"
)

const (
	LoginPath  = "/login"
	sessionKey = "session"
)

// Resolver decides the state of a session id.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*session.Session, session.State, error)
}

// GuardConfig tunes the session cookie and the loading answer.
type GuardConfig struct {
	CookieName string
	Secure     bool
	RetryAfter time.Duration
}

// Guard keeps protected views away from anyone without a resolved session.
type Guard struct {
	resolver Resolver
	codec    *session.CookieCodec
	cfg      GuardConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewGuard(resolver Resolver, codec *session.CookieCodec, cfg GuardConfig, m *metrics.Metrics, logger *zap.Logger) *Guard {
	if cfg.CookieName == "" {
		cfg.CookieName = "closure_session"
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{resolver: resolver, codec: codec, cfg: cfg, metrics: m, logger: logger}
}

// Require runs the protected handlers only for authenticated sessions.
func (g *Guard) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, state, err := g.Resolve(c)
		if err != nil {
			g.logger.Error("Failed to resolve session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, views.AlertBody{
				Alert: views.ErrorAlert("Your session could not be checked, please retry"),
			})
			return
		}

		switch state {
		case session.StateAuthenticated:
			SetSession(c, sess)
			c.Next()
		case session.StateResolving:
			g.Loading(c)
		default:
			g.Unauthenticated(c)
		}
	}
}

// Resolve reads the cookie and asks the resolver for the session state.
func (g *Guard) Resolve(c *gin.Context) (*session.Session, session.State, error) {
	sess, state, err := g.resolver.Resolve(c.Request.Context(), g.SessionID(c))
	if err == nil {
		g.metrics.RecordResolution(string(state))
	}
	return sess, state, err
}

// SessionID returns the id in a valid session cookie, or "".
func (g *Guard) SessionID(c *gin.Context) string {
	value, err := c.Cookie(g.cfg.CookieName)
	if err != nil || value == "" {
		return ""
	}
	id, err := g.codec.Decode(value)
	if err != nil {
		g.logger.Debug("Ignoring invalid session cookie", zap.Error(err))
		return ""
	}
	return id
}

// SetSessionCookie binds the browser to a session.
func (g *Guard) SetSessionCookie(c *gin.Context, id string) error {
	value, err := g.codec.Encode(id)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cfg.CookieName, value, int(g.codec.TTL().Seconds()), "/", "", g.cfg.Secure, true)
	return nil
}

func (g *Guard) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.cfg.CookieName, "", -1, "/", "", g.cfg.Secure, true)
}

// Unauthenticated clears the cookie and sends the browser to the login view.
func (g *Guard) Unauthenticated(c *gin.Context) {
	g.ClearSessionCookie(c)
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"state":    session.StateUnauthenticated,
		"redirect": LoginPath,
	})
}

// Loading answers while the profile is still being fetched.
func (g *Guard) Loading(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(int(g.cfg.RetryAfter.Seconds())))
	c.AbortWithStatusJSON(http.StatusAccepted, gin.H{
		"state": session.StateResolving,
		"view":  "loading",
	})
}

// SetSession makes sess the session of the request, API token included.
func SetSession(c *gin.Context, sess *session.Session) {
	c.Set(sessionKey, sess)
	c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))
}

// CurrentSession returns the session set by Require.
func CurrentSession(c *gin.Context) *session.Session {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*session.Session)
	return sess
}

// CurrentUser returns the profile of the current session.
func CurrentUser(c *gin.Context) *gateway.User {
	if sess := CurrentSession(c); sess != nil {
		return sess.User
	}
	return nil
}

// wantsHTML separates browser navigations from API calls.
func wantsHTML(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
