package session

import (
	"context"
	"errors"
	"time"

	"crossing-closures/closure-portal/internal/gateway"
)

// State is the route guard's view of a session.
type State string

const (
	StateResolving       State = "resolving"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

var (
	// ErrNotFound is returned by stores for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidCredentials hides every login failure behind one message.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Session binds a browser to an API token and, once resolved, a profile.
type Session struct {
	ID         string
	Token      string
	User       *gateway.User
	CreatedAt  time.Time
	LastSeenAt time.Time
	ResolvedAt *time.Time
}

// State is authenticated once the profile is known.
func (s *Session) State() State {
	if s == nil {
		return StateUnauthenticated
	}
	if s.User == nil {
		return StateResolving
	}
	return StateAuthenticated
}

func (s *Session) clone() *Session {
	out := *s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.ResolvedAt != nil {
		at := *s.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}

type sessionKey struct{}

// NewContext carries sess and its API token in ctx.
func NewContext(ctx context.Context, sess *Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, sess)
	return gateway.WithToken(ctx, sess.Token)
}

// FromContext returns the session placed by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}
