package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"crossing-closures/closure-portal/internal/gateway"
)

// touchInterval limits how often LastSeenAt is written back.
const touchInterval = time.Minute

// Config tunes a Manager.
type Config struct {
	// TTL is how long an idle session survives.
	TTL time.Duration
	// ResolveTimeout bounds how long a request waits for a profile fetch
	// before the guard answers "resolving".
	ResolveTimeout time.Duration
	// FetchTimeout bounds the profile fetch itself.
	FetchTimeout time.Duration
}

// Manager is the session provider handed to the guard and the auth handlers.
type Manager struct {
	store  Store
	auth   gateway.AuthAPI
	logger *zap.Logger
	cfg    Config
	group  singleflight.Group
	now    func() time.Time
}

func NewManager(store Store, auth gateway.AuthAPI, cfg Config, logger *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 2 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		auth:   auth,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Login exchanges credentials for a token and fetches the profile.
// Any failure leaves no session behind and reports ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Info("Login rejected", zap.String("username", username), zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	user, err := m.auth.Me(gateway.WithToken(ctx, token))
	if err != nil {
		m.logger.Warn("Profile fetch after login failed", zap.String("username", username), zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	now := m.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Token:      token,
		User:       user,
		CreatedAt:  now,
		LastSeenAt: now,
		ResolvedAt: &now,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("User logged in",
		zap.String("session_id", sess.ID),
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return sess, nil
}

// Restore opens a session for a token the browser kept. The profile is
// fetched on the first Resolve, so the session starts out resolving.
func (m *Manager) Restore(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	now := m.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Token:      token,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve decides the guard state for a session id.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, State, error) {
	if id == "" {
		return nil, StateUnauthenticated, nil
	}

	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, StateUnauthenticated, nil
	}
	if err != nil {
		return nil, StateUnauthenticated, err
	}

	now := m.now()
	if now.Sub(sess.LastSeenAt) > m.cfg.TTL {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("Failed to delete expired session", zap.String("session_id", id), zap.Error(err))
		}
		return nil, StateUnauthenticated, nil
	}

	if sess.User != nil {
		if now.Sub(sess.LastSeenAt) > touchInterval {
			sess.LastSeenAt = now
			if err := m.store.Save(ctx, sess); err != nil {
				m.logger.Warn("Failed to touch session", zap.String("session_id", id), zap.Error(err))
			}
		}
		return sess, StateAuthenticated, nil
	}

	return m.awaitProfile(ctx, sess)
}

// awaitProfile waits for the shared profile fetch up to the resolve timeout.
func (m *Manager) awaitProfile(ctx context.Context, sess *Session) (*Session, State, error) {
	ch := m.group.DoChan(sess.ID, func() (interface{}, error) {
		return m.fetchProfile(sess)
	})

	timer := time.NewTimer(m.cfg.ResolveTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, StateUnauthenticated, nil
		}
		return res.Val.(*Session), StateAuthenticated, nil
	case <-timer.C:
		return sess, StateResolving, nil
	case <-ctx.Done():
		return nil, StateUnauthenticated, ctx.Err()
	}
}

// fetchProfile runs detached from any single request so that waiters which
// give up do not cancel it for the others.
func (m *Manager) fetchProfile(sess *Session) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	user, err := m.auth.Me(gateway.WithToken(ctx, sess.Token))
	if err != nil {
		m.logger.Info("Stored token did not resolve to a profile",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		if delErr := m.store.Delete(ctx, sess.ID); delErr != nil {
			m.logger.Warn("Failed to delete unresolved session", zap.String("session_id", sess.ID), zap.Error(delErr))
		}
		return nil, err
	}

	now := m.now()
	resolved := sess.clone()
	resolved.User = user
	resolved.LastSeenAt = now
	resolved.ResolvedAt = &now
	if err := m.store.Save(ctx, resolved); err != nil {
		return nil, fmt.Errorf("failed to store resolved session: %w", err)
	}
	return resolved, nil
}

// Logout forgets the token and identity of a session.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("User logged out", zap.String("session_id", id))
	return nil
}

// Invalidate drops the session carried by ctx. It is the gateway's
// unauthorized hook, so it must not fail loudly.
func (m *Manager) Invalidate(ctx context.Context) {
	sess, ok := FromContext(ctx)
	if !ok {
		return
	}
	if err := m.store.Delete(context.WithoutCancel(ctx), sess.ID); err != nil {
		m.logger.Error("Failed to invalidate session", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	m.logger.Info("Session invalidated after unauthorized response", zap.String("session_id", sess.ID))
}

// Sweep removes sessions idle for longer than the TTL.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteIdleSince(ctx, m.now().Add(-m.cfg.TTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("Swept idle sessions", zap.Int64("count", n))
	}
	return n, nil
}
