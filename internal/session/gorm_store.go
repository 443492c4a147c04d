package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crossing-closures/closure-portal/internal/gateway"
)

// sessionRecord is the persisted form of a Session.
type sessionRecord struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	Token      string         `gorm:"not null"`
	Profile    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null"`
	LastSeenAt time.Time      `gorm:"not null;index"`
	ResolvedAt *time.Time
}

func (sessionRecord) TableName() string {
	return "portal_sessions"
}

// GormStore keeps sessions in PostgreSQL so several portal instances can share them.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. Call Migrate once at startup.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&sessionRecord{})
}

func (s *GormStore) Get(ctx context.Context, id string) (*Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &Session{
		ID:         rec.ID,
		Token:      rec.Token,
		CreatedAt:  rec.CreatedAt,
		LastSeenAt: rec.LastSeenAt,
		ResolvedAt: rec.ResolvedAt,
	}
	if len(rec.Profile) > 0 && string(rec.Profile) != "null" {
		var user gateway.User
		if err := json.Unmarshal(rec.Profile, &user); err != nil {
			return nil, fmt.Errorf("failed to decode session profile: %w", err)
		}
		sess.User = &user
	}
	return sess, nil
}

func (s *GormStore) Save(ctx context.Context, sess *Session) error {
	rec := sessionRecord{
		ID:         sess.ID,
		Token:      sess.Token,
		CreatedAt:  sess.CreatedAt,
		LastSeenAt: sess.LastSeenAt,
		ResolvedAt: sess.ResolvedAt,
	}
	if sess.User != nil {
		profile, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("failed to encode session profile: %w", err)
		}
		rec.Profile = datatypes.JSON(profile)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("last_seen_at < ?", cutoff).Delete(&sessionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
