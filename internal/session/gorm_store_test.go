package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

func TestGormStoreGetDecodesProfile(t *testing.T) {
	store, mock := newMockStore(t)
	seen := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "token", "profile", "created_at", "last_seen_at", "resolved_at"}).
		AddRow("s1", "tok", []byte(`{"id":7,"username":"op","role":"railway_operator"}`), seen, seen, seen)
	mock.ExpectQuery(`SELECT \* FROM "portal_sessions"`).WillReturnRows(rows)

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, int64(7), sess.User.ID)
	assert.Equal(t, StateAuthenticated, sess.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetWithoutProfileIsResolving(t *testing.T) {
	store, mock := newMockStore(t)
	seen := time.Now()

	rows := sqlmock.NewRows([]string{"id", "token", "profile", "created_at", "last_seen_at", "resolved_at"}).
		AddRow("s2", "tok", nil, seen, seen, nil)
	mock.ExpectQuery(`SELECT \* FROM "portal_sessions"`).WillReturnRows(rows)

	sess, err := store.Get(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, StateResolving, sess.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "portal_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSaveUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO "portal_sessions" .* ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := store.Save(context.Background(), &Session{ID: "s1", Token: "tok", User: operator, CreatedAt: now, LastSeenAt: now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreDeleteAndSweep(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "portal_sessions" WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "portal_sessions" WHERE last_seen_at < `).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Delete(context.Background(), "s1"))
	n, err := store.DeleteIdleSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
