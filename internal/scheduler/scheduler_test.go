package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronExpression(t *testing.T) {
	assert.NoError(t, ValidateCronExpression("0 */10 * * * *"))
	assert.NoError(t, ValidateCronExpression("@every 1m"))
	assert.Error(t, ValidateCronExpression("*/10 * * * *"))
	assert.Error(t, ValidateCronExpression("not a schedule"))
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil)
	err := s.Add("bad", "nope", func(context.Context) error { return nil })
	assert.Error(t, err)
	_, err = s.Status("bad")
	assert.Error(t, err)
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	status, err := s.Status("tick")
	require.NoError(t, err)
	assert.Equal(t, "@every 1s", status.Spec)
	assert.False(t, status.NextRun.IsZero())
}

func TestRunNowAndReplace(t *testing.T) {
	s := New(nil)
	var first, second atomic.Int32
	count := func(n *atomic.Int32) Job {
		return func(context.Context) error {
			n.Add(1)
			return nil
		}
	}
	require.NoError(t, s.Add("job", "0 0 0 1 1 *", count(&first)))
	require.NoError(t, s.Add("job", "0 0 0 1 1 *", count(&second)))

	require.NoError(t, s.RunNow("job"))
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.Error(t, s.RunNow("missing"))
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	done := make(chan error, 1)
	require.NoError(t, s.Add("long", "@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.ErrorIs(t, <-done, context.Canceled)
}
