package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/testutil"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListCrossings(ctx context.Context) ([]gateway.Crossing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Crossing), args.Error(1)
}

func (m *MockSource) ListClosures(ctx context.Context, status workflows.Status) ([]gateway.Closure, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Closure), args.Error(1)
}

func (m *MockSource) ListActivities(ctx context.Context) ([]gateway.Activity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Activity), args.Error(1)
}

var computedAt = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func newAggregator(source Source, limit int) *Aggregator {
	a := NewAggregator(source, nil, AggregatorConfig{ActivityLimit: limit})
	a.now = func() time.Time { return computedAt }
	return a
}

func closures(n int, adminApproved bool) []gateway.Closure {
	out := make([]gateway.Closure, n)
	for i := range out {
		out[i] = gateway.Closure{ID: int64(i + 1), Status: workflows.StatusPending, AdminApproved: adminApproved}
	}
	return out
}

func baseSource() *MockSource {
	source := new(MockSource)
	source.On("ListCrossings", mock.Anything).Return([]gateway.Crossing{{ID: 1}, {ID: 2}}, nil)
	source.On("ListClosures", mock.Anything, workflows.StatusApproved).Return(closures(4, true), nil)
	source.On("ListClosures", mock.Anything, workflows.StatusRejected).Return(closures(1, false), nil)
	return source
}

func TestOperatorSummary(t *testing.T) {
	source := baseSource()
	source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(closures(3, false), nil)
	source.On("ListClosures", mock.Anything, workflows.StatusDraft).Return(closures(2, false), nil)
	source.On("ListActivities", mock.Anything).Return([]gateway.Activity{
		{ID: 9, ClosureID: 1, ClosureName: "C1", User: &testutil.Operator, Text: "created"},
		{ID: 8, ClosureID: 1, ClosureName: "C1", Text: "signed"},
	}, nil)

	summary, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.Operator)
	require.NoError(t, err)

	assert.Equal(t, "Ivan Petrov", summary.Greeting)
	assert.True(t, summary.CanCreate)
	assert.Equal(t, 2, summary.Counts.Crossings)
	assert.Equal(t, 3, summary.Counts.Pending)
	assert.Equal(t, 4, summary.Counts.Approved)
	assert.Equal(t, 1, summary.Counts.Rejected)
	require.NotNil(t, summary.Counts.Drafts)
	assert.Equal(t, 2, *summary.Counts.Drafts)
	assert.Zero(t, summary.Counts.AwaitingMe)

	require.Len(t, summary.Activities, 2)
	assert.Equal(t, "Ivan Petrov", summary.Activities[0].User)
	assert.Empty(t, summary.Activities[1].User)
	assert.Nil(t, summary.ActivityAlert)
	assert.Equal(t, computedAt, summary.ComputedAt)
	source.AssertExpectations(t)
}

func TestApproverSummary(t *testing.T) {
	pending := append(closures(2, false), closures(1, true)...)

	t.Run("administration", func(t *testing.T) {
		source := baseSource()
		source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(pending, nil)
		source.On("ListActivities", mock.Anything).Return([]gateway.Activity{}, nil)

		summary, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.Administration)
		require.NoError(t, err)
		assert.False(t, summary.CanCreate)
		assert.Nil(t, summary.Counts.Drafts)
		assert.Equal(t, 2, summary.Counts.AwaitingMe)
		source.AssertNotCalled(t, "ListClosures", mock.Anything, workflows.StatusDraft)
	})

	t.Run("traffic police", func(t *testing.T) {
		source := baseSource()
		source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(pending, nil)
		source.On("ListActivities", mock.Anything).Return([]gateway.Activity{}, nil)

		summary, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.TrafficPolice)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Counts.AwaitingMe)
	})
}

func TestActivityFailureKeepsCounts(t *testing.T) {
	source := baseSource()
	source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(closures(3, false), nil)
	source.On("ListActivities", mock.Anything).Return(nil, errors.New("timeout"))

	summary, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.Administration)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Counts.Pending)
	assert.Empty(t, summary.Activities)
	require.NotNil(t, summary.ActivityAlert)
	assert.Equal(t, views.AlertWarning, summary.ActivityAlert.Type)
}

func TestActivityUnauthorizedFailsSummary(t *testing.T) {
	source := baseSource()
	source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(closures(3, false), nil)
	source.On("ListActivities", mock.Anything).Return(nil, gateway.ErrUnauthorized)

	summary, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.Administration)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Nil(t, summary)
}

func TestCountFailureFailsSummary(t *testing.T) {
	source := baseSource()
	source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(nil, errors.New("connection refused"))
	source.On("ListActivities", mock.Anything).Return([]gateway.Activity{}, nil)

	_, err := newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.TrafficPolice)
	assert.ErrorContains(t, err, "pending closures")
}

func TestActivityLimit(t *testing.T) {
	source := baseSource()
	source.On("ListClosures", mock.Anything, workflows.StatusPending).Return(closures(0, false), nil)
	feed := make([]gateway.Activity, 15)
	for i := range feed {
		feed[i] = gateway.Activity{ID: int64(100 - i), Text: fmt.Sprintf("entry %d", i)}
	}
	source.On("ListActivities", mock.Anything).Return(feed, nil)

	summary, err := newAggregator(source, 5).GetDashboardSummary(context.Background(), &testutil.TrafficPolice)
	require.NoError(t, err)
	require.Len(t, summary.Activities, 5)
	assert.Equal(t, int64(100), summary.Activities[0].ID)

	summary, err = newAggregator(source, 0).GetDashboardSummary(context.Background(), &testutil.TrafficPolice)
	require.NoError(t, err)
	assert.Len(t, summary.Activities, DefaultActivityLimit)
}

func TestHandlerAgainstAPI(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	fake.SeedDraft(testutil.Operator)
	r, api := fake.Router(t, testutil.Operator)
	NewHandler(NewAggregator(fake.Client(), nil, AggregatorConfig{})).RegisterRoutes(api)

	w := testutil.Do(r, http.MethodGet, "/api/dashboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary Summary
	testutil.DecodeJSON(t, w, &summary)
	assert.Equal(t, 2, summary.Counts.Crossings)
	require.NotNil(t, summary.Counts.Drafts)
	assert.Equal(t, 1, *summary.Counts.Drafts)

	fake.FailNext("/activities/", http.StatusInternalServerError)
	w = testutil.Do(r, http.MethodGet, "/api/dashboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeJSON(t, w, &summary)
	require.NotNil(t, summary.ActivityAlert)
	assert.Equal(t, 2, summary.Counts.Crossings)

	fake.FailNext("/crossings/", http.StatusServiceUnavailable)
	w = testutil.Do(r, http.MethodGet, "/api/dashboard", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"alert"`)
}
