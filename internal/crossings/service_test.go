package crossings

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/testutil"
)

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListCrossings(ctx context.Context) ([]gateway.Crossing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Crossing), args.Error(1)
}

func TestCrossingMap(t *testing.T) {
	lister := new(MockLister)
	lister.On("ListCrossings", mock.Anything).Return([]gateway.Crossing{
		{ID: 1, Name: "North", Latitude: 56, Longitude: 37, Description: "km 1"},
		{ID: 2, Name: "South", Latitude: 54, Longitude: 39},
		{ID: 3, Name: "Broken", Latitude: 123, Longitude: 0},
	}, nil)

	view, err := NewService(lister, nil).CrossingMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, view.Skipped)
	require.Len(t, view.Collection.Features, 2)
	assert.Equal(t, "North", view.Collection.Features[0].Properties["name"])
	assert.Equal(t, "km 1", view.Collection.Features[0].Properties["description"])

	require.NotNil(t, view.View)
	assert.InDelta(t, 55, view.View.Center[0], 1e-9)
	assert.InDelta(t, 38, view.View.Center[1], 1e-9)
	assert.Equal(t, [2]float64{54, 37}, view.View.Bounds[0])
	assert.Equal(t, [2]float64{56, 39}, view.View.Bounds[1])
}

func TestCrossingMapEmpty(t *testing.T) {
	lister := new(MockLister)
	lister.On("ListCrossings", mock.Anything).Return([]gateway.Crossing{}, nil)

	view, err := NewService(lister, nil).CrossingMap(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view.View)
	assert.Empty(t, view.Collection.Features)
}

func TestListFailure(t *testing.T) {
	lister := new(MockLister)
	lister.On("ListCrossings", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewService(lister, nil).ListCrossings(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestHandlerAgainstAPI(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	r, api := fake.Router(t, testutil.TrafficPolice)
	NewHandler(NewService(fake.Client(), nil)).RegisterRoutes(api)

	w := testutil.Do(r, http.MethodGet, "/api/crossings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list ListView
	testutil.DecodeJSON(t, w, &list)
	assert.Equal(t, 2, list.Count)

	w = testutil.Do(r, http.MethodGet, "/api/crossings/map", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"FeatureCollection"`)
}
