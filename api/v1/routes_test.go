package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/session"
	"crossing-closures/closure-portal/internal/testutil"
	"crossing-closures/closure-portal/internal/views"
)

func newPortal(t *testing.T) (*gin.Engine, *testutil.FakeAPI) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	client := fake.Client()
	manager := session.NewManager(session.NewMemoryStore(), client, session.Config{TTL: time.Hour}, nil)
	client.OnUnauthorized(manager.Invalidate)

	codec, err := session.NewCookieCodec("routes-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	guard := middleware.NewGuard(manager, codec, middleware.GuardConfig{}, nil, zap.NewNop())

	r := gin.New()
	r.Use(middleware.ErrorHandler(guard, zap.NewNop()))
	RegisterRoutes(r, SetupPortalAPI(Deps{
		API:           client,
		Sessions:      manager,
		Guard:         guard,
		MaxUploadSize: 1 << 20,
	}))
	return r, fake
}

func send(r http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	r, fake := newPortal(t)

	for _, path := range []string{"/api/dashboard", "/api/closures", "/api/crossings", "/api/approvals", "/api/me", "/api/exports/closures.xlsx", "/api/exports/map"} {
		w := send(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Empty(t, fake.Calls())
}

func login(t *testing.T, r http.Handler) []*http.Cookie {
	t.Helper()
	w := send(r, http.MethodPost, "/auth/login", `{"username":"operator","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestDashboardActivityUnauthorizedEndsSession(t *testing.T) {
	r, fake := newPortal(t)
	cookies := login(t, r)

	fake.FailNext("/activities/", http.StatusUnauthorized)
	w := send(r, http.MethodGet, "/api/dashboard", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "greeting")

	w = send(r, http.MethodGet, "/api/me", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMapLinkWithoutBucket(t *testing.T) {
	r, _ := newPortal(t)
	cookies := login(t, r)

	w := send(r, http.MethodGet, "/api/exports/map", "", cookies...)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body views.AlertBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Alert)
	assert.Equal(t, views.AlertWarning, body.Alert.Type)
}

func TestSignedInPortal(t *testing.T) {
	r, fake := newPortal(t)
	fake.SeedDraft(testutil.Operator)

	cookies := login(t, r)

	for _, path := range []string{"/api/dashboard", "/api/closures?status=draft", "/api/crossings/map", "/api/approvals", "/api/me", "/api/closures/new"} {
		w := send(r, http.MethodGet, path, "", cookies...)
		assert.Equal(t, http.StatusOK, w.Code, "%s: %s", path, w.Body.String())
	}

	// a revoked token ends the session on the next API call
	fake.RevokeTokens()
	w := send(r, http.MethodGet, "/api/closures", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = send(r, http.MethodGet, "/api/me", "", cookies...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
