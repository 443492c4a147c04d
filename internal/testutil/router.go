package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/session"
)

const cookieSecret = "fake-api-cookie-secret-0123456789"

// Client returns a gateway client pointed at the fake.
func (f *FakeAPI) Client() *gateway.Client {
	return gateway.NewClient(gateway.Config{BaseURL: f.URL()})
}

// Authenticate runs every request as user, with a token the fake accepts.
func (f *FakeAPI) Authenticate(user gateway.User) gin.HandlerFunc {
	token := f.TokenFor(user)
	return func(c *gin.Context) {
		u := user
		middleware.SetSession(c, &session.Session{ID: "test-" + user.Username, Token: token, User: &u})
		c.Next()
	}
}

// Router returns an engine with the portal error policy and an /api group
// authenticated as user.
func (f *FakeAPI) Router(t testing.TB, user gateway.User) (*gin.Engine, *gin.RouterGroup) {
	t.Helper()
	codec, err := session.NewCookieCodec(cookieSecret, time.Hour)
	require.NoError(t, err)
	guard := middleware.NewGuard(nil, codec, middleware.GuardConfig{}, nil, zap.NewNop())

	r := gin.New()
	r.Use(middleware.ErrorHandler(guard, zap.NewNop()))
	return r, r.Group("/api", f.Authenticate(user))
}

// Do sends a request to h and returns the recorder.
func Do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals the recorded body into v.
func DecodeJSON(t testing.TB, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
