package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/pkg/workflows"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second}), srv
}

func TestTokenHeaderFromContext(t *testing.T) {
	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.ListCrossings(WithToken(context.Background(), "abc123"))
	require.NoError(t, err)
	assert.Equal(t, "Token abc123", got)

	_, err = client.ListCrossings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJSONRequestsSetContentType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/token/login/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "operator", body["username"])
		_, _ = w.Write([]byte(`{"auth_token":"tok"}`))
	})

	token, err := client.Login(context.Background(), "operator", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestBodylessRequestsHaveNoContentType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/closures/5/send_for_approval/", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	})

	require.NoError(t, client.SendForApproval(context.Background(), 5))
}

func TestUploadUsesMultipartBoundary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="), contentType)
		assert.Equal(t, "Token t", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Road scheme", r.FormValue("title"))
		assert.Equal(t, "road_scheme", r.FormValue("document_type"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "scheme.pdf", header.Filename)
		assert.Equal(t, "%PDF", string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"title":"Road scheme","document_type":"road_scheme","closure":3,"uploaded_by":4}`))
	})

	doc, err := client.UploadDocument(WithToken(context.Background(), "t"), 3, DocumentUpload{
		Title:        "Road scheme",
		DocumentType: "road_scheme",
		FileName:     "scheme.pdf",
		Content:      strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), doc.ID)
	require.NotNil(t, doc.UploadedBy)
	assert.Equal(t, int64(4), doc.UploadedBy.ID)
}

func TestUnauthorizedRunsHookForAnyCall(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	})

	var calls int32
	client.OnUnauthorized(func(ctx context.Context) {
		assert.Equal(t, "stale", TokenFromContext(ctx))
		atomic.AddInt32(&calls, 1)
	})
	ctx := WithToken(context.Background(), "stale")

	_, err := client.ListCrossings(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = client.ApproveGibdd(ctx, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.UploadDocument(ctx, 1, DocumentUpload{Title: "x", FileName: "x", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAPIErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		fields  map[string]string
	}{
		{"detail", http.StatusForbidden, `{"detail":"You do not have permission."}`, "You do not have permission.", nil},
		{"error", http.StatusBadRequest, `{"error":"Cannot reject"}`, "Cannot reject", nil},
		{"fields", http.StatusBadRequest, `{"reason":["Too short."],"end_date":["Required."]}`, "end_date: Required.",
			map[string]string{"reason": "Too short.", "end_date": "Required."}},
		{"html", http.StatusInternalServerError, `<html>boom</html>`, "Internal Server Error", nil},
		{"empty", http.StatusBadGateway, ``, "Bad Gateway", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetClosure(context.Background(), 1)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.fields, apiErr.Fields)
		})
	}
}

func TestListClosuresStatusFilter(t *testing.T) {
	var query string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"id":1,"status":"pending","created_by":{"id":2,"role":"railway_operator"}}]`))
	})

	closures, err := client.ListClosures(context.Background(), workflows.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "status=pending", query)
	require.Len(t, closures, 1)
	assert.Equal(t, int64(2), closures[0].CreatorID())

	_, err = client.ListClosures(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, query)
}

func TestDownloadDocumentStaysOnAPIHost(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media/documents/a.pdf", r.URL.Path)
		assert.Equal(t, "Token t", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	ctx := WithToken(context.Background(), "t")

	stream, err := client.DownloadDocument(ctx, "/media/documents/a.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(stream.Body)
	stream.Body.Close()
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", stream.ContentType)

	stream, err = client.DownloadDocument(ctx, srv.URL+"/media/documents/a.pdf")
	require.NoError(t, err)
	stream.Body.Close()

	_, err = client.DownloadDocument(ctx, "https://elsewhere.example/a.pdf")
	assert.Error(t, err)
}

func TestTransportErrorIsWrapped(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := client.ListActivities(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
