package documents

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/internal/testutil"
)

func multipartForm(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandlerUploadListDelete(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	id := fake.SeedDraft(testutil.Operator)
	r, api := fake.Router(t, testutil.Operator)
	NewHandler(NewService(fake.Client(), maxUpload, nil)).RegisterRoutes(api)
	base := fmt.Sprintf("/api/closures/%d/documents", id)

	body, contentType := multipartForm(t, map[string]string{"title": "Road scheme", "document_type": "road_scheme"}, "scheme.pdf", "%PDF")
	w := testutil.Do(r, http.MethodPost, base, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Document DocumentView `json:"document"`
		Alert    struct {
			Type string `json:"type"`
		} `json:"alert"`
	}
	testutil.DecodeJSON(t, w, &created)
	assert.Equal(t, TypeRoadScheme, created.Document.DocumentType)
	assert.Equal(t, "success", created.Alert.Type)

	w = testutil.Do(r, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list ListView
	testutil.DecodeJSON(t, w, &list)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, DefaultType, list.DefaultType)

	w = testutil.Do(r, http.MethodGet, list.Documents[0].DownloadURL, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	w = testutil.Do(r, http.MethodDelete, fmt.Sprintf("%s/%d", base, created.Document.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var deleted DeleteResult
	testutil.DecodeJSON(t, w, &deleted)
	assert.Equal(t, created.Document.ID, deleted.DocumentID)
	assert.True(t, deleted.Deleted)
}

func TestHandlerUploadWithoutTitle(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	id := fake.SeedDraft(testutil.Operator)
	r, api := fake.Router(t, testutil.Operator)
	NewHandler(NewService(fake.Client(), maxUpload, nil)).RegisterRoutes(api)

	body, contentType := multipartForm(t, map[string]string{"title": ""}, "", "")
	w := testutil.Do(r, http.MethodPost, fmt.Sprintf("/api/closures/%d/documents", id), body, contentType)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	testutil.DecodeJSON(t, w, &resp)
	assert.Equal(t, "required", resp.Errors["title"])
	assert.Equal(t, "required", resp.Errors["file"])
}

func TestHandlerRejectsBadIDs(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	r, api := fake.Router(t, testutil.Operator)
	NewHandler(NewService(fake.Client(), maxUpload, nil)).RegisterRoutes(api)

	w := testutil.Do(r, http.MethodGet, "/api/closures/abc/documents", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = testutil.Do(r, http.MethodDelete, "/api/closures/1/documents/x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.Calls())
}
