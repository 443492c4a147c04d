package documents

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/testutil"
	"crossing-closures/closure-portal/internal/validate"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

const maxUpload = 1 << 20

func setup(t *testing.T) (*testutil.FakeAPI, Service) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	return fake, NewService(fake.Client(), maxUpload, nil)
}

func as(fake *testutil.FakeAPI, user gateway.User) context.Context {
	return gateway.WithToken(context.Background(), fake.TokenFor(user))
}

func upload(closureID int64, title string, docType DocumentType, body string) UploadRequest {
	return UploadRequest{
		ClosureID:    closureID,
		Title:        title,
		DocumentType: docType,
		FileName:     "scheme.pdf",
		Size:         int64(len(body)),
		Content:      strings.NewReader(body),
	}
}

func TestDocumentTypes(t *testing.T) {
	assert.Equal(t, TypeSupporting, DefaultType)
	assert.Len(t, TypeOptions(), 5)
	assert.True(t, TypeInterServiceApproval.Valid())
	assert.False(t, DocumentType("PDD").Valid())
	assert.Equal(t, "Road scheme", TypeRoadScheme.Label())
}

func TestListDocumentsControls(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)
	fake.SeedDocument(id, "Scheme", string(TypeRoadScheme))

	view, err := svc.ListDocuments(as(fake, testutil.Operator), testutil.Operator.Actor(), id)
	require.NoError(t, err)
	assert.True(t, view.CanUpload)
	require.Len(t, view.Documents, 1)
	doc := view.Documents[0]
	assert.True(t, doc.CanDelete)
	assert.Equal(t, "Road scheme", doc.TypeLabel)
	assert.Equal(t, "Ivan Petrov", doc.UploadedBy)
	assert.Equal(t, DownloadPath(id, doc.ID), doc.DownloadURL)

	for _, user := range []gateway.User{testutil.OtherOperator, testutil.Administration, testutil.TrafficPolice} {
		view, err := svc.ListDocuments(as(fake, user), user.Actor(), id)
		require.NoError(t, err)
		assert.False(t, view.CanUpload, user.Username)
		assert.False(t, view.Documents[0].CanDelete, user.Username)
	}
}

func TestUploadValidationHappensBeforeAnyCall(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)
	ctx := as(fake, testutil.Operator)

	tests := []struct {
		name  string
		req   UploadRequest
		field string
	}{
		{"blank title", upload(id, "   ", TypeContract, "data"), "title"},
		{"unknown type", upload(id, "Contract", "PDD", "data"), "document_type"},
		{"no file", UploadRequest{ClosureID: id, Title: "Contract", DocumentType: TypeContract}, "file"},
		{"empty file", upload(id, "Contract", TypeContract, ""), "file"},
		{"too large", UploadRequest{ClosureID: id, Title: "Contract", DocumentType: TypeContract, FileName: "a.pdf", Size: maxUpload + 1, Content: strings.NewReader("x")}, "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.ResetCalls()
			_, err := svc.UploadDocument(ctx, testutil.Operator.Actor(), tt.req)
			fields, ok := validate.As(err)
			require.True(t, ok, "expected validation errors, got %v", err)
			assert.Contains(t, fields, tt.field)
			assert.Empty(t, fake.Calls())
		})
	}
}

func TestUploadDefaultsToSupporting(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)

	doc, err := svc.UploadDocument(as(fake, testutil.Operator), testutil.Operator.Actor(), upload(id, "Letter", "", "%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, TypeSupporting, doc.DocumentType)
	assert.Equal(t, "Letter", doc.Title)

	closure, _ := fake.Closure(id)
	require.Len(t, closure.Documents, 1)
	assert.Equal(t, "supporting", closure.Documents[0].DocumentType)
}

func TestUploadRequiresCreatorOnDraft(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)

	_, err := svc.UploadDocument(as(fake, testutil.OtherOperator), testutil.OtherOperator.Actor(), upload(id, "Letter", TypeOther, "data"))
	assert.ErrorIs(t, err, workflows.ErrForbidden)

	closure, _ := fake.Closure(id)
	assert.Empty(t, closure.Documents)
}

func TestDeleteDocument(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)
	doc := fake.SeedDocument(id, "Scheme", string(TypeRoadScheme))
	ctx := as(fake, testutil.Operator)

	_, err := svc.DeleteDocument(as(fake, testutil.Administration), testutil.Administration.Actor(), id, doc.ID)
	assert.ErrorIs(t, err, workflows.ErrForbidden)

	result, err := svc.DeleteDocument(ctx, testutil.Operator.Actor(), id, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{ClosureID: id, DocumentID: doc.ID, Deleted: true}, result)

	view, err := svc.ListDocuments(ctx, testutil.Operator.Actor(), id)
	require.NoError(t, err)
	assert.Empty(t, view.Documents)
}

func TestDownloadDocument(t *testing.T) {
	fake, svc := setup(t)
	id := fake.SeedDraft(testutil.Operator)
	doc := fake.SeedDocument(id, "Scheme", string(TypeRoadScheme))
	ctx := as(fake, testutil.Administration)

	stream, name, err := svc.DownloadDocument(ctx, id, doc.ID)
	require.NoError(t, err)
	defer stream.Body.Close()
	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", stream.ContentType)
	assert.True(t, strings.HasSuffix(name, "seed.pdf"))

	_, _, err = svc.DownloadDocument(ctx, id, 9999)
	assert.ErrorIs(t, err, views.ErrNotFound)
}
