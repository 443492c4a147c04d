package export

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/testutil"
	"crossing-closures/closure-portal/pkg/security"
	"crossing-closures/closure-portal/pkg/workflows"
)

func setup(t *testing.T, user gateway.User) (*testutil.FakeAPI, http.Handler) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	r, api := fake.Router(t, user)
	svc := NewService(fake.Client(), nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC) }
	NewHandler(svc).RegisterRoutes(api)
	return fake, r
}

func TestWorkbookRows(t *testing.T) {
	start := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	closures := []gateway.Closure{
		{
			ID:                    7,
			RailwayCrossing:       1,
			RailwayCrossingDetail: &testutil.CrossingC1,
			CreatedBy:             &testutil.Operator,
			StartDate:             start,
			EndDate:               start.Add(10 * time.Hour),
			Reason:                "Track maintenance on the main line",
			Status:                workflows.StatusPending,
			AdminApproved:         true,
		},
		{ID: 8, RailwayCrossing: 2, Status: workflows.StatusApproved, AdminApproved: true, GibddApproved: true},
	}

	exporter := NewExcelExporter(DefaultExcelOptions())
	require.NoError(t, exporter.Write(closures))
	var buf bytes.Buffer
	require.NoError(t, exporter.WriteTo(&buf))
	require.NoError(t, exporter.Close())

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Closures")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Crossing", rows[0][1])
	assert.Equal(t, "Traffic police", rows[0][7])

	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "C1", rows[1][1])
	assert.Equal(t, "Track maintenance on the main line", rows[1][4])
	assert.Equal(t, workflows.StatusLabel(workflows.StatusPending), rows[1][5])
	assert.Equal(t, "Yes", rows[1][6])
	assert.Equal(t, "No", rows[1][7])
	assert.Equal(t, "Ivan Petrov", rows[1][8])

	assert.Equal(t, "Crossing #2", rows[2][1])
	assert.Equal(t, "Yes", rows[2][7])
}

func TestWorkbookEndpoint(t *testing.T) {
	fake, r := setup(t, testutil.Operator)
	fake.SeedDraft(testutil.Operator)
	fake.SeedClosure(gateway.Closure{RailwayCrossing: 2, Status: workflows.StatusApproved, CreatedBy: &testutil.Operator})

	w := testutil.Do(r, http.MethodGet, "/api/exports/closures.xlsx?status=draft", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `closures-draft-20250316.xlsx`)

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := book.GetRows("Closures")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	w = testutil.Do(r, http.MethodGet, "/api/exports/closures.xlsx?status=archived", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkbookDraftsForbiddenForApprovers(t *testing.T) {
	fake, r := setup(t, testutil.Administration)

	w := testutil.Do(r, http.MethodGet, "/api/exports/closures.xlsx?status=draft", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, fake.Calls())
}

func TestSheetEndpoint(t *testing.T) {
	fake, r := setup(t, testutil.TrafficPolice)
	signedAt := time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC)
	id := fake.SeedClosure(gateway.Closure{
		RailwayCrossing:  1,
		CreatedBy:        &testutil.Operator,
		Reason:           "Track maintenance on the main line",
		Status:           workflows.StatusPending,
		AdminApproved:    true,
		DigitalSignature: security.Stamp("Ivan", "Petrov", signedAt),
		Comments: []gateway.Comment{
			{ID: 1, User: &testutil.Administration, Text: "Approved on our side, please coordinate detours.", CreatedAt: signedAt},
		},
	})

	w := testutil.Do(r, http.MethodGet, fmt.Sprintf("/api/closures/%d/sheet.pdf", id), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ContentTypePDF, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("closure-%d.pdf", id))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = testutil.Do(r, http.MethodGet, "/api/closures/9999/sheet.pdf", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Do(r, http.MethodGet, "/api/closures/abc/sheet.pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSheetManyComments(t *testing.T) {
	c := &gateway.Closure{ID: 1, RailwayCrossing: 1, Status: workflows.StatusDraft}
	for i := 0; i < 80; i++ {
		c.Comments = append(c.Comments, gateway.Comment{
			ID:   int64(i),
			User: &testutil.Operator,
			Text: "A long remark that should wrap across more than one line of the comments table on the sheet.",
		})
	}

	g := NewPDFGenerator(DefaultPDFOptions())
	require.NoError(t, g.GenerateSheet(c, time.Now()))
	data, err := g.OutputToBytes()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Greater(t, g.pdf.PageCount(), 1)
}
