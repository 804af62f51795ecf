package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cv-rag-platform/internal/fingerprint"
	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/middleware"
	"cv-rag-platform/models"
	"cv-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	res  *ingest.Result
	err  error
	seen ingest.Request
}

func (f *fakeIngester) Ingest(_ context.Context, req ingest.Request) (*ingest.Result, error) {
	f.seen = req
	return f.res, f.err
}

type fakeReader struct {
	cvs       map[string]*models.CV
	err       error
	gotPage   int
	gotLimit  int
	listTotal int64
}

func (f *fakeReader) Get(_ context.Context, id string) (*models.CV, error) {
	if f.err != nil {
		return nil, f.err
	}
	cv, ok := f.cvs[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	return cv, nil
}

func (f *fakeReader) List(_ context.Context, page, limit int) ([]models.CV, int64, error) {
	f.gotPage, f.gotLimit = page, limit
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []models.CV
	for _, cv := range f.cvs {
		out = append(out, *cv)
	}
	return out, f.listTotal, nil
}

type fakeExporter struct {
	err error
}

func (f *fakeExporter) ExportInventory(context.Context) (*bytes.Buffer, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return bytes.NewBufferString("PK-fake-xlsx"), 2, nil
}

const maxUpload = 1024

func newTestRouter(ing Ingester, reader CVReader, exp InventoryExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewCVHandler(ing, reader, exp, maxUpload)
	SetupCVRoutes(r, h, middleware.NewAuthMiddleware(nil), func(c *gin.Context) { c.Next() })
	return r
}

func multipartUpload(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/cvs", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var samplePDF = []byte("%PDF-1.4\nfake body")

func TestUploadStored(t *testing.T) {
	ing := &fakeIngester{res: &ingest.Result{
		CV: &models.CV{
			ID:              "cv-1",
			FileName:        "15-10-2026-jane_doe",
			DisplayName:     "jane_doe",
			ContentHash:     "abc",
			FragmentCount:   2,
			RedactionCounts: map[string]int{"[EMAIL]": 1},
			EmbeddingStatus: models.StatusPending,
		},
		TaskID: "task-9",
	}}
	r := newTestRouter(ing, &fakeReader{}, &fakeExporter{})

	w := do(r, multipartUpload(t, "file", "jane_doe.pdf", samplePDF))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cv-1", resp.ID)
	assert.Equal(t, "jane_doe", resp.DisplayName)
	assert.Equal(t, 1, resp.Redactions["[EMAIL]"])
	assert.Equal(t, "task-9", resp.TaskID)
	assert.Equal(t, "jane_doe.pdf", ing.seen.FileName)
	assert.Equal(t, samplePDF, ing.seen.Data)
}

func TestUploadRejectsBeforeIngest(t *testing.T) {
	cases := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "other", "cv.pdf", samplePDF)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  utils.CodeBadRequest,
		},
		{
			name: "wrong extension",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "cv.docx", samplePDF)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  utils.CodeNotPDF,
		},
		{
			name: "not a pdf",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "cv.pdf", []byte("hello"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  utils.CodeNotPDF,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				big := append([]byte("%PDF"), bytes.Repeat([]byte("x"), maxUpload)...)
				return multipartUpload(t, "file", "cv.pdf", big)
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  utils.CodeFileTooLarge,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ing := &fakeIngester{err: errors.New("must not be called")}
			r := newTestRouter(ing, &fakeReader{}, &fakeExporter{})

			w := do(r, tc.req(t))

			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantErr, decodeError(t, w).ErrorCode)
			assert.Nil(t, ing.seen.Data)
		})
	}
}

func TestUploadMapsIngestErrors(t *testing.T) {
	dup := &ingest.DuplicateError{
		Existing: fingerprint.Record{ID: "cv-0", ContentHash: "abc", DisplayName: "jane_doe"},
		Reason:   fingerprint.ReasonContent,
	}
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"duplicate", dup, http.StatusConflict, utils.CodeDuplicateCV},
		{"in flight", ingest.ErrInFlight, http.StatusConflict, utils.CodeUploadInProgress},
		{"not a cv", &ingest.ValidationError{Justification: "es una factura"}, http.StatusBadRequest, utils.CodeNotCV},
		{"extraction", errors.Join(ingest.ErrExtraction, errors.New("broken xref")), http.StatusUnprocessableEntity, utils.CodeExtractionFailed},
		{"invalid name", ingest.ErrInvalidName, http.StatusBadRequest, utils.CodeBadRequest},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError, utils.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&fakeIngester{err: tc.err}, &fakeReader{}, &fakeExporter{})

			w := do(r, multipartUpload(t, "file", "jane_doe.pdf", samplePDF))

			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantErr, decodeError(t, w).ErrorCode)
		})
	}

	t.Run("duplicate details", func(t *testing.T) {
		r := newTestRouter(&fakeIngester{err: dup}, &fakeReader{}, &fakeExporter{})
		w := do(r, multipartUpload(t, "file", "jane_doe.pdf", samplePDF))

		body := decodeError(t, w)
		assert.Equal(t, `A CV with the same content already exists: "jane_doe"`, body.Message)
		details, ok := body.Details.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "content", details["reason"])
		assert.Equal(t, "cv-0", details["existing_id"])
	})
}

func TestListPagination(t *testing.T) {
	reader := &fakeReader{cvs: map[string]*models.CV{"a": {ID: "a"}}, listTotal: 41}
	r := newTestRouter(&fakeIngester{}, reader, &fakeExporter{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/cvs?page=3&limit=500", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, reader.gotPage)
	assert.Equal(t, maxPageLimit, reader.gotLimit)

	var resp models.CVListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(41), resp.Total)
	assert.Len(t, resp.CVs, 1)

	w = do(r, httptest.NewRequest(http.MethodGet, "/cvs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reader.gotPage)
	assert.Equal(t, defaultPageLimit, reader.gotLimit)

	w = do(r, httptest.NewRequest(http.MethodGet, "/cvs?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAndStatus(t *testing.T) {
	embedded := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	reader := &fakeReader{cvs: map[string]*models.CV{
		"cv-1": {
			ID:              "cv-1",
			FileName:        "15-10-2026-jane_doe",
			Fragments:       []models.Fragment{{Order: 0, Page: 1, Text: "Email [EMAIL]"}},
			FragmentCount:   1,
			EmbeddingStatus: models.StatusCompleted,
			EmbeddedAt:      &embedded,
		},
	}}
	r := newTestRouter(&fakeIngester{}, reader, &fakeExporter{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/cvs/cv-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cv models.CV
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cv))
	require.Len(t, cv.Fragments, 1)
	assert.Equal(t, "Email [EMAIL]", cv.Fragments[0].Text)

	w = do(r, httptest.NewRequest(http.MethodGet, "/cvs/cv-1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status models.CVStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StatusCompleted, status.EmbeddingStatus)

	w = do(r, httptest.NewRequest(http.MethodGet, "/cvs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.CodeNotFound, decodeError(t, w).ErrorCode)
}

func TestExport(t *testing.T) {
	r := newTestRouter(&fakeIngester{}, &fakeReader{}, &fakeExporter{})

	w := do(r, httptest.NewRequest(http.MethodGet, "/cvs/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	r = newTestRouter(&fakeIngester{}, &fakeReader{}, &fakeExporter{err: errors.New("boom")})
	w = do(r, httptest.NewRequest(http.MethodGet, "/cvs/export", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
