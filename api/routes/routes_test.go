package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/deck-recovery/api/handlers"
	"github.com/feichai0017/deck-recovery/api/middleware"
	"github.com/feichai0017/deck-recovery/internal/models"
	"github.com/feichai0017/deck-recovery/internal/service/recovery"
	"github.com/feichai0017/deck-recovery/pkg/converters"
	"github.com/feichai0017/deck-recovery/pkg/logger"
	"github.com/feichai0017/deck-recovery/pkg/queue"
)

type stubService struct {
	submitted []recovery.SubmitRequest
	body      []byte
}

func (s *stubService) Submit(_ context.Context, req recovery.SubmitRequest) (*models.RecoveryTask, error) {
	f, err := req.Deck.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if s.body, err = io.ReadAll(f); err != nil {
		return nil, err
	}
	if strings.HasSuffix(req.Deck.Filename, ".exe") {
		return nil, fmt.Errorf("%w: bad type", recovery.ErrInvalidInput)
	}
	s.submitted = append(s.submitted, req)
	return &models.RecoveryTask{
		ID:        "task-1",
		Status:    models.StatusPending,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Metadata:  map[string]string{"filename": req.Deck.Filename, "size": fmt.Sprint(req.Deck.Size)},
	}, nil
}

func (s *stubService) SubmitBatch(ctx context.Context, decks []recovery.Upload, limits recovery.Limits) ([]*models.RecoveryTask, error) {
	var tasks []*models.RecoveryTask
	var errs []error
	for _, d := range decks {
		t, err := s.Submit(ctx, recovery.SubmitRequest{Deck: d, Limits: limits})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Join(errs...)
}

func (s *stubService) GetStatus(_ context.Context, id string) (*models.RecoveryTask, error) {
	if id != "task-1" {
		return nil, fmt.Errorf("lookup: %w", queue.ErrTaskNotFound)
	}
	return &models.RecoveryTask{ID: id, Status: models.StatusFailed, Hint: "resubmit with a text_file"}, nil
}

func (s *stubService) GetManifest(_ context.Context, id string) (*converters.RecoveryManifest, error) {
	if id == "running" {
		return nil, recovery.ErrNotReady
	}
	return &converters.RecoveryManifest{TaskID: id, Status: converters.StatusCompleted}, nil
}

func (s *stubService) OpenArchive(_ context.Context, _, name string) (io.ReadCloser, error) {
	if name != "rebuilt_part_1.pptx" {
		return nil, recovery.ErrInvalidArchiveName
	}
	return io.NopCloser(strings.NewReader("PK\x03\x04archive")), nil
}

func (s *stubService) CancelTask(context.Context, string) error { return nil }

func (s *stubService) HandleRecovery(context.Context, *queue.Task) error { return nil }

func (s *stubService) CleanupTasks(context.Context) error { return nil }

func newRouter(svc recovery.DeckRecoverer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(svc, logger.NewTestLogger()), logger.NewTestLogger(), Options{MaxBodyBytes: 1 << 20})
	return r
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			fw, err := w.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("bytes of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSubmitRecovery(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc)

	body, ctype := multipartBody(t,
		map[string]string{"max_slides": "20"},
		map[string][]string{"file": {"deck.pptx"}, "text_file": {"outline.txt"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recoveries", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(middleware.RequestIDHeader))

	var resp handlers.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "deck.pptx", resp.Filename)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, 20, svc.submitted[0].Limits.MaxSlides)
	require.NotNil(t, svc.submitted[0].Text)
	assert.Equal(t, "outline.txt", svc.submitted[0].Text.Filename)
	assert.Equal(t, "bytes of deck.pptx", string(svc.body))
}

func TestSubmitRejectsBadLimits(t *testing.T) {
	r := newRouter(&stubService{})

	body, ctype := multipartBody(t, map[string]string{"max_files": "zero"}, map[string][]string{"file": {"deck.pptx"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recoveries", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "max_files")
}

func TestSubmitInvalidInputIsBadRequest(t *testing.T) {
	r := newRouter(&stubService{})

	body, ctype := multipartBody(t, nil, map[string][]string{"file": {"deck.exe"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recoveries", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitBatchReportsPartialFailure(t *testing.T) {
	r := newRouter(&stubService{})

	body, ctype := multipartBody(t, nil, map[string][]string{"files": {"a.pptx", "b.exe"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recoveries/batch", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	var resp struct {
		Tasks []handlers.SubmitResponse `json:"tasks"`
		Error string                    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 1)
	assert.NotEmpty(t, resp.Error)
}

func TestStatusManifestAndDownload(t *testing.T) {
	r := newRouter(&stubService{})

	cases := []struct {
		method, path string
		code         int
		contains     string
	}{
		{http.MethodGet, "/api/v1/recoveries/task-1", http.StatusOK, "resubmit with a text_file"},
		{http.MethodGet, "/api/v1/recoveries/missing", http.StatusNotFound, "Failed to get status"},
		{http.MethodGet, "/api/v1/recoveries/task-1/manifest", http.StatusOK, `"status":"completed"`},
		{http.MethodGet, "/api/v1/recoveries/running/manifest", http.StatusConflict, "Failed to get manifest"},
		{http.MethodGet, "/api/v1/recoveries/task-1/archives/rebuilt_part_1.pptx", http.StatusOK, "archive"},
		{http.MethodGet, "/api/v1/recoveries/task-1/archives/secrets.txt", http.StatusBadRequest, "invalid archive name"},
		{http.MethodDelete, "/api/v1/recoveries/task-1", http.StatusOK, "cancelled"},
		{http.MethodGet, "/healthz", http.StatusOK, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestDownloadSetsAttachmentHeader(t *testing.T) {
	r := newRouter(&stubService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recoveries/task-1/archives/rebuilt_part_1.pptx", nil))

	assert.Equal(t, "attachment; filename=rebuilt_part_1.pptx", rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
