package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fieldjob-backend/internal/capture"
	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/handlers"
	"fieldjob-backend/internal/jobsync"
	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.Job
	completions map[string]*models.CompletionRecord
	items       map[string][]models.OrderItem
	failJob     error
	listErr     error
}

func newMemStore(jobs ...*models.Job) *memStore {
	s := &memStore{
		jobs:        map[string]*models.Job{},
		completions: map[string]*models.CompletionRecord{},
		items:       map[string][]models.OrderItem{},
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) GetCompletion(_ context.Context, jobID string) (*models.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions[jobID], nil
}

func (s *memStore) UpsertCompletion(_ context.Context, rec *models.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[rec.JobID] = rec
	return nil
}

func (s *memStore) UpsertJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failJob != nil {
		return s.failJob
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) ListJobs(context.Context) ([]models.JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.JobView
	for _, j := range s.jobs {
		out = append(out, models.JobView{ID: j.ID, Status: j.Status})
	}
	return out, nil
}

func (s *memStore) ListOrderItems(_ context.Context, orderID string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[orderID], nil
}

func (s *memStore) job(id string) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type memBlobs struct {
	mu      sync.Mutex
	uploads []upload.File
	failOn  int
}

func (b *memBlobs) Upload(_ context.Context, jobID string, f upload.File) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.uploads) + 1
	if b.failOn == n {
		b.failOn = 0
		return "", errors.New("network down")
	}
	b.uploads = append(b.uploads, f)
	return fmt.Sprintf("https://cdn.test/%s/%d", jobID, n), nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

type fakeDevice struct {
	deny error
}

func (d *fakeDevice) Acquire(context.Context, capture.Constraints) (capture.Stream, error) {
	if d.deny != nil {
		return nil, d.deny
	}
	return &fakeStream{}, nil
}

type fakeStream struct{}

func (fakeStream) StartRecorder(onChunk func([]byte)) (capture.Recorder, error) {
	onChunk([]byte("ftyp"))
	return &fakeRecorder{onChunk: onChunk}, nil
}

func (fakeStream) Release() error { return nil }

type fakeRecorder struct{ onChunk func([]byte) }

func (r *fakeRecorder) Stop() error {
	r.onChunk([]byte("moof"))
	return nil
}

func (r *fakeRecorder) ContentType() string { return "video/mp4" }

type env struct {
	router  *gin.Engine
	store   *memStore
	blobs   *memBlobs
	service *completion.Service
	list    *jobsync.JobList
	device  *fakeDevice
}

func newEnv(t *testing.T, jobs ...*models.Job) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore(jobs...)
	blobs := &memBlobs{}
	service := completion.NewService(store, blobs)
	t.Cleanup(service.Sessions().CloseAll)

	stager, err := media.NewStager(t.TempDir(), 1<<20)
	require.NoError(t, err)

	list := jobsync.New(store, nil)
	device := &fakeDevice{}

	jobsH := handlers.NewJobsHandler(list)
	ordersH := handlers.NewOrdersHandler(store)
	completionH := handlers.NewCompletionHandler(service, store, stager, 50*time.Millisecond)
	videoH := handlers.NewVideoHandler(service, capture.Exclusive(device), stager, 50*time.Millisecond)

	r := gin.New()
	r.GET("/health", handlers.HealthHandler)
	api := r.Group("/api/v1")
	api.GET("/jobs", jobsH.List)
	api.POST("/jobs/refresh", jobsH.Refresh)
	api.GET("/jobs/:job_id/completion", completionH.Get)
	api.POST("/jobs/:job_id/completion/sessions", completionH.OpenSession)
	api.POST("/jobs/:job_id/completion/retry-status", completionH.RetryStatus)
	s := api.Group("/completion/sessions/:session_id")
	s.GET("", completionH.GetSession)
	s.DELETE("", completionH.CloseSession)
	s.POST("/media", completionH.AddMedia)
	s.PATCH("/media/:media_id", completionH.AnnotateMedia)
	s.DELETE("/media/:media_id", completionH.RemoveMedia)
	s.GET("/media/:media_id/preview", completionH.MediaPreview)
	s.PUT("/signature", completionH.PutSignature)
	s.POST("/submit", completionH.Submit)
	s.POST("/video", videoH.Open)
	s.GET("/video", videoH.Get)
	s.DELETE("/video", videoH.Close)
	s.GET("/video/preview", videoH.Preview)
	s.POST("/video/record", videoH.Record)
	s.POST("/video/stop", videoH.Stop)
	s.POST("/video/retake", videoH.Retake)
	s.POST("/video/switch", videoH.Switch)
	s.POST("/video/confirm", videoH.Confirm)
	api.GET("/orders/:order_id/status", ordersH.Status)

	return &env{router: r, store: store, blobs: blobs, service: service, list: list, device: device}
}

func (e *env) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartFiles builds a form with one "files" part per entry plus fields.
func multipartFiles(t *testing.T, files map[string][]byte, order []string, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}
