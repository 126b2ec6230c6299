package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/larderhq/larder/internal/api"
	"github.com/larderhq/larder/internal/extraction"
	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/home"
	"github.com/larderhq/larder/internal/jobs"
	"github.com/larderhq/larder/internal/jobstore"
	"github.com/larderhq/larder/internal/pdfdoc"
	"github.com/larderhq/larder/internal/recipes"
	"github.com/larderhq/larder/internal/svcctx"
)

type dropScheduler struct{}

func (dropScheduler) Submit(lane string, task jobs.Task) error { return nil }

// newTestHandler builds the endpoint mux backed by a real store and a mock
// extractor, with services injected the way the server middleware does it.
func newTestHandler(t *testing.T) (http.Handler, *svcctx.Services) {
	t.Helper()

	store, err := jobstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to open job store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create home dir: %v", err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("failed to init home dir: %v", err)
	}

	mock := extractor.NewMockExtractor()
	pipeline := extraction.NewPipeline(extraction.PipelineConfig{
		Store:     store,
		Recipes:   recipes.NewStore(store.DB(), nil),
		Extractor: mock,
		Home:      dir,
		Scheduler: dropScheduler{},
		Limits:    pdfdoc.Limits{MaxBytes: 1 << 20, MaxPages: 50},
	})

	services := &svcctx.Services{
		Store:     store,
		Pipeline:  pipeline,
		Extractor: mock,
	}

	registry := api.NewRegistry()
	for _, ep := range All(Config{MaxUploadBytes: 1 << 20}) {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
	return handler, services
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestMissingUserHeaderFallsBackToAnonymous(t *testing.T) {
	handler, services := newTestHandler(t)

	job := &jobstore.DocumentJob{ID: "job-anon", UserID: "anonymous"}
	if err := services.Store.CreateParent(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	// No X-User-ID header: the caller reads as "anonymous" and sees the job.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/extractions/job-anon", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSubmitRejectsNonPDF(t *testing.T) {
	handler, _ := newTestHandler(t)

	body, ctype := multipartBody(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest("POST", "/api/extractions", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set(api.UserHeader, "user-1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitRejectsMalformedPDF(t *testing.T) {
	handler, _ := newTestHandler(t)

	body, ctype := multipartBody(t, "recipes.pdf", []byte("not actually a pdf"))
	req := httptest.NewRequest("POST", "/api/extractions", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set(api.UserHeader, "user-1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected a typed error message")
	}
}

func TestGetExtraction(t *testing.T) {
	handler, services := newTestHandler(t)

	job := &jobstore.DocumentJob{ID: "job-1", UserID: "user-1", Status: jobstore.ParentPending}
	if err := services.Store.CreateParent(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/extractions/job-1", nil)
	req.Header.Set(api.UserHeader, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result extraction.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.JobID != "job-1" || result.Status != jobstore.ParentPending {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Recipes == nil || result.SkippedPages == nil {
		t.Error("recipes and skippedPages must serialize as arrays")
	}
}

func TestGetExtractionHidesForeignJobs(t *testing.T) {
	handler, services := newTestHandler(t)

	job := &jobstore.DocumentJob{ID: "job-1", UserID: "user-1"}
	if err := services.Store.CreateParent(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	codes := map[string]int{}
	for _, path := range []string{"/api/extractions/job-1", "/api/extractions/no-such-job"} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set(api.UserHeader, "intruder")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[path] = rec.Code
	}

	for path, code := range codes {
		if code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, code)
		}
	}
}

func TestCancelExtraction(t *testing.T) {
	handler, services := newTestHandler(t)
	ctx := context.Background()

	if err := services.Store.CreateParent(ctx, &jobstore.DocumentJob{ID: "job-1", UserID: "user-1"}); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api/extractions/job-1", nil)
	req.Header.Set(api.UserHeader, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// A second cancel hits a terminal job.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/extractions/job-1", nil)
	req.Header.Set(api.UserHeader, "user-1")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}
}

func TestCancelMissingJob(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("DELETE", "/api/extractions/ghost", nil)
	req.Header.Set(api.UserHeader, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
