package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	localstore "analyzer-backend/internal/shared/storage/object/local"
	"analyzer-backend/internal/validate"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + fieldName + `"; filename="` + fileName + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestUploadEndpointAccepts(t *testing.T) {
	svc := newTestService(&stubRunner{}, time.Second)
	r := newTestRouter(svc)

	buf, ct := multipartBody(t, "file", "slides.pptx",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation", []byte("PK\x03\x04"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["filename"] != "slides.pptx" {
		t.Fatalf("filename = %v", body["filename"])
	}
	if len(svc.List()) != 0 {
		t.Fatal("upload pre-check must not create a job")
	}
}

func TestUploadEndpointRejectsBadType(t *testing.T) {
	svc := newTestService(&stubRunner{}, time.Second)
	r := newTestRouter(svc)

	buf, ct := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	errObj, _ := body["error"].(map[string]any)
	if errObj == nil || errObj["code"] != "validation_error" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestUploadEndpointRejectsOversizeBody(t *testing.T) {
	// A ceiling small enough that the request body overruns the byte cap
	// during the multipart parse itself.
	svc := NewService(NewRegistry(), &stubRunner{}, nil, validate.Policy{MaxBytes: 1024}, time.Second)
	r := newTestRouter(svc)

	big := bytes.Repeat([]byte("a"), 2<<20)
	for _, path := range []string{"/api/upload", "/api/analyze"} {
		buf, ct := multipartBody(t, "file", "huge.pdf", "application/pdf", big)
		req := httptest.NewRequest(http.MethodPost, path, buf)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d body = %s", path, w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		errObj, _ := body["error"].(map[string]any)
		if errObj == nil || errObj["code"] != "validation_error" {
			t.Fatalf("%s body = %s", path, w.Body.String())
		}
		msg, _ := errObj["message"].(string)
		if !strings.Contains(msg, "too large") {
			t.Fatalf("%s reported wrong reason: %q", path, msg)
		}
	}
	if len(svc.List()) != 0 {
		t.Fatal("oversize upload created a job")
	}
}

func TestUploadEndpointRejectsOversizeDeclaredFile(t *testing.T) {
	// Under the byte cap but over the policy ceiling: the policy check
	// rejects on the declared size.
	svc := NewService(NewRegistry(), &stubRunner{}, nil, validate.Policy{MaxBytes: 64}, time.Second)
	r := newTestRouter(svc)

	buf, ct := multipartBody(t, "file", "big.pdf", "application/pdf", bytes.Repeat([]byte("b"), 256))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	if !strings.Contains(msg, "too large") {
		t.Fatalf("reported wrong reason: %q", msg)
	}
}

func TestUploadEndpointRejectsMissingFile(t *testing.T) {
	svc := newTestService(&stubRunner{}, time.Second)
	r := newTestRouter(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAnalyzeEndpointReturnsAccepted(t *testing.T) {
	svc := newTestService(&stubRunner{}, time.Second)
	r := newTestRouter(svc)

	buf, ct := multipartBody(t, "file", "deck.pdf", "application/pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatalf("missing jobId: %s", w.Body.String())
	}
	if body["status"] != "processing" {
		t.Fatalf("status field = %v", body["status"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Await(ctx, jobID); err != nil {
		t.Fatalf("await: %v", err)
	}

	// Progress now reports the terminal state.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/progress/"+jobID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d", w.Code)
	}
	body = decodeBody(t, w)
	if body["status"] != "completed" || body["progressPercent"] != float64(100) {
		t.Fatalf("progress body = %s", w.Body.String())
	}
}

func TestProgressUnknownJob(t *testing.T) {
	r := newTestRouter(newTestService(&stubRunner{}, time.Second))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/progress/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestResultEndpointLifecycle(t *testing.T) {
	runner := &stubRunner{
		blockAt: StageTranslating,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(runner, 5*time.Second)
	r := newTestRouter(svc)

	job, err := svc.Submit(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-runner.entered

	// Still running: result is not ready yet.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/"+job.ID, nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("in-flight result status = %d", w.Code)
	}

	close(runner.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Await(ctx, job.ID); err != nil {
		t.Fatalf("await: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/"+job.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("completed result status = %d body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	result, _ := body["result"].(string)
	if result == "" {
		t.Fatalf("empty result: %s", w.Body.String())
	}
}

func TestResultEndpointFailedJob(t *testing.T) {
	runner := &stubRunner{
		failAt:   StageExtracting,
		failWith: errors.New("extract deck.pdf: damaged file"),
	}
	svc := newTestService(runner, time.Second)
	r := newTestRouter(svc)

	job, err := svc.Submit(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Await(ctx, job.ID); err != nil {
		t.Fatalf("await: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/"+job.ID, nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	errObj, _ := body["error"].(map[string]any)
	if errObj == nil || errObj["code"] != "analysis_failed" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestCancelEndpoint(t *testing.T) {
	runner := &stubRunner{
		blockAt: StageInterpreting,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(runner, 5*time.Second)
	r := newTestRouter(svc)

	job, err := svc.Submit(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-runner.entered

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done, err := svc.Await(ctx, job.ID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if done.Err == nil || done.Err.Code != ErrorCodeCancelled {
		t.Fatalf("error info = %+v", done.Err)
	}

	// Cancelling a terminal job conflicts.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("terminal cancel status = %d", w.Code)
	}
}

func TestJobsListEndpoint(t *testing.T) {
	svc := newTestService(&stubRunner{}, time.Second)
	r := newTestRouter(svc)

	job, err := svc.Submit(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Await(ctx, job.ID); err != nil {
		t.Fatalf("await: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	jobList, _ := body["jobs"].([]any)
	if len(jobList) != 1 {
		t.Fatalf("jobs = %v", body["jobs"])
	}
}

func TestDownloadEndpointLifecycle(t *testing.T) {
	runner := &stubRunner{
		blockAt: StageInterpreting,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(NewRegistry(), runner, localstore.New(t.TempDir()), validate.DefaultPolicy(), 5*time.Second)
	r := newTestRouter(svc)

	job, err := svc.Submit(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-runner.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never reached the interpreting stage")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/"+job.ID+"/download", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("running job: status = %d body = %s", w.Code, w.Body.String())
	}

	close(runner.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done, err := svc.Await(ctx, job.ID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/"+job.ID+"/download", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("completed job: status = %d body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != done.Report {
		t.Fatalf("download body = %q, want %q", w.Body.String(), done.Report)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition = %q", cd)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/result/missing/download", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status = %d body = %s", w.Code, w.Body.String())
	}
}
