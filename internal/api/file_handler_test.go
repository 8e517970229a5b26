package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"craftResume/internal/database"
)

type fakeFileStore struct {
	objects      map[string][]byte
	getCalls     int
	presignCalls int
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{objects: map[string][]byte{}}
}

func (s *fakeFileStore) Get(_ context.Context, objectKey string) (io.ReadCloser, error) {
	s.getCalls++
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (s *fakeFileStore) PresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	s.presignCalls++
	return "https://storage.example.invalid/" + objectKey, nil
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func newAuthedRequest(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, body)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newFileTestRouter(t *testing.T, db *gorm.DB, store *fakeFileStore, userID uint) (*gin.Engine, *FileHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewFileHandler(db, store)
	router := gin.New()
	router.Use(forceUser(userID))
	router.GET("/download-resume/:id", handler.DownloadEnhancement)
	router.GET("/resume-file/:id", handler.FileURL)
	router.GET("/proxy-pdf/:id", handler.Proxy)
	return router, handler
}

func seedStoredResume(t *testing.T, db *gorm.DB, store *fakeFileStore, userID uint) *database.Resume {
	t.Helper()
	resume := &database.Resume{
		UserID:       userID,
		OriginalName: "resume.pdf",
		StoragePath:  "resumes/" + itoa(userID) + "/1-resume.pdf",
		FileType:     "pdf",
		Content:      "Jane Plumber",
		Status:       database.ResumeStatusUploaded,
	}
	if err := db.Create(resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	store.objects[resume.StoragePath] = []byte("%PDF-1.4 stored bytes")
	return resume
}

func TestFileURL_ReturnsPresignedURL(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	router, _ := newFileTestRouter(t, db, store, 1)
	resume := seedStoredResume(t, db, store, 1)

	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/resume-file/"+itoa(resume.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, resume.StoragePath) {
		t.Fatalf("body lacks presigned url: %s", body)
	}
	if !strings.Contains(body, `"file_name":"resume.pdf"`) || !strings.Contains(body, `"file_type":"pdf"`) {
		t.Fatalf("body lacks file metadata: %s", body)
	}
}

func TestFileURL_ForeignResumeIs404WithoutStorageCall(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	resume := seedStoredResume(t, db, store, 1)

	router, _ := newFileTestRouter(t, db, store, 2)
	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/resume-file/"+itoa(resume.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if store.presignCalls != 0 {
		t.Fatal("storage must not be touched for a foreign resume")
	}
}

func TestProxy_StreamsInlineWithCaching(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	router, _ := newFileTestRouter(t, db, store, 1)
	resume := seedStoredResume(t, db, store, 1)

	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/proxy-pdf/"+itoa(resume.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Fatalf("cache control = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("no cross-origin grant expected, got %q", got)
	}
	if rec.Body.String() != "%PDF-1.4 stored bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestProxy_ForeignResumeIs404WithoutStorageCall(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	resume := seedStoredResume(t, db, store, 1)

	router, _ := newFileTestRouter(t, db, store, 2)
	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/proxy-pdf/"+itoa(resume.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if store.getCalls != 0 {
		t.Fatal("storage must not be touched for a foreign resume")
	}
}

func TestDownloadEnhancement_RendersAttachment(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	router, handler := newFileTestRouter(t, db, store, 1)
	resume := seedStoredResume(t, db, store, 1)

	enhancement := &database.Enhancement{
		ResumeID:        resume.ID,
		EnhancementType: "skills_certifications",
		Provider:        database.ProviderOpenAI,
		EnhancedContent: "Polished text.",
		Status:          database.EnhancementStatusCompleted,
	}
	if err := db.Create(enhancement).Error; err != nil {
		t.Fatalf("seed enhancement: %v", err)
	}

	var gotTitle, gotContent string
	handler.render = func(title, subtitle, content string) ([]byte, error) {
		gotTitle, gotContent = title, content
		return []byte("%PDF-1.4 rendered"), nil
	}

	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/download-resume/"+itoa(enhancement.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment;") {
		t.Fatalf("content disposition = %q", got)
	}
	if gotTitle != "resume" || gotContent != "Polished text." {
		t.Fatalf("render args = %q, %q", gotTitle, gotContent)
	}
	if rec.Body.String() != "%PDF-1.4 rendered" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestDownloadEnhancement_ForeignIs404(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	resume := seedStoredResume(t, db, store, 1)

	enhancement := &database.Enhancement{
		ResumeID:        resume.ID,
		EnhancementType: "client_quality",
		Provider:        database.ProviderOpenAI,
		EnhancedContent: "Polished text.",
		Status:          database.EnhancementStatusCompleted,
	}
	if err := db.Create(enhancement).Error; err != nil {
		t.Fatalf("seed enhancement: %v", err)
	}

	router, _ := newFileTestRouter(t, db, store, 2)
	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/download-resume/"+itoa(enhancement.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadEnhancement_IncompleteIs400(t *testing.T) {
	db := newTestDB(t)
	store := newFakeFileStore()
	router, _ := newFileTestRouter(t, db, store, 1)
	resume := seedStoredResume(t, db, store, 1)

	enhancement := &database.Enhancement{
		ResumeID:        resume.ID,
		EnhancementType: "client_quality",
		Provider:        database.ProviderOpenAI,
		Status:          database.EnhancementStatusProcessing,
	}
	if err := db.Create(enhancement).Error; err != nil {
		t.Fatalf("seed enhancement: %v", err)
	}

	rec := serve(router, newAuthedRequest(t, http.MethodGet, "/download-resume/"+itoa(enhancement.ID), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
