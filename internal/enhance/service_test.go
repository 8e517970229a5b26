package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"craftResume/internal/database"
	"craftResume/internal/llm"
	"craftResume/internal/vault"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&database.User{}, &database.Credential{}, &database.Resume{}, &database.Enhancement{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(testEncryptionKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func seedResume(t *testing.T, db *gorm.DB, userID uint) *database.Resume {
	t.Helper()
	resume := &database.Resume{
		UserID:       userID,
		OriginalName: "resume.pdf",
		StoragePath:  "resumes/1/1-resume.pdf",
		FileType:     "pdf",
		Content:      "Jane Plumber. Ten years of commercial plumbing.",
		Status:       database.ResumeStatusUploaded,
	}
	if err := db.Create(resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return resume
}

func seedCredential(t *testing.T, db *gorm.DB, v *vault.Vault, userID uint, provider string) *database.Credential {
	t.Helper()
	encrypted, err := v.Encrypt("sk-test-key")
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	credential := &database.Credential{
		UserID:       userID,
		Provider:     provider,
		EncryptedKey: encrypted,
		DefaultModel: "gpt-4o",
		IsActive:     true,
	}
	if err := db.Create(credential).Error; err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return credential
}

func countEnhancements(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&database.Enhancement{}).Count(&count).Error; err != nil {
		t.Fatalf("count enhancements: %v", err)
	}
	return count
}

func TestEnhance_ResumeOwnedByAnotherUser(t *testing.T) {
	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	seedCredential(t, db, v, 2, database.ProviderOpenAI)

	svc := NewService(db, v, llm.NewClient(time.Second), nil, nil)
	_, err := svc.Enhance(context.Background(), 2, resume.ID, llm.TypeClientQuality)
	if !errors.Is(err, ErrResumeNotFound) {
		t.Fatalf("got %v, want ErrResumeNotFound", err)
	}
	if countEnhancements(t, db) != 0 {
		t.Fatal("no enhancement row may be created for a foreign resume")
	}
}

func TestEnhance_NoActiveCredential(t *testing.T) {
	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)

	svc := NewService(db, v, llm.NewClient(time.Second), nil, nil)
	_, err := svc.Enhance(context.Background(), 1, resume.ID, llm.TypeClientQuality)
	if !errors.Is(err, ErrNoActiveCredential) {
		t.Fatalf("got %v, want ErrNoActiveCredential", err)
	}
	if countEnhancements(t, db) != 0 {
		t.Fatal("no enhancement row may be created without a credential")
	}
}

func TestEnhance_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Polished resume text."}},
			},
		})
	}))
	defer server.Close()

	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	seedCredential(t, db, v, 1, database.ProviderOpenAI)

	client := llm.NewClient(time.Second, llm.WithOpenAIBaseURL(server.URL))
	svc := NewService(db, v, client, nil, nil)

	enhancement, err := svc.Enhance(context.Background(), 1, resume.ID, llm.TypeSkillsCertifications)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if enhancement.Status != database.EnhancementStatusCompleted {
		t.Fatalf("status = %q", enhancement.Status)
	}
	if enhancement.EnhancedContent != "Polished resume text." {
		t.Fatalf("content = %q", enhancement.EnhancedContent)
	}

	var stored database.Enhancement
	if err := db.First(&stored, enhancement.ID).Error; err != nil {
		t.Fatalf("load enhancement: %v", err)
	}
	if stored.Status != database.EnhancementStatusCompleted || stored.EnhancedContent != "Polished resume text." {
		t.Fatalf("stored row not finalized: %+v", stored)
	}
	if stored.Provider != database.ProviderOpenAI || stored.EnhancementType != llm.TypeSkillsCertifications {
		t.Fatalf("stored row metadata wrong: %+v", stored)
	}
}

func TestEnhance_ClientDisconnectStillFinalizesRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(250 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Finished anyway."}},
			},
		})
	}))
	defer server.Close()

	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	seedCredential(t, db, v, 1, database.ProviderOpenAI)

	client := llm.NewClient(5*time.Second, llm.WithOpenAIBaseURL(server.URL))
	svc := NewService(db, v, client, nil, nil)

	// The request context dies mid-call, as it does when the client
	// disconnects. The provider round trip and the terminal update must
	// still run to completion.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	enhancement, err := svc.Enhance(ctx, 1, resume.ID, llm.TypeClientQuality)
	if err != nil {
		t.Fatalf("enhance after disconnect: %v", err)
	}

	var stored database.Enhancement
	if err := db.First(&stored, enhancement.ID).Error; err != nil {
		t.Fatalf("load enhancement: %v", err)
	}
	if stored.Status != database.EnhancementStatusCompleted {
		t.Fatalf("status = %q, want completed", stored.Status)
	}
	if stored.EnhancedContent != "Finished anyway." {
		t.Fatalf("content = %q", stored.EnhancedContent)
	}
}

func TestEnhance_ProviderFailureRecordsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer server.Close()

	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	seedCredential(t, db, v, 1, database.ProviderOpenAI)

	client := llm.NewClient(time.Second, llm.WithOpenAIBaseURL(server.URL))
	svc := NewService(db, v, client, nil, nil)

	enhancement, err := svc.Enhance(context.Background(), 1, resume.ID, llm.TypeClientQuality)
	if err == nil {
		t.Fatal("expected provider error")
	}
	var providerErr *llm.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("got %T, want ProviderError", err)
	}

	var stored database.Enhancement
	if err := db.First(&stored, enhancement.ID).Error; err != nil {
		t.Fatalf("load enhancement: %v", err)
	}
	if stored.Status != database.EnhancementStatusError {
		t.Fatalf("status = %q, want error", stored.Status)
	}
	if !strings.Contains(stored.Notes, "model overloaded") {
		t.Fatalf("notes = %q, want upstream body", stored.Notes)
	}
	if stored.EnhancedContent != "" {
		t.Fatal("failed enhancement must not carry content")
	}
}

func TestEnhance_UnknownTypeFallsBack(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			if m.Role == "user" {
				gotPrompt = m.Content
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	seedCredential(t, db, v, 1, database.ProviderOpenAI)

	client := llm.NewClient(time.Second, llm.WithOpenAIBaseURL(server.URL))
	svc := NewService(db, v, client, nil, nil)

	enhancement, err := svc.Enhance(context.Background(), 1, resume.ID, "made_up_type")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if enhancement.Status != database.EnhancementStatusCompleted {
		t.Fatalf("status = %q", enhancement.Status)
	}
	if !strings.Contains(gotPrompt, "customer satisfaction") {
		t.Fatalf("unknown type must use the client quality prompt, got %q", gotPrompt)
	}
}

func TestEnhance_UnsupportedProviderRecordsError(t *testing.T) {
	db := newTestDB(t)
	v := newTestVault(t)
	resume := seedResume(t, db, 1)
	cred := seedCredential(t, db, v, 1, database.ProviderOpenAI)
	if err := db.Model(cred).Update("provider", "cohere").Error; err != nil {
		t.Fatalf("update provider: %v", err)
	}

	svc := NewService(db, v, llm.NewClient(time.Second), nil, nil)
	enhancement, err := svc.Enhance(context.Background(), 1, resume.ID, llm.TypeClientQuality)
	if !errors.Is(err, llm.ErrUnsupportedProvider) {
		t.Fatalf("got %v, want ErrUnsupportedProvider", err)
	}

	var stored database.Enhancement
	if err := db.First(&stored, enhancement.ID).Error; err != nil {
		t.Fatalf("load enhancement: %v", err)
	}
	if stored.Status != database.EnhancementStatusError {
		t.Fatalf("status = %q, want error", stored.Status)
	}
}
