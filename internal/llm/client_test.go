package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"craftResume/internal/database"
)

func TestEnhanceOpenAI_RequestAndResponse(t *testing.T) {
	var gotAuth string
	var gotBody openAIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "rewritten"}},
			},
		})
	}))
	defer server.Close()

	c := NewClient(time.Second, WithOpenAIBaseURL(server.URL))
	got, err := c.Enhance(context.Background(), database.ProviderOpenAI, "sk-key", "gpt-4o-mini", "resume text", TypeProjectExperience)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if got != "rewritten" {
		t.Fatalf("content = %q", got)
	}
	if gotAuth != "Bearer sk-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("unexpected message list: %+v", gotBody.Messages)
	}
	if !strings.Contains(gotBody.Messages[1].Content, "resume text") {
		t.Fatal("user prompt missing resume content")
	}
	if !strings.Contains(gotBody.Messages[1].Content, "action verbs") {
		t.Fatal("expected project/experience template")
	}
}

func TestEnhanceAnthropic_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "better resume"}},
		})
	}))
	defer server.Close()

	c := NewClient(time.Second, WithAnthropicBaseURL(server.URL))
	got, err := c.Enhance(context.Background(), database.ProviderAnthropic, "ak-key", "claude-3-5-sonnet-20241022", "text", TypeSkillsCertifications)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if got != "better resume" {
		t.Fatalf("content = %q", got)
	}
}

func TestEnhanceGemini_QueryKeyAndShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "gk-key" {
			t.Errorf("query key = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "gemini result"}}}},
			},
		})
	}))
	defer server.Close()

	c := NewClient(time.Second, WithGeminiBaseURL(server.URL))
	got, err := c.Enhance(context.Background(), database.ProviderGemini, "gk-key", "gemini-1.5-flash", "text", TypeClientQuality)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if got != "gemini result" {
		t.Fatalf("content = %q", got)
	}
}

func TestEnhance_UnknownTypeFallsBackToClientQuality(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Messages[1].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer server.Close()

	c := NewClient(time.Second, WithOpenAIBaseURL(server.URL))
	if _, err := c.Enhance(context.Background(), database.ProviderOpenAI, "k", "m", "body", "mystery_type"); err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if !strings.Contains(prompt, "customer satisfaction") {
		t.Fatalf("expected client-quality fallback prompt, got %q", prompt)
	}
}

func TestEnhance_NonOKStatusIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer server.Close()

	c := NewClient(time.Second, WithOpenAIBaseURL(server.URL))
	_, err := c.Enhance(context.Background(), database.ProviderOpenAI, "k", "m", "body", TypeClientQuality)

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", provErr.StatusCode)
	}
	if !strings.Contains(provErr.Body, "quota exceeded") {
		t.Fatalf("body = %q", provErr.Body)
	}
}

func TestEnhance_EmptySuccessShapeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer server.Close()

	c := NewClient(time.Second, WithOpenAIBaseURL(server.URL))
	got, err := c.Enhance(context.Background(), database.ProviderOpenAI, "k", "m", "body", TypeClientQuality)
	if err == nil {
		t.Fatalf("expected extraction failure, got %q", got)
	}
}

func TestEnhance_UnsupportedProvider(t *testing.T) {
	c := NewClient(time.Second)
	_, err := c.Enhance(context.Background(), "bedrock", "k", "m", "body", TypeClientQuality)
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("got %v, want ErrUnsupportedProvider", err)
	}
}
