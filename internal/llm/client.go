package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"craftResume/internal/database"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"

	anthropicVersion = "2023-06-01"
	maxOutputTokens  = 4000
)

// ErrUnsupportedProvider reports a credential whose provider has no adapter.
var ErrUnsupportedProvider = errors.New("llm: unsupported provider")

// ProviderError is a non-2xx reply from a provider API. The body is kept
// verbatim so the enhancement record can store the upstream failure.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Client issues single synchronous enhancement calls against the provider
// APIs. No retry, no streaming: the interface is request/response.
type Client struct {
	httpClient *http.Client

	openAIBaseURL    string
	anthropicBaseURL string
	geminiBaseURL    string
}

// Option overrides client defaults, mainly for tests pointing at local servers.
type Option func(*Client)

// WithOpenAIBaseURL overrides the OpenAI endpoint.
func WithOpenAIBaseURL(u string) Option { return func(c *Client) { c.openAIBaseURL = u } }

// WithAnthropicBaseURL overrides the Anthropic endpoint.
func WithAnthropicBaseURL(u string) Option { return func(c *Client) { c.anthropicBaseURL = u } }

// WithGeminiBaseURL overrides the Gemini endpoint.
func WithGeminiBaseURL(u string) Option { return func(c *Client) { c.geminiBaseURL = u } }

// NewClient builds a provider client. The timeout budget must allow for
// multi-minute generations.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: timeout},
		openAIBaseURL:    defaultOpenAIBaseURL,
		anthropicBaseURL: defaultAnthropicBaseURL,
		geminiBaseURL:    defaultGeminiBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enhance dispatches to the adapter for the given provider and returns the
// rewritten resume text.
func (c *Client) Enhance(ctx context.Context, provider, apiKey, model, content, enhancementType string) (string, error) {
	switch provider {
	case database.ProviderOpenAI:
		return c.enhanceOpenAI(ctx, apiKey, model, content, enhancementType)
	case database.ProviderAnthropic:
		return c.enhanceAnthropic(ctx, apiKey, model, content, enhancementType)
	case database.ProviderGemini:
		return c.enhanceGemini(ctx, apiKey, model, content, enhancementType)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) enhanceOpenAI(ctx context.Context, apiKey, model, content, enhancementType string) (string, error) {
	body := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: promptFor(enhancementType, content)},
		},
		Temperature: 0.7,
		MaxTokens:   maxOutputTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	raw, err := c.post(ctx, database.ProviderOpenAI, c.openAIBaseURL+"/v1/chat/completions", headers, body)
	if err != nil {
		return "", err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []openAIMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) enhanceAnthropic(ctx context.Context, apiKey, model, content, enhancementType string) (string, error) {
	body := anthropicRequest{
		Model:     model,
		MaxTokens: maxOutputTokens,
		Messages: []openAIMessage{
			{Role: "user", Content: promptFor(enhancementType, content)},
		},
	}

	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}
	raw, err := c.post(ctx, database.ProviderAnthropic, c.anthropicBaseURL+"/v1/messages", headers, body)
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("anthropic: response contained no content blocks")
	}
	return parsed.Content[0].Text, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) enhanceGemini(ctx context.Context, apiKey, model, content, enhancementType string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: promptFor(enhancementType, content)}}},
		},
	}

	// Gemini authenticates via query-string key, not a header.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.geminiBaseURL, url.PathEscape(model), url.QueryEscape(apiKey))

	raw, err := c.post(ctx, database.ProviderGemini, endpoint, nil, body)
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: response contained no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) post(ctx context.Context, provider, endpoint string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: call api: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	return raw, nil
}
