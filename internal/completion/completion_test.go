package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) config.CompletionConfig {
	return config.CompletionConfig{
		Provider:    "openai",
		BaseURL:     baseURL,
		APIKey:      "sk-test",
		Model:       "gpt-test",
		GeminiModel: "gemini-test",
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	}
}

func TestOpenAIClient_Analyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantErr  bool
		errMatch string
	}{
		{
			name:   "top level output_text",
			status: http.StatusOK,
			body:   `{"output_text":"{\"verdict\":\"lie-leaning\"}","output":[{"content":[{"text":"ignored"}]}]}`,
			want:   `{"verdict":"lie-leaning"}`,
		},
		{
			name:   "nested output content",
			status: http.StatusOK,
			body:   `{"output":[{"content":[{"type":"output_text","text":"{\"score\":5}"}]}]}`,
			want:   `{"score":5}`,
		},
		{
			name:     "no text anywhere",
			status:   http.StatusOK,
			body:     `{"output":[]}`,
			wantErr:  true,
			errMatch: "no text output",
		},
		{
			name:     "error status includes body snippet",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"rate limited"}}`,
			wantErr:  true,
			errMatch: "HTTP 429",
		},
		{
			name:     "body is not json",
			status:   http.StatusOK,
			body:     `<html>`,
			wantErr:  true,
			errMatch: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/responses" {
					t.Errorf("path = %q, want /responses", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
					t.Errorf("Authorization = %q", got)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := NewOpenAIClient(testConfig(srv.URL), "prompt", nil, discardLogger())
			got, err := client.Analyze(context.Background(), "hello")

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Analyze() error = nil, want error")
				}
				if !apperrors.IsExternal(err) {
					t.Errorf("Analyze() error = %v, want external service error", err)
				}
				if !strings.Contains(err.Error(), tt.errMatch) {
					t.Errorf("Analyze() error = %q, want it to contain %q", err, tt.errMatch)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Analyze() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAIClient_RequestPayload(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"output_text":"{}"}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(testConfig(srv.URL+"/"), "system text", nil, discardLogger())
	if _, err := client.Analyze(context.Background(), "user text"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if captured["model"] != "gpt-test" {
		t.Errorf("model = %v", captured["model"])
	}
	input, _ := captured["input"].([]any)
	if len(input) != 2 {
		t.Fatalf("input = %v, want system and user entries", captured["input"])
	}
	first, _ := input[0].(map[string]any)
	second, _ := input[1].(map[string]any)
	if first["role"] != "system" || first["content"] != "system text" {
		t.Errorf("input[0] = %v", first)
	}
	if second["role"] != "user" || second["content"] != "user text" {
		t.Errorf("input[1] = %v", second)
	}
	format, _ := captured["text"].(map[string]any)["format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("text.format = %v, want json_object", format)
	}
}

func TestOpenAIClient_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewOpenAIClient(testConfig(url), "prompt", nil, discardLogger())
	if _, err := client.Analyze(context.Background(), "hi"); !apperrors.IsExternal(err) {
		t.Errorf("Analyze() error = %v, want external service error", err)
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("я", 400) // 800 bytes
	got := snippet([]byte(long), errorSnippetBytes)
	if len(got) > errorSnippetBytes {
		t.Errorf("len(snippet) = %d, want <= %d", len(got), errorSnippetBytes)
	}
	if !strings.HasPrefix(long, got) {
		t.Error("snippet should be a prefix of the input")
	}
	if got := snippet([]byte("short"), errorSnippetBytes); got != "short" {
		t.Errorf("snippet(short) = %q", got)
	}
}

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	return f.resp, f.err
}

func TestGeminiClient_Analyze(t *testing.T) {
	t.Parallel()

	textResponse := func(text string) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
				FinishReason: genai.FinishReasonStop,
			}},
		}
	}

	tests := []struct {
		name    string
		gen     *fakeGenerator
		want    string
		wantErr bool
	}{
		{name: "json text", gen: &fakeGenerator{resp: textResponse(`{"verdict":"undeterminable"}`)}, want: `{"verdict":"undeterminable"}`},
		{name: "api error", gen: &fakeGenerator{err: errors.New("unavailable")}, wantErr: true},
		{name: "no candidates", gen: &fakeGenerator{resp: &genai.GenerateContentResponse{}}, wantErr: true},
		{
			name: "blocked prompt",
			gen: &fakeGenerator{resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newGeminiClient(tt.gen, testConfig(""), "system text", discardLogger())
			got, err := client.Analyze(context.Background(), "statement")

			if tt.wantErr {
				if !apperrors.IsExternal(err) {
					t.Fatalf("Analyze() error = %v, want external service error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Analyze() = %q, want %q", got, tt.want)
			}
			if tt.gen.model != "gemini-test" {
				t.Errorf("model = %q, want gemini-test", tt.gen.model)
			}
			if tt.gen.config.ResponseMIMEType != "application/json" {
				t.Errorf("ResponseMIMEType = %q", tt.gen.config.ResponseMIMEType)
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://localhost")
	cfg.Provider = "llama"
	if _, err := New(context.Background(), cfg, discardLogger()); apperrors.Code(err) != apperrors.CodeConfig {
		t.Errorf("New() error = %v, want config error", err)
	}

	cfg.Provider = "openai"
	client, err := New(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c, ok := client.(*OpenAIClient); !ok || c.prompt != DefaultSystemPrompt {
		t.Errorf("New() = %T, want *OpenAIClient with the default prompt", client)
	}
}

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) Analyze(context.Context, string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return `{}`, nil
}

func TestWithBreaker(t *testing.T) {
	t.Parallel()

	upstream := &countingClient{err: apperrors.NewExternalServiceError(openAIService, "HTTP 503", nil)}
	client := WithBreaker(upstream, 2, time.Minute, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.Analyze(ctx, "x"); !apperrors.IsExternal(err) {
			t.Fatalf("call %d error = %v, want external service error", i+1, err)
		}
	}

	_, err := client.Analyze(ctx, "x")
	if !apperrors.IsExternal(err) || !strings.Contains(err.Error(), "temporarily unavailable") {
		t.Errorf("open breaker error = %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("upstream called %d times, want 2", upstream.calls)
	}
}

func TestNew_WrapsWithBreaker(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://localhost")
	cfg.BreakerFailures = 3
	cfg.BreakerCooldown = time.Second

	client, err := New(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := client.(*guardedClient); !ok {
		t.Errorf("New() = %T, want *guardedClient", client)
	}
}
