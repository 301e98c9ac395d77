package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devdex/devdex-backend/internal/types"
)

func newGeminiClientForTest(t *testing.T, baseURL string) GeminiClient {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_BASE_URL", baseURL)
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	client, err := NewGeminiClient(newTestLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func geminiTextResponse(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"},"finishReason":"STOP"}]}`, text)
}

func TestGenerateJSON_SendsSchemaConstrainedRequest(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, geminiTextResponse(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newGeminiClientForTest(t, srv.URL)
	out, err := client.GenerateJSON(context.Background(), "analyze this", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected output: %q", out)
	}
	if captured.GenerationConfig == nil {
		t.Fatalf("missing generation config")
	}
	if captured.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("expected JSON response mime type, got %q", captured.GenerationConfig.ResponseMimeType)
	}
	if captured.GenerationConfig.Temperature != 0.1 {
		t.Fatalf("unexpected temperature: %v", captured.GenerationConfig.Temperature)
	}
	if captured.GenerationConfig.ResponseSchema == nil {
		t.Fatalf("schema not forwarded")
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Parts[0].Text != "analyze this" {
		t.Fatalf("prompt not forwarded: %+v", captured.Contents)
	}
}

func TestChat_ReplaysHistoryWithRoles(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, geminiTextResponse("a reply"))
	}))
	defer srv.Close()

	client := newGeminiClientForTest(t, srv.URL)
	history := []types.ChatMessage{
		{Role: types.ChatRoleUser, Content: "first question"},
		{Role: types.ChatRoleModel, Content: "first answer"},
	}
	out, err := client.Chat(context.Background(), "system ctx", history, "second question")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "a reply" {
		t.Fatalf("unexpected output: %q", out)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "system ctx" {
		t.Fatalf("system instruction not forwarded")
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("expected history plus new message, got %d contents", len(captured.Contents))
	}
	if captured.Contents[0].Role != "user" || captured.Contents[1].Role != "model" || captured.Contents[2].Role != "user" {
		t.Fatalf("unexpected roles: %+v", captured.Contents)
	}
	if captured.GenerationConfig.MaxOutputTokens != 2048 {
		t.Fatalf("unexpected max tokens: %d", captured.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiClient_SurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "overloaded")
	}))
	defer srv.Close()

	client := newGeminiClientForTest(t, srv.URL)
	_, err := client.GenerateJSON(context.Background(), "x", nil)
	var httpErr *geminiHTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected geminiHTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", httpErr.StatusCode)
	}
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewGeminiClient(newTestLogger()); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestIsPayloadTooLarge(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"413", &geminiHTTPError{StatusCode: 413, Body: "too big"}, true},
		{"400 with token hint", &geminiHTTPError{StatusCode: 400, Body: "input token count exceeds limit"}, true},
		{"400 without hint", &geminiHTTPError{StatusCode: 400, Body: "bad field"}, false},
		{"500", &geminiHTTPError{StatusCode: 500, Body: "boom"}, false},
		{"wrapped", fmt.Errorf("call failed: %w", &geminiHTTPError{StatusCode: 413}), true},
		{"unrelated", errors.New("timeout"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPayloadTooLarge(tc.err); got != tc.want {
				t.Fatalf("IsPayloadTooLarge = %v, want %v", got, tc.want)
			}
		})
	}
}
