package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

// GeminiClient is the external LLM capability. GenerateJSON runs one
// schema-constrained analysis call; Chat runs one stateless conversational
// call built from the full history. Neither retries: retry decisions belong
// to the job state machine, one layer up.
type GeminiClient interface {
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)
	Chat(ctx context.Context, systemContext string, history []types.ChatMessage, message string) (string, error)
}

type geminiClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(log *logger.Logger) (GeminiClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	baseURL := os.Getenv("GEMINI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash"
	}

	timeoutSec := 120
	if v := os.Getenv("GEMINI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &geminiClient{
		log:        log.With("service", "GeminiClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type geminiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (c *geminiClient) doOnce(ctx context.Context, body *geminiRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &geminiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("gemini decode error: %w; raw=%s", err, string(raw))
	}
	var text string
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		break
	}
	if text == "" {
		return "", fmt.Errorf("no text in gemini response")
	}
	return text, nil
}

func (c *geminiClient) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	req := &geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	return c.doOnce(ctx, req)
}

func (c *geminiClient) Chat(ctx context.Context, systemContext string, history []types.ChatMessage, message string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == types.ChatRoleModel {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: message}},
	})
	req := &geminiRequest{
		Contents: contents,
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemContext}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
		},
	}
	return c.doOnce(ctx, req)
}

// IsPayloadTooLarge reports whether the capability rejected a request for
// exceeding its input size limit.
func IsPayloadTooLarge(err error) bool {
	var httpErr *geminiHTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == http.StatusRequestEntityTooLarge {
		return true
	}
	return httpErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(httpErr.Body), "token")
}
