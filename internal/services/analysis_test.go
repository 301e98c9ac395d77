package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const validAnalysisResponse = `{
	"one_liner": "x",
	"description": "y",
	"main_features": ["f"],
	"tech_stack": ["Go"],
	"chains": [],
	"target_users": ["devs"],
	"tags": ["t"],
	"run_commands": ["npm run dev"],
	"deploy_status": "local",
	"key_decisions": ["k"],
	"confidence_score": 0.7
}`

func TestAnalyze_ParsesValidResponse(t *testing.T) {
	client := &fakeGeminiClient{generateResp: validAnalysisResponse}
	svc := NewAnalysisService(newTestLogger(), client)

	result, err := svc.Analyze(context.Background(), []FileContext{
		{Name: "README.md", Content: "a readme"},
		{Name: "package.json", Content: `{"scripts":{"dev":"next dev"}}`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OneLiner != "x" || result.ConfidenceScore != 0.7 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.Contains(client.lastPrompt, "--- START OF FILE: README.md ---") {
		t.Fatalf("prompt missing file boundary marker")
	}
	if !strings.Contains(client.lastPrompt, "a readme") {
		t.Fatalf("prompt missing file content")
	}
}

func TestAnalyze_RejectsEmptyFileSet(t *testing.T) {
	svc := NewAnalysisService(newTestLogger(), &fakeGeminiClient{})
	var analysisErr *AnalysisError
	if _, err := svc.Analyze(context.Background(), nil); !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
}

func TestAnalyze_WrapsCapabilityFailure(t *testing.T) {
	cause := errors.New("connection refused")
	client := &fakeGeminiClient{generateErr: cause}
	svc := NewAnalysisService(newTestLogger(), client)

	_, err := svc.Analyze(context.Background(), []FileContext{{Name: "a", Content: "b"}})
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause must stay unwrappable")
	}
}

func TestAnalyze_RejectsMalformedResponse(t *testing.T) {
	client := &fakeGeminiClient{generateResp: `{"one_liner": "only this"}`}
	svc := NewAnalysisService(newTestLogger(), client)

	_, err := svc.Analyze(context.Background(), []FileContext{{Name: "a", Content: "b"}})
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError for schema violation, got %v", err)
	}
}

func TestBuildFileContext_TruncatesLongFiles(t *testing.T) {
	long := strings.Repeat("z", maxFileContextChars+500)
	out := BuildFileContext([]FileContext{{Name: "big.txt", Content: long}})
	if strings.Count(out, "z") != maxFileContextChars {
		t.Fatalf("expected exactly %d content chars, got %d", maxFileContextChars, strings.Count(out, "z"))
	}
	if !strings.Contains(out, "--- START OF FILE: big.txt ---") || !strings.Contains(out, "--- END OF FILE ---") {
		t.Fatalf("missing boundary markers")
	}
}

func TestPreviewName(t *testing.T) {
	cases := []struct {
		files []FileContext
		want  string
	}{
		{nil, ""},
		{[]FileContext{{Name: "README.md"}}, "README"},
		{[]FileContext{{Name: "Makefile"}}, "Makefile"},
		{[]FileContext{{Name: "app.config.json"}}, "app"},
	}
	for _, tc := range cases {
		if got := previewName(tc.files); got != tc.want {
			t.Fatalf("previewName(%v) = %q, want %q", tc.files, got, tc.want)
		}
	}
}
