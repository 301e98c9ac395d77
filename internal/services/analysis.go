package services

import (
	"context"
	"strings"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

// maxFileContextChars bounds how much of each file is fed to the capability.
// The cutoff is a hard character slice, not sentence-aware; anything past it
// is lost to the model. One constant for analysis and chat.
const maxFileContextChars = 20000

// FileContext is one named document handed to the analysis or chat capability.
type FileContext struct {
	Name    string
	Content string
}

type AnalysisService interface {
	Analyze(ctx context.Context, files []FileContext) (*types.AIAnalysisResult, error)
}

type analysisService struct {
	log    *logger.Logger
	client GeminiClient
}

func NewAnalysisService(baseLog *logger.Logger, client GeminiClient) AnalysisService {
	return &analysisService{
		log:    baseLog.With("service", "AnalysisService"),
		client: client,
	}
}

const analysisPromptHeader = `You are a senior technical lead and DevOps engineer.
Analyze the following project files.

Your goal is to extract ACTIONABLE metadata to make this project easy to resume or deploy.

CRITICAL INSTRUCTION FOR "run_commands":
- Normalize all scripts into full execution commands.
- If package.json has "dev": "next dev", output "npm run dev".
- If Makefile has "test:", output "make test".
- Do NOT output just "dev" or "start". Output the full shell command.

Input Files:
`

func analysisSchema() map[string]any {
	stringList := func(desc string) map[string]any {
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": desc,
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"one_liner": map[string]any{
				"type":        "string",
				"description": "A very short, catchy one-sentence summary of what the project does.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "A concise technical description of the project (2-3 sentences).",
			},
			"main_features": stringList("List of key features."),
			"tech_stack":    stringList("List of technologies, frameworks, and libraries used."),
			"chains":        stringList("List of blockchain networks if applicable. Empty if not a dApp."),
			"target_users":  stringList("Who is this for?"),
			"tags":          stringList("Keywords for categorization."),
			"run_commands":  stringList("Exact commands to run the project."),
			"deploy_status": map[string]any{
				"type":        "string",
				"enum":        []string{"production", "testnet", "local", "unknown"},
				"description": "Current deployment state.",
			},
			"key_decisions": stringList("Inferred architectural decisions."),
			"confidence_score": map[string]any{
				"type":        "number",
				"description": "Confidence score between 0 and 1.",
			},
			"missing_info": stringList("Questions about missing information."),
		},
		"required": []string{
			"one_liner", "description", "main_features", "tech_stack", "tags",
			"confidence_score", "chains", "target_users", "run_commands", "key_decisions",
		},
	}
}

// BuildFileContext concatenates files into one bounded prompt block with
// explicit boundary markers.
func BuildFileContext(files []FileContext) string {
	var sb strings.Builder
	for _, f := range files {
		content := f.Content
		if len(content) > maxFileContextChars {
			content = content[:maxFileContextChars]
		}
		sb.WriteString("\n--- START OF FILE: ")
		sb.WriteString(f.Name)
		sb.WriteString(" ---\n")
		sb.WriteString(content)
		sb.WriteString("\n--- END OF FILE ---\n")
	}
	return sb.String()
}

func (s *analysisService) Analyze(ctx context.Context, files []FileContext) (*types.AIAnalysisResult, error) {
	if len(files) == 0 {
		return nil, &AnalysisError{Reason: "no files provided"}
	}

	prompt := analysisPromptHeader + BuildFileContext(files)

	raw, err := s.client.GenerateJSON(ctx, prompt, analysisSchema())
	if err != nil {
		s.log.Error("Analysis capability call failed", "error", err, "file_count", len(files))
		return nil, &AnalysisError{Reason: "capability call failed", Err: err}
	}

	result, err := types.ParseAnalysisResult(raw)
	if err != nil {
		s.log.Error("Analysis response failed schema validation", "error", err)
		return nil, &AnalysisError{Reason: "invalid response", Err: err}
	}
	s.log.Info("Analysis completed",
		"file_count", len(files),
		"confidence", result.ConfidenceScore,
	)
	return result, nil
}

// previewName derives a fallback project name from the first analyzed file,
// e.g. "README.md" -> "README".
func previewName(files []FileContext) string {
	if len(files) == 0 {
		return ""
	}
	name := files[0].Name
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	return name
}
