package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DeployStatusProduction = "production"
	DeployStatusTestnet    = "testnet"
	DeployStatusLocal      = "local"
	DeployStatusUnknown    = "unknown"
)

// AIAnalysisResult is the structured output contract of the analysis
// capability. Anything that fails to decode into this shape with every
// required field present is a failed analysis, never a partial success.
type AIAnalysisResult struct {
	OneLiner        string   `json:"one_liner"`
	Description     string   `json:"description"`
	MainFeatures    []string `json:"main_features"`
	TechStack       []string `json:"tech_stack"`
	Chains          []string `json:"chains"`
	TargetUsers     []string `json:"target_users"`
	Tags            []string `json:"tags"`
	RunCommands     []string `json:"run_commands"`
	DeployStatus    string   `json:"deploy_status,omitempty"`
	KeyDecisions    []string `json:"key_decisions"`
	ConfidenceScore float64  `json:"confidence_score"`
	MissingInfo     []string `json:"missing_info,omitempty"`
}

var analysisRequiredKeys = []string{
	"one_liner",
	"description",
	"main_features",
	"tech_stack",
	"tags",
	"confidence_score",
	"chains",
	"target_users",
	"run_commands",
	"key_decisions",
}

// StripCodeFence removes a surrounding markdown code fence, which models
// sometimes wrap JSON payloads in despite schema-constrained output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseAnalysisResult strictly decodes a capability response body. Required
// keys must be present in the payload; their values may be empty.
func ParseAnalysisResult(raw string) (*AIAnalysisResult, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty analysis payload")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return nil, fmt.Errorf("analysis payload is not valid JSON: %w", err)
	}
	var missing []string
	for _, k := range analysisRequiredKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("analysis payload missing required fields: %s", strings.Join(missing, ", "))
	}

	var result AIAnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("analysis payload does not match schema: %w", err)
	}
	result.DeployStatus = NormalizeDeployStatus(result.DeployStatus)
	return &result, nil
}

// NormalizeDeployStatus collapses absent or unrecognized values to "unknown".
func NormalizeDeployStatus(s string) string {
	switch s {
	case DeployStatusProduction, DeployStatusTestnet, DeployStatusLocal, DeployStatusUnknown:
		return s
	default:
		return DeployStatusUnknown
	}
}

// ClampConfidence bounds a confidence score to [0,1]. The capability is not
// trusted to stay in range.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
