package services

import (
	"context"
	"testing"
	"time"

	"github.com/devdex/devdex-backend/internal/types"
)

func TestCreateEmpty_Defaults(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := NewProjectService(nil, newTestLogger(), repo)

	project, err := svc.CreateEmpty(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.Name != "" {
		t.Fatalf("new project must start unnamed, got %q", project.Name)
	}
	if project.Type != types.ProjectTypeWeb || project.Status != types.ProjectStatusIdea {
		t.Fatalf("unexpected defaults: type=%q status=%q", project.Type, project.Status)
	}
	if string(project.FeaturesAI) != "[]" || string(project.TagsAI) != "[]" {
		t.Fatalf("list fields must start as empty arrays")
	}
}

func TestApplyAnalysis_OverwritesAllAIFields(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := NewProjectService(nil, newTestLogger(), repo)

	project, err := svc.CreateEmpty(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Seed stale AI fields from a previous analysis.
	project.OneLinerAI = "old one liner"
	project.FeaturesAI = types.StringListJSON([]string{"stale-a", "stale-b", "stale-c"})
	project.StackAI = types.StringListJSON([]string{"Rust"})
	project.ConfidenceScore = 0.2
	if _, err := svc.Save(context.Background(), project); err != nil {
		t.Fatalf("save: %v", err)
	}

	result := analysisFixture()
	result.MainFeatures = []string{"fresh"}
	result.MissingInfo = []string{"where is the license?"}

	merged, missing, err := svc.ApplyAnalysis(context.Background(), project.ID, result, "README")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if merged.OneLinerAI != result.OneLiner {
		t.Fatalf("one liner not overwritten: %q", merged.OneLinerAI)
	}
	features := types.StringListValues(merged.FeaturesAI)
	if len(features) != 1 || features[0] != "fresh" {
		t.Fatalf("list fields must be replaced wholesale, got %v", features)
	}
	stack := types.StringListValues(merged.StackAI)
	if len(stack) != 1 || stack[0] != "Go" {
		t.Fatalf("stale stack survived the merge: %v", stack)
	}
	if merged.ConfidenceScore != 0.9 {
		t.Fatalf("unexpected confidence: %v", merged.ConfidenceScore)
	}
	if merged.AIUpdatedAt == nil {
		t.Fatalf("ai_updated_at must be set by the merge")
	}
	if len(missing) != 1 || missing[0] != "where is the license?" {
		t.Fatalf("missing info must pass through, got %v", missing)
	}
}

func TestApplyAnalysis_IsIdempotent(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := NewProjectService(nil, newTestLogger(), repo)

	project, _ := svc.CreateEmpty(context.Background())
	result := analysisFixture()

	first, _, err := svc.ApplyAnalysis(context.Background(), project.ID, result, "README")
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, _, err := svc.ApplyAnalysis(context.Background(), project.ID, result, "README")
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if first.OneLinerAI != second.OneLinerAI || string(first.FeaturesAI) != string(second.FeaturesAI) {
		t.Fatalf("same result applied twice must converge to one state")
	}
	features := types.StringListValues(second.FeaturesAI)
	if len(features) != len(result.MainFeatures) {
		t.Fatalf("re-applying must not accumulate list entries: %v", features)
	}
}

func TestApplyAnalysis_NameFillRules(t *testing.T) {
	cases := []struct {
		name     string
		current  string
		source   string
		expected string
	}{
		{"empty name gets filled", "", "README", "README"},
		{"placeholder gets filled", types.ProjectNamePlaceholder, "README", "README"},
		{"user name is kept", "My dApp", "README", "My dApp"},
		{"empty source leaves name alone", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeProjectRepo()
			svc := NewProjectService(nil, newTestLogger(), repo)

			project, _ := svc.CreateEmpty(context.Background())
			project.Name = tc.current
			if _, err := svc.Save(context.Background(), project); err != nil {
				t.Fatalf("save: %v", err)
			}

			merged, _, err := svc.ApplyAnalysis(context.Background(), project.ID, analysisFixture(), tc.source)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if merged.Name != tc.expected {
				t.Fatalf("expected name %q, got %q", tc.expected, merged.Name)
			}
		})
	}
}

func TestApplyAnalysis_ClampsConfidenceAndDeployStatus(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := NewProjectService(nil, newTestLogger(), repo)

	project, _ := svc.CreateEmpty(context.Background())
	result := analysisFixture()
	result.ConfidenceScore = 3.5
	result.DeployStatus = "mainnet"

	merged, _, err := svc.ApplyAnalysis(context.Background(), project.ID, result, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if merged.ConfidenceScore != 1 {
		t.Fatalf("confidence must clamp to 1, got %v", merged.ConfidenceScore)
	}
	if merged.DeployStatusAI != types.DeployStatusUnknown {
		t.Fatalf("unrecognized deploy status must collapse to unknown, got %q", merged.DeployStatusAI)
	}
}

func TestSave_TouchesLastTouchedAt(t *testing.T) {
	repo := newFakeProjectRepo()
	svc := NewProjectService(nil, newTestLogger(), repo)

	project, _ := svc.CreateEmpty(context.Background())
	before := project.LastTouchedAt
	time.Sleep(time.Millisecond)

	saved, err := svc.Save(context.Background(), project)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved.LastTouchedAt.After(before) {
		t.Fatalf("save must refresh last_touched_at")
	}
}
