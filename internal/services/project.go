package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/repos"
	"github.com/devdex/devdex-backend/internal/types"
)

type ProjectService interface {
	CreateEmpty(ctx context.Context) (*types.Project, error)
	Save(ctx context.Context, project *types.Project) (*types.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Project, error)
	List(ctx context.Context) ([]*types.Project, error)
	// ApplyAnalysis merges a validated analysis result onto the project.
	// Returns the updated project and the result's ephemeral follow-up
	// questions, which are never stored.
	ApplyAnalysis(ctx context.Context, projectID uuid.UUID, result *types.AIAnalysisResult, sourceName string) (*types.Project, []string, error)
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	return &projectService{
		db:          db,
		log:         baseLog.With("service", "ProjectService"),
		projectRepo: projectRepo,
	}
}

func (s *projectService) CreateEmpty(ctx context.Context) (*types.Project, error) {
	now := time.Now()
	project := &types.Project{
		ID:             uuid.New(),
		Name:           "",
		Type:           types.ProjectTypeWeb,
		Status:         types.ProjectStatusIdea,
		FeaturesAI:     types.StringListJSON(nil),
		StackAI:        types.StringListJSON(nil),
		ChainsAI:       types.StringListJSON(nil),
		TargetUsersAI:  types.StringListJSON(nil),
		TagsAI:         types.StringListJSON(nil),
		RunCommandsAI:  types.StringListJSON(nil),
		KeyDecisionsAI: types.StringListJSON(nil),
		CreatedAt:      now,
		LastTouchedAt:  now,
	}
	if _, err := s.projectRepo.Create(ctx, nil, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.log.Info("Created empty project", "project_id", project.ID)
	return project, nil
}

func (s *projectService) Save(ctx context.Context, project *types.Project) (*types.Project, error) {
	if project == nil || project.ID == uuid.Nil {
		return nil, fmt.Errorf("project id required")
	}
	project.LastTouchedAt = time.Now()
	if _, err := s.projectRepo.Upsert(ctx, nil, project); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

func (s *projectService) GetByID(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	return s.projectRepo.GetByID(ctx, nil, id)
}

func (s *projectService) List(ctx context.Context) ([]*types.Project, error) {
	return s.projectRepo.ListByLastTouched(ctx, nil)
}

// ApplyAnalysis overwrites every AI-derived field as a single batch; list
// fields are never element-merged with previous values, so one analysis can
// never mix stale and fresh inferences. The name is only filled when the
// current one is empty or the placeholder.
//
// A merge may interleave with a direct user save; both refresh
// last_touched_at and the later writer wins. That race is accepted, not
// hidden.
func (s *projectService) ApplyAnalysis(ctx context.Context, projectID uuid.UUID, result *types.AIAnalysisResult, sourceName string) (*types.Project, []string, error) {
	if result == nil {
		return nil, nil, fmt.Errorf("analysis result required")
	}
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}

	now := time.Now()
	project.OneLinerAI = result.OneLiner
	project.DescriptionAI = result.Description
	project.FeaturesAI = types.StringListJSON(result.MainFeatures)
	project.StackAI = types.StringListJSON(result.TechStack)
	project.ChainsAI = types.StringListJSON(result.Chains)
	project.TargetUsersAI = types.StringListJSON(result.TargetUsers)
	project.TagsAI = types.StringListJSON(result.Tags)
	project.RunCommandsAI = types.StringListJSON(result.RunCommands)
	project.KeyDecisionsAI = types.StringListJSON(result.KeyDecisions)
	project.DeployStatusAI = types.NormalizeDeployStatus(result.DeployStatus)
	project.ConfidenceScore = types.ClampConfidence(result.ConfidenceScore)
	project.AIUpdatedAt = &now
	project.LastTouchedAt = now

	if !project.HasUserName() && sourceName != "" {
		project.Name = sourceName
	}

	if _, err := s.projectRepo.Upsert(ctx, nil, project); err != nil {
		return nil, nil, fmt.Errorf("save merged project: %w", err)
	}
	s.log.Info("Applied analysis to project",
		"project_id", project.ID,
		"confidence", project.ConfidenceScore,
		"deploy_status", project.DeployStatusAI,
	)
	return project, result.MissingInfo, nil
}
