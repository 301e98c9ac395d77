package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ProjectTypeDApp    = "dApp"
	ProjectTypeTool    = "Tool"
	ProjectTypeWeb     = "Web"
	ProjectTypeLibrary = "Library"
	ProjectTypeOther   = "Other"
)

const (
	ProjectStatusActive   = "Active"
	ProjectStatusPaused   = "Paused"
	ProjectStatusArchived = "Archived"
	ProjectStatusIdea     = "Idea"
)

// ProjectNamePlaceholder is the default name new projects carry until either
// the user or an analysis fills it in.
const ProjectNamePlaceholder = "New Project"

type Project struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name   string    `gorm:"column:name" json:"name"`
	Type   string    `gorm:"column:type;not null;default:'Web'" json:"type"`
	Status string    `gorm:"column:status;not null;default:'Idea'" json:"status"`

	SummaryHuman string `gorm:"column:summary_human" json:"summary_human,omitempty"`
	DemoURL      string `gorm:"column:demo_url" json:"demo_url,omitempty"`
	RepoURL      string `gorm:"column:repo_url" json:"repo_url,omitempty"`

	// AI-derived fields, replaced wholesale by every successful analysis.
	OneLinerAI      string         `gorm:"column:one_liner_ai" json:"one_liner_ai,omitempty"`
	DescriptionAI   string         `gorm:"column:description_ai" json:"description_ai,omitempty"`
	FeaturesAI      datatypes.JSON `gorm:"column:features_ai;type:jsonb" json:"features_ai"`
	StackAI         datatypes.JSON `gorm:"column:stack_ai;type:jsonb" json:"stack_ai"`
	ChainsAI        datatypes.JSON `gorm:"column:chains_ai;type:jsonb" json:"chains_ai"`
	TargetUsersAI   datatypes.JSON `gorm:"column:target_users_ai;type:jsonb" json:"target_users_ai"`
	TagsAI          datatypes.JSON `gorm:"column:tags_ai;type:jsonb" json:"tags_ai"`
	RunCommandsAI   datatypes.JSON `gorm:"column:run_commands_ai;type:jsonb" json:"run_commands_ai"`
	KeyDecisionsAI  datatypes.JSON `gorm:"column:key_decisions_ai;type:jsonb" json:"key_decisions_ai"`
	DeployStatusAI  string         `gorm:"column:deploy_status_ai" json:"deploy_status_ai,omitempty"`
	ConfidenceScore float64        `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	AIUpdatedAt     *time.Time     `gorm:"column:ai_updated_at" json:"ai_updated_at,omitempty"`

	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	LastTouchedAt time.Time `gorm:"column:last_touched_at;not null;default:now();index" json:"last_touched_at"`
}

func (Project) TableName() string { return "project" }

// HasUserName reports whether the project name was deliberately set, i.e.
// it is neither empty nor the placeholder. Analysis merges never overwrite
// a name for which this returns true.
func (p *Project) HasUserName() bool {
	return p.Name != "" && p.Name != ProjectNamePlaceholder
}
