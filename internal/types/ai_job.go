package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusQueued  = "queued"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusError   = "error"
)

type AIJob struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`

	FileIDs datatypes.JSON `gorm:"column:file_ids;type:jsonb;not null" json:"file_ids"`
	Status  string         `gorm:"column:status;not null;default:'queued';index" json:"status"`
	Model   string         `gorm:"column:model;not null" json:"model"`
	Result  datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Error   string         `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AIJob) TableName() string { return "ai_job" }

// FileIDList decodes the stored file id set. Unparseable entries are skipped
// rather than failing the whole job load.
func (j *AIJob) FileIDList() []uuid.UUID {
	var raw []string
	if len(j.FileIDs) > 0 {
		_ = json.Unmarshal(j.FileIDs, &raw)
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (j *AIJob) SetFileIDs(ids []uuid.UUID) {
	j.FileIDs = FileIDSetJSON(ids)
}

// FileIDSetJSON encodes ids as a jsonb array of strings with duplicates
// removed, preserving first-seen order.
func FileIDSetJSON(ids []uuid.UUID) datatypes.JSON {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	b, _ := json.Marshal(out)
	return datatypes.JSON(b)
}

// MergeFileIDs unions extra into the job's current set.
func (j *AIJob) MergeFileIDs(extra []uuid.UUID) {
	j.SetFileIDs(append(j.FileIDList(), extra...))
}
