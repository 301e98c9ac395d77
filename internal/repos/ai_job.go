package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

type AIJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *types.AIJob) (*types.AIJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AIJob, error)
	GetQueuedByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.AIJob, error)
	CountByProjectIDAndStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// TransitionStatus performs a compare-and-set on the job status. It
	// returns false without error when the job was not in `from` anymore.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string, updates map[string]interface{}) (bool, error)
}

type aiJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAIJobRepo(db *gorm.DB, baseLog *logger.Logger) AIJobRepo {
	return &aiJobRepo{db: db, log: baseLog.With("repo", "AIJobRepo")}
}

func (r *aiJobRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *aiJobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.AIJob) (*types.AIJob, error) {
	if err := r.tx(tx).WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *aiJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AIJob, error) {
	var job types.AIJob
	if err := r.tx(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetQueuedByProjectID returns the project's queued job if one exists, nil
// otherwise. There is at most one by the submit merge rule.
func (r *aiJobRepo) GetQueuedByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.AIJob, error) {
	var job types.AIJob
	err := r.tx(tx).WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, types.JobStatusQueued).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *aiJobRepo) CountByProjectIDAndStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string) (int64, error) {
	var count int64
	if err := r.tx(tx).WithContext(ctx).
		Model(&types.AIJob{}).
		Where("project_id = ? AND status = ?", projectID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *aiJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return r.tx(tx).WithContext(ctx).
		Model(&types.AIJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *aiJobRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := r.tx(tx).WithContext(ctx).
		Model(&types.AIJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
