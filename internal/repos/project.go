package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error)
	Upsert(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)
	ListByLastTouched(ctx context.Context, tx *gorm.DB) ([]*types.Project, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *projectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	if err := r.tx(tx).WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepo) Upsert(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	if err := r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	var project types.Project
	if err := r.tx(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) ListByLastTouched(ctx context.Context, tx *gorm.DB) ([]*types.Project, error) {
	var results []*types.Project
	if err := r.tx(tx).WithContext(ctx).
		Order("last_touched_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *projectRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return r.tx(tx).WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}
