package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

type ProjectFileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.ProjectFile) (*types.ProjectFile, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, fileIDs []uuid.UUID) ([]*types.ProjectFile, error)
	GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectFile, error)
}

type projectFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectFileRepo(db *gorm.DB, baseLog *logger.Logger) ProjectFileRepo {
	return &projectFileRepo{db: db, log: baseLog.With("repo", "ProjectFileRepo")}
}

func (r *projectFileRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *projectFileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.ProjectFile) (*types.ProjectFile, error) {
	if err := r.tx(tx).WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *projectFileRepo) GetByIDs(ctx context.Context, tx *gorm.DB, fileIDs []uuid.UUID) ([]*types.ProjectFile, error) {
	var results []*types.ProjectFile
	if len(fileIDs) == 0 {
		return results, nil
	}
	if err := r.tx(tx).WithContext(ctx).
		Where("id IN ?", fileIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *projectFileRepo) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectFile, error) {
	var results []*types.ProjectFile
	if err := r.tx(tx).WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
