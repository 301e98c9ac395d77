package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
	"github.com/devdex/devdex-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "devdex", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Project{},
		&types.ProjectFile{},
		&types.AIJob{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "project_file"
		DROP CONSTRAINT IF EXISTS "fk_project_file_project_id";
		ALTER TABLE "project_file"
		ADD CONSTRAINT "fk_project_file_project_id"
		FOREIGN KEY ("project_id")
		REFERENCES "project"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_project_file_project_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "ai_job"
		DROP CONSTRAINT IF EXISTS "fk_ai_job_project_id";
		ALTER TABLE "ai_job"
		ADD CONSTRAINT "fk_ai_job_project_id"
		FOREIGN KEY ("project_id")
		REFERENCES "project"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_ai_job_project_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
