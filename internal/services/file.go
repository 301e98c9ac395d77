package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/repos"
	"github.com/devdex/devdex-backend/internal/types"
)

// Upload is one raw document handed to ingestion.
type Upload struct {
	Name string
	Data []byte
}

// IngestOutcome reports one file's result. A batch never rolls back sibling
// files; each entry stands on its own.
type IngestOutcome struct {
	File *types.ProjectFile
	Err  error
}

type FileService interface {
	Ingest(ctx context.Context, projectID uuid.UUID, uploads []Upload) ([]IngestOutcome, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectFile, error)
	// ResolveContents loads the text payload of each file, inline first and
	// object storage as fallback, preserving the input id order. Image files
	// carry no text payload and are skipped.
	ResolveContents(ctx context.Context, fileIDs []uuid.UUID) ([]FileContext, error)
}

type fileService struct {
	db            *gorm.DB
	log           *logger.Logger
	bucketService BucketService
	projectRepo   repos.ProjectRepo
	fileRepo      repos.ProjectFileRepo
}

func NewFileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bucketService BucketService,
	projectRepo repos.ProjectRepo,
	fileRepo repos.ProjectFileRepo,
) FileService {
	return &fileService{
		db:            db,
		log:           baseLog.With("service", "FileService"),
		bucketService: bucketService,
		projectRepo:   projectRepo,
		fileRepo:      fileRepo,
	}
}

// ClassifyFileKind infers the file kind from its name, case-insensitively.
func ClassifyFileKind(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "readme"):
		return types.FileKindReadme
	case strings.Contains(lower, ".md"), strings.Contains(lower, "doc"):
		return types.FileKindDocs
	case strings.HasSuffix(lower, ".png"), strings.HasSuffix(lower, ".jpg"),
		strings.HasSuffix(lower, ".jpeg"), strings.HasSuffix(lower, ".gif"),
		strings.HasSuffix(lower, ".svg"):
		return types.FileKindImage
	default:
		return types.FileKindConfig
	}
}

func (fs *fileService) Ingest(ctx context.Context, projectID uuid.UUID, uploads []Upload) ([]IngestOutcome, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project id")
	}
	// Files cannot exist before their project record does.
	if _, err := fs.projectRepo.GetByID(ctx, nil, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s not found, save the project before uploading files", projectID)
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	outcomes := make([]IngestOutcome, 0, len(uploads))
	for _, up := range uploads {
		outcomes = append(outcomes, fs.ingestOne(ctx, projectID, up))
	}
	return outcomes, nil
}

func (fs *fileService) ingestOne(ctx context.Context, projectID uuid.UUID, up Upload) IngestOutcome {
	kind := ClassifyFileKind(up.Name)
	fileID := uuid.New()
	key := fmt.Sprintf("%s/%s-%s", projectID, fileID, up.Name)

	record := &types.ProjectFile{
		ID:        fileID,
		ProjectID: projectID,
		Name:      up.Name,
		Kind:      kind,
		SizeBytes: int64(len(up.Data)),
		CreatedAt: time.Now(),
	}
	if kind != types.FileKindImage {
		record.Content = string(up.Data)
	}

	// Object storage is a best-effort optimization for text files: on a put
	// failure the inline copy still satisfies retrieval. Images have no
	// inline copy, so for them the put is load-bearing.
	if err := fs.bucketService.Put(ctx, key, bytes.NewReader(up.Data)); err != nil {
		if kind == types.FileKindImage {
			fs.log.Error("Storage put failed for image file", "error", err, "file_name", up.Name)
			return IngestOutcome{Err: &UploadError{FileName: up.Name, Err: err}}
		}
		fs.log.Warn("Storage put failed, keeping inline content only", "error", err, "file_name", up.Name)
	} else {
		record.Bucket = fs.bucketService.BucketName()
		record.Path = key
	}

	if _, err := fs.fileRepo.Create(ctx, nil, record); err != nil {
		if repos.IsForeignKeyViolation(err) {
			err = fmt.Errorf("project %s not found: %w", projectID, err)
		} else if repos.IsUniqueViolation(err) {
			err = fmt.Errorf("file already exists: %w", err)
		}
		fs.log.Error("Failed to create file record", "error", err, "file_name", up.Name)
		return IngestOutcome{Err: &UploadError{FileName: up.Name, Err: err}}
	}

	fs.log.Info("Ingested file",
		"file_id", record.ID,
		"project_id", projectID,
		"kind", kind,
		"size_bytes", record.SizeBytes,
	)
	return IngestOutcome{File: record}
}

func (fs *fileService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectFile, error) {
	return fs.fileRepo.GetByProjectID(ctx, nil, projectID)
}

func (fs *fileService) ResolveContents(ctx context.Context, fileIDs []uuid.UUID) ([]FileContext, error) {
	records, err := fs.fileRepo.GetByIDs(ctx, nil, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("load file records: %w", err)
	}
	byID := make(map[uuid.UUID]*types.ProjectFile, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	ordered := make([]*types.ProjectFile, 0, len(fileIDs))
	for _, id := range fileIDs {
		rec, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("file %s not found", id)
		}
		if rec.Kind == types.FileKindImage {
			continue
		}
		ordered = append(ordered, rec)
	}

	results := make([]FileContext, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, rec := range ordered {
		g.Go(func() error {
			if rec.Content != "" {
				results[i] = FileContext{Name: rec.Name, Content: rec.Content}
				return nil
			}
			if !rec.HasStorageLocator() {
				return fmt.Errorf("file %s has neither inline content nor a storage locator", rec.ID)
			}
			raw, err := fs.bucketService.Get(gctx, rec.Path)
			if err != nil {
				return fmt.Errorf("fetch file %s from storage: %w", rec.ID, err)
			}
			results[i] = FileContext{Name: rec.Name, Content: string(raw)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
