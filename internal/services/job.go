package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/repos"
	"github.com/devdex/devdex-backend/internal/types"
)

// JobNotifier receives every observable job state change. The SSE hub
// implements it; tests use the noop.
type JobNotifier interface {
	JobUpdated(job *types.AIJob)
}

type NoopJobNotifier struct{}

func (NoopJobNotifier) JobUpdated(*types.AIJob) {}

type JobService interface {
	// Submit creates a queued analysis job for the project, or merges the
	// file ids into the project's existing queued job. It never starts the
	// run; call Dispatch for that.
	Submit(ctx context.Context, projectID uuid.UUID, fileIDs []uuid.UUID) (*types.AIJob, error)
	// Dispatch starts the run asynchronously. An abandoned caller does not
	// cancel the run; the terminal result is persisted either way.
	Dispatch(jobID uuid.UUID)
	// Retry resets an errored job back to queued and runs one synchronous
	// attempt so the caller observes it.
	Retry(ctx context.Context, jobID uuid.UUID) (*types.AIJob, error)
	GetByID(ctx context.Context, jobID uuid.UUID) (*types.AIJob, error)
}

type jobService struct {
	log      *logger.Logger
	jobRepo  repos.AIJobRepo
	files    FileService
	analysis AnalysisService
	projects ProjectService
	notify   JobNotifier
	model    string

	// Serializes Submit's read-merge-write. Submissions are user-triggered
	// and rare; a process-wide mutex is enough to keep the at-most-one-queued
	// invariant, with the queued->queued CAS below as the cross-check.
	submitMu sync.Mutex
}

func NewJobService(
	baseLog *logger.Logger,
	jobRepo repos.AIJobRepo,
	files FileService,
	analysis AnalysisService,
	projects ProjectService,
	notify JobNotifier,
	model string,
) JobService {
	if notify == nil {
		notify = NoopJobNotifier{}
	}
	return &jobService{
		log:      baseLog.With("service", "JobService"),
		jobRepo:  jobRepo,
		files:    files,
		analysis: analysis,
		projects: projects,
		notify:   notify,
		model:    model,
	}
}

func (s *jobService) Submit(ctx context.Context, projectID uuid.UUID, fileIDs []uuid.UUID) (*types.AIJob, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project id")
	}
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("at least one file id required")
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	for {
		existing, err := s.jobRepo.GetQueuedByProjectID(ctx, nil, projectID)
		if err != nil {
			return nil, fmt.Errorf("lookup queued job: %w", err)
		}
		if existing == nil {
			now := time.Now()
			job := &types.AIJob{
				ID:        uuid.New(),
				ProjectID: projectID,
				Status:    types.JobStatusQueued,
				Model:     s.model,
				CreatedAt: now,
				UpdatedAt: now,
			}
			job.SetFileIDs(fileIDs)
			if _, err := s.jobRepo.Create(ctx, nil, job); err != nil {
				return nil, fmt.Errorf("create job: %w", err)
			}
			s.log.Info("Queued analysis job", "job_id", job.ID, "project_id", projectID, "file_count", len(fileIDs))
			s.notify.JobUpdated(job)
			return job, nil
		}

		existing.MergeFileIDs(fileIDs)
		// queued->queued CAS: if the job started running since the read,
		// fall through and queue a fresh job instead of mutating a run.
		ok, err := s.jobRepo.TransitionStatus(ctx, nil, existing.ID, types.JobStatusQueued, types.JobStatusQueued, map[string]interface{}{
			"file_ids": existing.FileIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("merge into queued job: %w", err)
		}
		if ok {
			s.log.Info("Merged files into queued job", "job_id", existing.ID, "project_id", projectID)
			s.notify.JobUpdated(existing)
			return existing, nil
		}
	}
}

func (s *jobService) Dispatch(jobID uuid.UUID) {
	go func() {
		if err := s.run(context.Background(), jobID); err != nil {
			s.log.Error("Job run failed", "job_id", jobID, "error", err)
		}
	}()
}

func (s *jobService) GetByID(ctx context.Context, jobID uuid.UUID) (*types.AIJob, error) {
	return s.jobRepo.GetByID(ctx, nil, jobID)
}

func (s *jobService) Retry(ctx context.Context, jobID uuid.UUID) (*types.AIJob, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.Status != types.JobStatusError {
		return nil, fmt.Errorf("job %s is %s, only error jobs can be retried", jobID, job.Status)
	}
	ok, err := s.jobRepo.TransitionStatus(ctx, nil, jobID, types.JobStatusError, types.JobStatusQueued, map[string]interface{}{
		"error": "",
	})
	if err != nil {
		return nil, fmt.Errorf("reset job: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("job %s changed state during retry", jobID)
	}
	job.Status = types.JobStatusQueued
	job.Error = ""
	s.notify.JobUpdated(job)

	// One immediate attempt so the retry is observable to the caller.
	if err := s.run(ctx, jobID); err != nil {
		s.log.Error("Retry run failed", "job_id", jobID, "error", err)
	}
	return s.jobRepo.GetByID(ctx, nil, jobID)
}

// run drives one job from queued to a terminal state. Every transition is a
// compare-and-set, so a stale or duplicate run call degenerates to a no-op.
func (s *jobService) run(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	// At most one running analysis per project. A queued job that loses this
	// check stays queued and is dispatched again when the current run ends.
	running, err := s.jobRepo.CountByProjectIDAndStatus(ctx, nil, job.ProjectID, types.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("count running jobs: %w", err)
	}
	if running > 0 {
		s.log.Debug("Another job is running for project, leaving queued", "job_id", jobID, "project_id", job.ProjectID)
		return nil
	}

	ok, err := s.jobRepo.TransitionStatus(ctx, nil, jobID, types.JobStatusQueued, types.JobStatusRunning, nil)
	if err != nil {
		return fmt.Errorf("transition to running: %w", err)
	}
	if !ok {
		return nil
	}
	job.Status = types.JobStatusRunning
	s.notify.JobUpdated(job)

	// File set is fetched fresh so ids merged after creation are included.
	job, err = s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("reload job: %w", err))
	}

	files, err := s.files.ResolveContents(ctx, job.FileIDList())
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("resolve file contents: %w", err))
	}
	if len(files) == 0 {
		return s.fail(ctx, jobID, fmt.Errorf("no readable files in job file set"))
	}

	result, err := s.analysis.Analyze(ctx, files)
	if err != nil {
		return s.fail(ctx, jobID, err)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("encode result: %w", err))
	}
	ok, err = s.jobRepo.TransitionStatus(ctx, nil, jobID, types.JobStatusRunning, types.JobStatusDone, map[string]interface{}{
		"result": datatypes.JSON(resultJSON),
		"error":  "",
	})
	if err != nil {
		return fmt.Errorf("transition to done: %w", err)
	}
	if ok {
		job.Status = types.JobStatusDone
		job.Result = datatypes.JSON(resultJSON)
		s.notify.JobUpdated(job)

		if _, _, mergeErr := s.projects.ApplyAnalysis(ctx, job.ProjectID, result, previewName(files)); mergeErr != nil {
			s.log.Error("Project merge failed after analysis", "job_id", jobID, "project_id", job.ProjectID, "error", mergeErr)
		}
	}

	s.dispatchNextQueued(job.ProjectID)
	return nil
}

// fail moves the job to error, keeping the project untouched.
func (s *jobService) fail(ctx context.Context, jobID uuid.UUID, cause error) error {
	ok, err := s.jobRepo.TransitionStatus(ctx, nil, jobID, types.JobStatusRunning, types.JobStatusError, map[string]interface{}{
		"error": cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("transition to error (cause: %v): %w", cause, err)
	}
	if ok {
		if job, getErr := s.jobRepo.GetByID(ctx, nil, jobID); getErr == nil {
			s.notify.JobUpdated(job)
			s.dispatchNextQueued(job.ProjectID)
		}
	}
	return cause
}

func (s *jobService) dispatchNextQueued(projectID uuid.UUID) {
	next, err := s.jobRepo.GetQueuedByProjectID(context.Background(), nil, projectID)
	if err != nil {
		s.log.Error("Failed to look up next queued job", "project_id", projectID, "error", err)
		return
	}
	if next != nil {
		s.Dispatch(next.ID)
	}
}
