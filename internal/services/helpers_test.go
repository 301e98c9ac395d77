package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// fakeGeminiClient scripts the capability's next responses and records the
// last request it saw. A non-nil chatBlock parks every Chat call until the
// channel is closed.
type fakeGeminiClient struct {
	mu sync.Mutex

	generateResp string
	generateErr  error
	chatResp     string
	chatErr      error
	chatBlock    chan struct{}

	lastPrompt  string
	lastSystem  string
	lastHistory []types.ChatMessage
	lastMessage string
	historyLens []int
	calls       int
}

func (f *fakeGeminiClient) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = prompt
	return f.generateResp, f.generateErr
}

func (f *fakeGeminiClient) Chat(ctx context.Context, systemContext string, history []types.ChatMessage, message string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSystem = systemContext
	f.lastHistory = append([]types.ChatMessage(nil), history...)
	f.lastMessage = message
	f.historyLens = append(f.historyLens, len(history))
	resp, err := f.chatResp, f.chatErr
	block := f.chatBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeGeminiClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGeminiClient) historyLengths() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.historyLens...)
}

// fakeProjectRepo is an in-memory repos.ProjectRepo.
type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*types.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[uuid.UUID]*types.Project{}}
}

func (r *fakeProjectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projects[project.ID]; exists {
		return nil, fmt.Errorf("duplicate project id %s", project.ID)
	}
	cp := *project
	r.projects[project.ID] = &cp
	return project, nil
}

func (r *fakeProjectRepo) Upsert(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *project
	r.projects[project.ID] = &cp
	return project, nil
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) ListByLastTouched(ctx context.Context, tx *gorm.DB) ([]*types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Project, 0, len(r.projects))
	for _, p := range r.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeProjectRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

// fakeFileRepo is an in-memory repos.ProjectFileRepo.
type fakeFileRepo struct {
	mu    sync.Mutex
	files map[uuid.UUID]*types.ProjectFile
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[uuid.UUID]*types.ProjectFile{}}
}

func (r *fakeFileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.ProjectFile) (*types.ProjectFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *file
	r.files[file.ID] = &cp
	return file, nil
}

func (r *fakeFileRepo) GetByIDs(ctx context.Context, tx *gorm.DB, fileIDs []uuid.UUID) ([]*types.ProjectFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.ProjectFile, 0, len(fileIDs))
	for _, id := range fileIDs {
		if f, ok := r.files[id]; ok {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.ProjectFile, 0)
	for _, f := range r.files {
		if f.ProjectID == projectID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeJobRepo is an in-memory repos.AIJobRepo with the same compare-and-set
// contract as the real one.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*types.AIJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*types.AIJob{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.AIJob) (*types.AIJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return job, nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AIJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) GetQueuedByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.AIJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *types.AIJob
	for _, j := range r.jobs {
		if j.ProjectID != projectID || j.Status != types.JobStatusQueued {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (r *fakeJobRepo) CountByProjectIDAndStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, j := range r.jobs {
		if j.ProjectID == projectID && j.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyJobUpdates(j, updates)
	return nil
}

func (r *fakeJobRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	applyJobUpdates(j, updates)
	return true, nil
}

func applyJobUpdates(j *types.AIJob, updates map[string]interface{}) {
	for key, val := range updates {
		switch key {
		case "file_ids":
			if v, ok := val.(datatypes.JSON); ok {
				j.FileIDs = v
			}
		case "result":
			if v, ok := val.(datatypes.JSON); ok {
				j.Result = v
			}
		case "error":
			if v, ok := val.(string); ok {
				j.Error = v
			}
		}
	}
}

// fakeAnalysis scripts the next analysis outcome.
type fakeAnalysis struct {
	mu     sync.Mutex
	result *types.AIAnalysisResult
	err    error
	calls  int
}

func (f *fakeAnalysis) Analyze(ctx context.Context, files []FileContext) (*types.AIAnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeProjects records ApplyAnalysis calls; other methods delegate to a real
// fakeProjectRepo-backed service when needed, the job tests only merge.
type fakeProjects struct {
	mu          sync.Mutex
	applied     []*types.AIAnalysisResult
	sourceNames []string
	applyErr    error
}

func (f *fakeProjects) CreateEmpty(ctx context.Context) (*types.Project, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeProjects) Save(ctx context.Context, project *types.Project) (*types.Project, error) {
	return project, nil
}

func (f *fakeProjects) GetByID(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProjects) List(ctx context.Context) ([]*types.Project, error) {
	return nil, nil
}

func (f *fakeProjects) ApplyAnalysis(ctx context.Context, projectID uuid.UUID, result *types.AIAnalysisResult, sourceName string) (*types.Project, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, nil, f.applyErr
	}
	f.applied = append(f.applied, result)
	f.sourceNames = append(f.sourceNames, sourceName)
	return &types.Project{ID: projectID}, result.MissingInfo, nil
}

// fakeFiles is a canned FileService for job tests.
type fakeFiles struct {
	contents []FileContext
	err      error
}

func (f *fakeFiles) Ingest(ctx context.Context, projectID uuid.UUID, uploads []Upload) ([]IngestOutcome, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeFiles) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectFile, error) {
	return nil, nil
}

func (f *fakeFiles) ResolveContents(ctx context.Context, fileIDs []uuid.UUID) ([]FileContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.contents, nil
}

// recordingNotifier captures the status of every notification in order.
type recordingNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (n *recordingNotifier) JobUpdated(job *types.AIJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, job.Status)
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.statuses...)
}

// failingBucket errors every Put and Get.
type failingBucket struct{}

func (failingBucket) Put(ctx context.Context, key string, data io.Reader) error {
	return fmt.Errorf("bucket unavailable")
}

func (failingBucket) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("bucket unavailable")
}

func (failingBucket) BucketName() string { return "" }
