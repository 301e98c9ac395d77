package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/utils"
)

// BucketService is the object storage collaborator: store bytes by key,
// retrieve bytes by key. Keys are caller-chosen and never overwritten.
type BucketService interface {
	Put(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) ([]byte, error)
	BucketName() string
}

// NewBucketServiceFromEnv selects the storage backend. STORAGE_PROVIDER=gcs
// talks to Google Cloud Storage; memory keeps blobs in-process (dev/tests).
func NewBucketServiceFromEnv(log *logger.Logger) (BucketService, error) {
	provider := strings.ToLower(utils.GetEnv("STORAGE_PROVIDER", "gcs", log))
	switch provider {
	case "gcs":
		return NewGCSBucketService(log)
	case "memory":
		return NewMemoryBucketService("project-files"), nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", provider)
	}
}

type gcsBucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewGCSBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	if saPath == "" {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, storage client will rely on ADC")
	}
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsBucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
	}, nil
}

func (bs *gcsBucketService) Put(ctx context.Context, key string, data io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.storageClient.Bucket(bs.bucketName).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *gcsBucketService) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	r, err := bs.storageClient.Bucket(bs.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %q: %w", key, err)
	}
	return raw, nil
}

func (bs *gcsBucketService) BucketName() string { return bs.bucketName }

type memoryBucketService struct {
	mu         sync.RWMutex
	bucketName string
	objects    map[string][]byte
}

func NewMemoryBucketService(bucketName string) BucketService {
	return &memoryBucketService{
		bucketName: bucketName,
		objects:    map[string][]byte{},
	}
}

func (bs *memoryBucketService) Put(ctx context.Context, key string, data io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if _, exists := bs.objects[key]; exists {
		return fmt.Errorf("object %q already exists", key)
	}
	bs.objects[key] = buf.Bytes()
	return nil
}

func (bs *memoryBucketService) Get(ctx context.Context, key string) ([]byte, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	data, ok := bs.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (bs *memoryBucketService) BucketName() string { return bs.bucketName }
