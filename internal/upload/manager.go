// Package upload moves captured page images to the remote object store, both
// synchronously during a session and through a background retry queue when the
// operator chooses to proceed without images.
package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/pkg/jobs"
	"github.com/noah-isme/sheetgrader/pkg/storage"
)

type objectStore interface {
	Upload(ctx context.Context, localPath, folder string) (storage.RemoteRef, error)
}

type fileDeleter interface {
	DeleteAll(names []string) error
}

type retryMetrics interface {
	UploadRetryExhausted()
}

// retryJob is the payload of one queued background upload. The callbacks are
// bound to the persisted record the images belong to.
type retryJob struct {
	paths       []string
	folder      string
	onSuccess   func([]storage.RemoteRef)
	onExhausted func()
}

// ManagerConfig tunes the background retry queue.
type ManagerConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// Manager performs the foreground uploads of a scan session and owns the
// background retry worker. Files handed to EnqueueRetry belong to the worker:
// it deletes them on success and on exhaustion, so an operator decision to
// proceed without images never leaks disk space.
type Manager struct {
	store   objectStore
	files   fileDeleter
	queue   *jobs.Queue
	metrics retryMetrics
	logger  *zap.Logger
}

// NewManager builds the manager and its retry queue. Start must be called
// before EnqueueRetry.
func NewManager(store objectStore, files fileDeleter, metrics retryMetrics, logger *zap.Logger, cfg ManagerConfig) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:   store,
		files:   files,
		metrics: metrics,
		logger:  logger,
	}
	m.queue = jobs.NewQueue("upload-retry", m.process, jobs.QueueConfig{
		Workers:     1,
		MaxRetries:  cfg.RetryAttempts,
		RetryDelay:  cfg.RetryDelay,
		OnExhausted: m.giveUp,
		Logger:      logger,
	})
	return m
}

// Start launches the background worker.
func (m *Manager) Start(ctx context.Context) { m.queue.Start(ctx) }

// Stop drains the background worker.
func (m *Manager) Stop() { m.queue.Stop() }

// UploadAll uploads every path in order and fails fast on the first error.
// Callers treat a failure as a whole-batch failure and retry the batch.
func (m *Manager) UploadAll(ctx context.Context, paths []string, folder string) ([]storage.RemoteRef, error) {
	refs := make([]storage.RemoteRef, 0, len(paths))
	for _, path := range paths {
		ref, err := m.store.Upload(ctx, path, folder)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// EnqueueRetry schedules a deferred upload of the given files. onSuccess
// receives the remote references once every file landed; onExhausted fires
// when the final attempt fails. Either way the local files are deleted
// afterwards.
func (m *Manager) EnqueueRetry(paths []string, folder string, onSuccess func([]storage.RemoteRef), onExhausted func()) error {
	return m.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: "upload_retry",
		Payload: retryJob{
			paths:       append([]string(nil), paths...),
			folder:      folder,
			onSuccess:   onSuccess,
			onExhausted: onExhausted,
		},
	})
}

func (m *Manager) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(retryJob)
	if !ok {
		m.logger.Error("discarding job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	refs, err := m.UploadAll(ctx, payload.paths, payload.folder)
	if err != nil {
		return err
	}

	if payload.onSuccess != nil {
		payload.onSuccess(refs)
	}
	m.cleanup(payload, job.ID)
	m.logger.Info("background upload completed",
		zap.String("job_id", job.ID),
		zap.Int("files", len(payload.paths)),
		zap.Int("attempts", job.Attempt+1),
	)
	return nil
}

func (m *Manager) giveUp(ctx context.Context, job jobs.Job, err error) {
	payload, ok := job.Payload.(retryJob)
	if !ok {
		return
	}
	m.logger.Error("background upload exhausted",
		zap.String("job_id", job.ID),
		zap.Int("files", len(payload.paths)),
		zap.Error(err),
	)
	if payload.onExhausted != nil {
		payload.onExhausted()
	}
	m.cleanup(payload, job.ID)
	if m.metrics != nil {
		m.metrics.UploadRetryExhausted()
	}
}

func (m *Manager) cleanup(payload retryJob, jobID string) {
	if err := m.files.DeleteAll(payload.paths); err != nil {
		m.logger.Warn("failed to delete handed-off pages", zap.String("job_id", jobID), zap.Error(err))
	}
}
