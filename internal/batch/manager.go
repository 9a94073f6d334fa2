// Package batch runs conversion batches asynchronously and tracks their
// progress so clients can poll or stream it.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doc2md/backend/internal/convert"
	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/storage"
)

// Runner converts a whole batch. *convert.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, service models.ServiceSelection, creds models.Credentials, files []models.UploadCandidate, progress convert.ProgressFunc) ([]models.ConversionResult, error)
}

// ErrNotFound is returned for unknown or expired batch ids.
var ErrNotFound = errors.New("batch not found")

const subscriberBuffer = 16

type entry struct {
	batch models.Batch
	subs  []chan models.Batch
}

// Manager handles async batch processing.
type Manager struct {
	mu             sync.RWMutex
	batches        map[string]*entry
	runner         Runner
	store          storage.Store
	primaryTimeout time.Duration
	logger         *slog.Logger
}

// NewManager creates a batch manager. Files handed to Start are read from
// store and deleted from it once their batch finishes.
func NewManager(runner Runner, store storage.Store, primaryTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		batches:        make(map[string]*entry),
		runner:         runner,
		store:          store,
		primaryTimeout: primaryTimeout,
		logger:         logger.With("component", "batch"),
	}
}

// Start registers a batch and begins converting it in the background.
// The returned value is a snapshot.
func (m *Manager) Start(service models.ServiceSelection, creds models.Credentials, files []*models.FileInfo) models.Batch {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	e := &entry{batch: models.Batch{
		ID:        uuid.New().String(),
		Service:   service,
		Status:    models.BatchStatusPending,
		Files:     names,
		CreatedAt: time.Now(),
	}}

	m.mu.Lock()
	m.batches[e.batch.ID] = e
	snapshot := e.batch
	m.mu.Unlock()

	go m.process(e, service, creds, files)

	return snapshot
}

// Get returns a snapshot of a batch.
func (m *Manager) Get(id string) (models.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.batches[id]
	if !ok {
		return models.Batch{}, ErrNotFound
	}
	return e.batch, nil
}

// Subscribe returns a channel that receives the current snapshot and then one
// per change. The channel is closed once the batch is terminal or cancel is
// called. Slow readers may miss intermediate snapshots; Get always has the
// latest one.
func (m *Manager) Subscribe(id string) (<-chan models.Batch, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.batches[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan models.Batch, subscriberBuffer)
	ch <- e.batch
	if e.batch.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	e.subs = append(e.subs, ch)

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range e.subs {
			if sub == ch {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

// CleanupOldBatches removes finished batches older than maxAge.
func (m *Manager) CleanupOldBatches(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, e := range m.batches {
		if e.batch.Status.Terminal() && e.batch.CompletedAt != nil && e.batch.CompletedAt.Before(cutoff) {
			delete(m.batches, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("removed expired batches", "count", removed)
	}
	return removed
}

func (m *Manager) process(e *entry, service models.ServiceSelection, creds models.Credentials, files []*models.FileInfo) {
	log := m.logger.With("batch", e.batch.ID, "service", service, "files", len(files))
	log.Info("batch started")

	var (
		results []models.ConversionResult
		err     error
	)
	// Temp files are gone before the terminal state is published.
	defer func() {
		if r := recover(); r != nil {
			log.Error("batch panicked", "panic", r)
			results, err = nil, fmt.Errorf("internal error: %v", r)
		}
		m.release(log, files)
		m.finish(e, results, err)

		if err != nil {
			log.Warn("batch failed", "kind", convert.Classify(err), "error", err)
			return
		}
		log.Info("batch complete")
	}()

	ctx := context.Background()
	if service.IsPrimary() && m.primaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.primaryTimeout)
		defer cancel()
	}

	candidates := make([]models.UploadCandidate, len(files))
	for i, f := range files {
		candidates[i] = storage.Candidate(m.store, f)
	}

	results, err = m.runner.Run(ctx, service, creds, candidates, func(index int, name string, done bool) {
		m.progress(e, len(files), index, name, done)
	})
}

// release deletes the batch's temporary files.
func (m *Manager) release(log *slog.Logger, files []*models.FileInfo) {
	for _, f := range files {
		if err := m.store.Delete(f.ID); err != nil {
			log.Warn("failed to delete temp file", "file", f.ID, "error", err)
		}
	}
}

func (m *Manager) progress(e *entry, total, index int, name string, done bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := &e.batch
	b.Status = models.BatchStatusConverting
	if done {
		b.Completed = index + 1
		b.Current = ""
	} else {
		b.Current = name
	}
	if total > 0 {
		b.Progress = float64(b.Completed) / float64(total) * 100
	}
	m.publish(e)
}

func (m *Manager) finish(e *entry, results []models.ConversionResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := &e.batch
	if b.Status.Terminal() {
		return
	}

	now := time.Now()
	b.CompletedAt = &now
	b.Current = ""

	switch {
	case err == nil:
		b.Status = models.BatchStatusComplete
		b.Progress = 100
		b.Results = results
	default:
		kind := convert.Classify(err)
		b.Status = models.BatchStatusError
		if kind == convert.KindTimeout {
			b.Status = models.BatchStatusCancelled
		}
		b.ErrorKind = string(kind)
		b.Error = err.Error()
		var fileErr *convert.FileError
		if errors.As(err, &fileErr) {
			b.FailedFile = fileErr.Name
		}
		if kind == convert.KindTimeout {
			b.Error = fmt.Sprintf("conversion timed out after %s", m.primaryTimeout)
		}
	}

	m.publish(e)
	for _, sub := range e.subs {
		close(sub)
	}
	e.subs = nil
}

// publish must be called with m.mu held.
func (m *Manager) publish(e *entry) {
	for _, sub := range e.subs {
		select {
		case sub <- e.batch:
		default:
		}
	}
}
