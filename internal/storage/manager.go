// Package storage keeps uploaded files on local disk for as long as a single
// request or batch needs them.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doc2md/backend/internal/models"
)

// Store defines the interface for temporary file storage.
type Store interface {
	Save(name, mimeType string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	Open(id string) (io.ReadCloser, error)
	List() []*models.FileInfo
	Delete(id string) error
	GetFilePath(id string) (string, error)
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu      sync.RWMutex
	tempDir string
	files   map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(tempDir string) (*LocalStore, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	return &LocalStore{
		tempDir: tempDir,
		files:   make(map[string]*models.FileInfo),
	}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.tempDir
}

// Save writes r to a new uuid-named file.
func (s *LocalStore) Save(name, mimeType string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.tempDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	return info, nil
}

// Open returns a reader over the stored content.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// List returns the stored files, oldest first.
func (s *LocalStore) List() []*models.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.Before(list[j].UploadedAt)
	})

	return list
}

// Delete removes a file from storage. Deleting a file that is already gone
// from disk is not an error.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.tempDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("file not found: %s", id)
	}

	return filepath.Join(s.tempDir, id), nil
}

// Candidate exposes a stored file as an upload candidate.
func Candidate(s Store, info *models.FileInfo) models.UploadCandidate {
	id := info.ID
	return models.UploadCandidate{
		Name:     info.Name,
		MimeType: info.MimeType,
		Size:     info.Size,
		Open: func() (io.ReadCloser, error) {
			return s.Open(id)
		},
	}
}
