package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/doc2md/backend/internal/models"
)

// Storage persists credentials between runs.
type Storage interface {
	Read() (models.Credentials, error)
	Write(models.Credentials) error
	Clear() error
}

// FileStorage keeps credentials in a YAML file readable only by the owner.
type FileStorage struct {
	path string
}

// NewFileStorage returns a FileStorage backed by path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Read returns the stored credentials. A missing file yields empty credentials.
func (s *FileStorage) Read() (models.Credentials, error) {
	var creds models.Credentials
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("reading credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parsing credentials: %w", err)
	}
	return creds, nil
}

// Write replaces the file through a rename so readers see old or new, never a mix.
func (s *FileStorage) Write(creds models.Credentials) error {
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}

// Clear removes the file.
func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage, mostly for tests.
type MemoryStorage struct {
	mu    sync.Mutex
	creds models.Credentials
	// Writes counts successful Write calls.
	Writes int
}

func (m *MemoryStorage) Read() (models.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *MemoryStorage) Write(creds models.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.Writes++
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = models.Credentials{}
	return nil
}
