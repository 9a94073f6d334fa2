// Package credentials holds the account id, API token and secondary key used
// for upstream calls, seeded from the environment and persisted through an
// injected Storage.
package credentials

import (
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/doc2md/backend/internal/models"
)

// State is the UI-level configuration state.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConfigured   State = "configured"
)

// Store is the process-wide credential holder. Save and Clear persist and
// update memory under one lock.
type Store struct {
	mu       sync.RWMutex
	storage  Storage
	defaults models.Credentials
	current  models.Credentials
}

// NewStore creates a Store. defaults are environment-provided values with
// placeholders already filtered out.
func NewStore(storage Storage, defaults models.Credentials) *Store {
	return &Store{storage: storage, defaults: defaults}
}

// Load initializes memory state. Environment values win over persisted ones
// and are persisted in turn.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.storage.Read()
	if err != nil {
		return err
	}

	creds := models.Credentials{SecondaryKey: persisted.SecondaryKey}
	if persisted.Configured() {
		creds.AccountID = persisted.AccountID
		creds.APIToken = persisted.APIToken
	}

	dirty := false
	if s.defaults.Configured() {
		creds.AccountID = s.defaults.AccountID
		creds.APIToken = s.defaults.APIToken
		dirty = creds.AccountID != persisted.AccountID || creds.APIToken != persisted.APIToken
	}
	if s.defaults.SecondaryKey != "" {
		dirty = dirty || creds.SecondaryKey != s.defaults.SecondaryKey
		creds.SecondaryKey = s.defaults.SecondaryKey
	}

	if dirty {
		if err := s.storage.Write(creds); err != nil {
			return err
		}
	}
	s.current = creds
	return nil
}

// Get returns a copy of the current credentials.
func (s *Store) Get() models.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// State reports whether primary credentials are configured.
func (s *Store) State() State {
	if s.Get().Configured() {
		return StateConfigured
	}
	return StateUnconfigured
}

// Save validates and persists creds. An empty secondary key keeps the stored one.
func (s *Store) Save(creds models.Credentials) (models.Credentials, error) {
	creds.AccountID = strings.TrimSpace(creds.AccountID)
	creds.APIToken = strings.TrimSpace(creds.APIToken)
	creds.SecondaryKey = strings.TrimSpace(creds.SecondaryKey)

	if err := validateCredentials(creds); err != nil {
		return models.Credentials{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if creds.SecondaryKey == "" {
		creds.SecondaryKey = s.current.SecondaryKey
	}
	if err := s.storage.Write(creds); err != nil {
		return models.Credentials{}, fmt.Errorf("saving credentials: %w", err)
	}
	s.current = creds
	return creds, nil
}

// Clear removes all persisted fields and resets memory to empty.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Clear(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	s.current = models.Credentials{}
	return nil
}

func validateCredentials(c models.Credentials) error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AccountID, validation.Required.Error("account id is required"), validation.Length(1, 128)),
		validation.Field(&c.APIToken, validation.Required.Error("api token is required"), validation.Length(1, 512)),
		validation.Field(&c.SecondaryKey, validation.Length(0, 512)),
	)
}
