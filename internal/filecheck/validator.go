// Package filecheck decides whether a batch of files may be sent to a
// conversion service.
package filecheck

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/doc2md/backend/internal/models"
)

// Rejection reasons.
const (
	ReasonUnsupported = "unsupported file type"
	ReasonTooLarge    = "file too large"
)

// ErrEmptyBatch is returned when there is nothing to convert.
var ErrEmptyBatch = errors.New("no files selected")

// Rejection names one offending file.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BatchError lists every file that failed validation.
type BatchError struct {
	Service  models.ServiceSelection
	Rejected []Rejection
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Rejected))
	for i, r := range e.Rejected {
		parts[i] = fmt.Sprintf("%s (%s)", r.Name, r.Reason)
	}
	return fmt.Sprintf("%d file(s) rejected for %s: %s", len(e.Rejected), e.Service, strings.Join(parts, ", "))
}

// Names returns the offending file names in batch order.
func (e *BatchError) Names() []string {
	names := make([]string, len(e.Rejected))
	for i, r := range e.Rejected {
		names[i] = r.Name
	}
	return names
}

// Validator checks candidates against per-service allow-lists.
type Validator struct {
	maxSecondarySize int64
}

// New returns a Validator. A non-positive maxSecondarySize uses the default.
func New(maxSecondarySize int64) *Validator {
	if maxSecondarySize <= 0 {
		maxSecondarySize = DefaultMaxSecondarySize
	}
	return &Validator{maxSecondarySize: maxSecondarySize}
}

// AllowList returns the effective allow-list, including the configured ceiling.
func (v *Validator) AllowList(service models.ServiceSelection) AllowList {
	list := AllowListFor(service)
	if service == models.ServiceMistral {
		list.MaxSize = v.maxSecondarySize
	}
	return list
}

// IsSupported matches the MIME type first and falls back to the extension
// when the MIME type is empty or not on the list.
func IsSupported(service models.ServiceSelection, name, mimeType string) bool {
	list := AllowListFor(service)
	if mt := normalizeMime(mimeType); mt != "" && slices.Contains(list.MimeTypes, mt) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(list.Extensions, ext)
}

// ValidateBatch accepts the whole batch or rejects it naming every offending file.
func (v *Validator) ValidateBatch(service models.ServiceSelection, candidates []models.UploadCandidate) error {
	if len(candidates) == 0 {
		return ErrEmptyBatch
	}

	var rejected []Rejection
	for _, c := range candidates {
		if err := v.validateOne(service, c); err != nil {
			rejected = append(rejected, Rejection{Name: c.Name, Reason: err.Error()})
		}
	}
	if len(rejected) > 0 {
		return &BatchError{Service: service, Rejected: rejected}
	}
	return nil
}

func (v *Validator) validateOne(service models.ServiceSelection, c models.UploadCandidate) error {
	rules := []validation.Rule{
		validation.By(func(any) error {
			if !IsSupported(service, c.Name, c.MimeType) {
				return errors.New(ReasonUnsupported)
			}
			return nil
		}),
	}
	if service == models.ServiceMistral {
		rules = append(rules, validation.By(func(any) error {
			if c.Size >= v.maxSecondarySize {
				return errors.New(ReasonTooLarge)
			}
			return nil
		}))
	}
	return validation.Validate(c.Name, rules...)
}

func normalizeMime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(s)
}
