// Package convert turns a validated batch of files into Markdown, one file
// at a time, using one of the conversion backends.
package convert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doc2md/backend/internal/models"
)

// Backend converts one file.
type Backend interface {
	Convert(ctx context.Context, creds models.Credentials, file models.UploadCandidate) (string, error)
}

// ProgressFunc is called before each file starts and after it finishes.
type ProgressFunc func(index int, name string, done bool)

// Orchestrator dispatches a batch to the backend chosen by ServiceSelection.
type Orchestrator struct {
	backends map[models.ServiceSelection]Backend
	logger   *slog.Logger
}

// NewOrchestrator wires the primary and secondary backends.
func NewOrchestrator(primary, secondary Backend, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		backends: map[models.ServiceSelection]Backend{
			models.ServiceCloudflare: primary,
			models.ServiceMistral:    secondary,
		},
		logger: logger,
	}
}

// Run converts files strictly in order. The first failure aborts the batch
// and no results are returned with it.
func (o *Orchestrator) Run(ctx context.Context, service models.ServiceSelection, creds models.Credentials, files []models.UploadCandidate, progress ProgressFunc) ([]models.ConversionResult, error) {
	backend, ok := o.backends[service]
	if !ok || backend == nil {
		return nil, fmt.Errorf("no backend for service %q", service)
	}
	if err := checkCredentials(service, creds); err != nil {
		return nil, err
	}

	results := make([]models.ConversionResult, 0, len(files))
	for i, file := range files {
		if progress != nil {
			progress(i, file.Name, false)
		}

		markdown, err := backend.Convert(ctx, creds, file)
		if err != nil {
			o.logger.Error("file conversion failed",
				"service", service,
				"file", file.Name,
				"index", i,
				"kind", Classify(err),
				"error", err,
			)
			return nil, &FileError{Index: i, Name: file.Name, Err: err}
		}

		results = append(results, models.ConversionResult{Name: file.Name, Markdown: markdown})
		if progress != nil {
			progress(i, file.Name, true)
		}
	}
	return results, nil
}

func checkCredentials(service models.ServiceSelection, creds models.Credentials) error {
	switch service {
	case models.ServiceCloudflare:
		if !creds.Configured() {
			return fmt.Errorf("%w: account id and api token are required", ErrMissingCredentials)
		}
	case models.ServiceMistral:
		if !creds.HasSecondaryKey() {
			return fmt.Errorf("%w: mistral api key is required", ErrMissingCredentials)
		}
	}
	return nil
}
