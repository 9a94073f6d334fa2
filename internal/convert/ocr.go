package convert

import (
	"context"
	"fmt"

	"github.com/doc2md/backend/internal/models"
	"github.com/doc2md/backend/internal/upstream/mistral"
)

// OCRStep names the stage a secondary-service conversion has reached.
type OCRStep string

const (
	StepStart             OCRStep = "start"
	StepUploaded          OCRStep = "uploaded"
	StepSignedURLObtained OCRStep = "signed_url_obtained"
	StepProcessed         OCRStep = "processed"
)

// OCRClient is the subset of the Mistral client the backend needs.
type OCRClient interface {
	UploadFile(ctx context.Context, key string, file mistral.File) (string, error)
	SignedURL(ctx context.Context, key, fileID string) (string, error)
	OCR(ctx context.Context, key, documentURL string, kind models.InputKind) ([]mistral.Page, error)
}

// StepError records which transition failed.
type StepError struct {
	Step OCRStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ocrRun carries one file through Uploaded, SignedURLObtained and Processed.
type ocrRun struct {
	kind      models.InputKind
	step      OCRStep
	fileID    string
	signedURL string
	markdown  string
}

// OCRBackend is the three-call secondary service path.
type OCRBackend struct {
	client OCRClient
}

// NewOCRBackend wraps client.
func NewOCRBackend(client OCRClient) *OCRBackend {
	return &OCRBackend{client: client}
}

// Convert implements Backend. Once started the three calls run to completion
// or failure; the context is detached from caller cancellation.
func (b *OCRBackend) Convert(ctx context.Context, creds models.Credentials, file models.UploadCandidate) (string, error) {
	ctx = context.WithoutCancel(ctx)
	run := &ocrRun{kind: models.InputKindFor(file.MimeType), step: StepStart}

	for run.step != StepProcessed {
		if err := b.advance(ctx, creds.SecondaryKey, file, run); err != nil {
			return "", &StepError{Step: run.step, Err: err}
		}
	}
	return run.markdown, nil
}

func (b *OCRBackend) advance(ctx context.Context, key string, file models.UploadCandidate, run *ocrRun) error {
	switch run.step {
	case StepStart:
		content, err := file.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", file.Name, err)
		}
		defer content.Close()

		id, err := b.client.UploadFile(ctx, key, mistral.File{Name: file.Name, ContentType: file.MimeType, Content: content})
		if err != nil {
			return err
		}
		run.fileID = id
		run.step = StepUploaded

	case StepUploaded:
		u, err := b.client.SignedURL(ctx, key, run.fileID)
		if err != nil {
			return err
		}
		run.signedURL = u
		run.step = StepSignedURLObtained

	case StepSignedURLObtained:
		pages, err := b.client.OCR(ctx, key, run.signedURL, run.kind)
		if err != nil {
			return err
		}
		run.markdown = mistral.JoinPages(pages)
		run.step = StepProcessed
	}
	return nil
}
