package models

import (
	"fmt"
	"io"
	"strings"
)

// ServiceSelection picks the backend that handles a whole batch.
type ServiceSelection string

const (
	// ServiceCloudflare is the primary service: one call through the forwarding endpoint.
	ServiceCloudflare ServiceSelection = "cloudflare"
	// ServiceMistral is the secondary service: upload, signed URL, OCR.
	ServiceMistral ServiceSelection = "mistral"
)

// ParseServiceSelection converts a request value into a ServiceSelection.
func ParseServiceSelection(s string) (ServiceSelection, error) {
	switch ServiceSelection(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceCloudflare:
		return ServiceCloudflare, nil
	case ServiceMistral:
		return ServiceMistral, nil
	}
	return "", fmt.Errorf("unknown service %q", s)
}

// IsPrimary reports whether s is the single-call service.
func (s ServiceSelection) IsPrimary() bool {
	return s == ServiceCloudflare
}

// InputKind tags a file as an image or a document for the OCR step.
type InputKind string

const (
	InputImage    InputKind = "image"
	InputDocument InputKind = "document"
)

// InputKindFor derives the kind from a MIME type.
func InputKindFor(mimeType string) InputKind {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return InputImage
	}
	return InputDocument
}

// UploadCandidate is a file between selection and submission.
type UploadCandidate struct {
	Name     string
	MimeType string
	Size     int64
	// Open returns a fresh reader over the file content.
	Open func() (io.ReadCloser, error)
}

// ConversionResult is the Markdown produced for one file.
type ConversionResult struct {
	Name     string `json:"name" msgpack:"name"`
	Markdown string `json:"markdown" msgpack:"markdown"`
}
