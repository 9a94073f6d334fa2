package convert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/doc2md/backend/internal/filecheck"
	"github.com/doc2md/backend/internal/upstream"
)

// Kind groups failures by how they are reported to the user.
type Kind string

const (
	KindInput     Kind = "input"
	KindUpstream  Kind = "upstream"
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindInternal  Kind = "internal"
)

// ErrMissingCredentials is an input error raised before any call is made.
var ErrMissingCredentials = errors.New("missing credentials")

// FileError is the single terminal failure of a batch.
type FileError struct {
	Index int
	Name  string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Classify maps an error onto the user-facing taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var statusErr *upstream.StatusError
	var batchErr *filecheck.BatchError
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, filecheck.ErrEmptyBatch), errors.As(err, &batchErr):
		return KindInput
	case errors.As(err, &statusErr):
		return KindUpstream
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return KindTransport
	default:
		return KindInternal
	}
}

// UpstreamStatus returns the vendor status code carried by err, if any.
func UpstreamStatus(err error) (int, bool) {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}
