package resolver

import (
	"errors"
	"fmt"

	"github.com/tripsage/go-placephoto/apierror"
)

// Kind classifies why a resolution fell back.
type Kind int

const (
	// MissingKey means no usable place key was given.
	MissingKey Kind = iota + 1
	// MissingCredential means no imagery service credential is configured.
	MissingCredential
	// TransportFailure means a metadata or media request failed or answered
	// with a non-success status.
	TransportFailure
	// EmptyResult means the place has no photos.
	EmptyResult
	// RetryExhausted means a display gave up after its retry budget was spent.
	RetryExhausted
)

func (k Kind) String() string {
	switch k {
	case MissingKey:
		return "missing key"
	case MissingCredential:
		return "missing credential"
	case TransportFailure:
		return "transport failure"
	case EmptyResult:
		return "empty result"
	case RetryExhausted:
		return "retry exhausted"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Failure describes a resolution that fell back.
type Failure struct {
	Kind Kind
	Key  string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s for place %q: %s", f.Kind, f.Key, f.Err)
	}
	return fmt.Sprintf("%s for place %q", f.Kind, f.Key)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether trying the same resolution again could produce a
// different outcome. A transport failure is retryable unless the imagery
// service answered with a status that will not change, such as 404.
func (f *Failure) Retryable() bool {
	if f.Kind != TransportFailure {
		return false
	}
	var apiErr *apierror.Error
	if errors.As(f.Err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// Result is the outcome of resolving a place key. Ref is always displayable.
// Failure is nil unless Fallback is true.
type Result struct {
	Ref      string
	Fallback bool
	Cached   bool
	Failure  *Failure
}
