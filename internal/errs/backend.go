package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindUnavailable is any failure without a more specific classification.
	KindUnavailable Kind = iota
	// KindAuthOrRateLimited means the source demanded a login or throttled us.
	KindAuthOrRateLimited
	// KindEmpty means the backend finished without producing content.
	KindEmpty
	// KindTimeout means the backend did not finish before the deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindAuthOrRateLimited:
		return "auth_or_rate_limited"
	case KindEmpty:
		return "empty"
	case KindTimeout:
		return "timeout"
	default:
		return "unavailable"
	}
}

// BackendError is returned by extraction backends. Detail keeps the raw backend
// output for logs and is never shown to the caller.
type BackendError struct {
	Kind    Kind
	Backend string
	Detail  string
	Err     error
}

// NewBackendError builds a BackendError.
func NewBackendError(backend string, kind Kind, detail string, err error) *BackendError {
	return &BackendError{Kind: kind, Backend: backend, Detail: detail, Err: err}
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Backend, e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is matches another BackendError of the same kind, so callers can use
// errors.Is(err, &errs.BackendError{Kind: errs.KindEmpty}).
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Backend == "" || t.Backend == e.Backend)
}

// BackendKind returns the kind of the first BackendError in err's chain.
func BackendKind(err error) (Kind, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind, true
	}

	return 0, false
}
