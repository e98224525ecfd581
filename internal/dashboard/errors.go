package dashboard

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels used with errors.Is across the package.
var (
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
)

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// TransportError wraps a request that never reached a response.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	if e.Err == nil {
		return "transport error"
	}
	return "transport error: " + e.Err.Error()
}

func (e TransportError) Unwrap() error { return e.Err }

// RemoteError carries the server's error envelope.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Is maps well-known statuses onto the package sentinels.
func (e RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrPrecondition:
		return e.Status == http.StatusConflict
	}
	return false
}
