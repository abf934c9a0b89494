package internal

import (
	"errors"
	"fmt"
)

const (
	// GenericFailureReply is shown when the backend rejects a request without a reason
	GenericFailureReply = "⚠️ Request failed"
	// ConnectionFailedReply is shown when the backend cannot be reached
	ConnectionFailedReply = "Jarvis connection failed."
)

// ErrNotAuthenticated is returned for profile-scoped actions without a token
var ErrNotAuthenticated = errors.New("Not authenticated")

// ErrSpeechUnsupported is returned when no speech engine is available
var ErrSpeechUnsupported = errors.New("speech not supported")

// BackendError represents a non-success HTTP response from the backend
type BackendError struct {
	Op     string // "POST /command"
	Status int
	Detail string // "detail" or "error" field of the body
	Reply  string // "reply" field of the body, /command only
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error [%d] %s: %s", e.Status, e.Op, e.Detail)
	}
	return fmt.Sprintf("backend error [%d] %s", e.Status, e.Op)
}

// NetworkError represents a request that never produced an HTTP response
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ChatUnavailableError means an authenticated user has no chat to send commands into
type ChatUnavailableError struct {
	Err error
}

func (e *ChatUnavailableError) Error() string {
	return fmt.Sprintf("chat unavailable: %v", e.Err)
}

func (e *ChatUnavailableError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the local history cache
type StorageError struct {
	Path string
	Op   string // "open", "read", "write"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// UserMessage turns an error into the text shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.Reply != "" {
			return backendErr.Reply
		}
		if backendErr.Detail != "" {
			return backendErr.Detail
		}
		return GenericFailureReply
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return ConnectionFailedReply
	}

	if errors.Is(err, ErrNotAuthenticated) {
		return ErrNotAuthenticated.Error()
	}

	return err.Error()
}
