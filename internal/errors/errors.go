// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidSignature is returned when an inbound webhook signature is missing or does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrDecryptionFailed is returned when a credential cannot be authenticated with the configured key.
	ErrDecryptionFailed = errors.New("credential decryption failed")
	// ErrEmptyPlaintext is returned when asked to encrypt an empty value.
	ErrEmptyPlaintext = errors.New("cannot encrypt empty plaintext")
	// ErrRunSuperseded is returned when a run's state update is ignored because a newer run owns the row.
	ErrRunSuperseded = errors.New("analysis run superseded by a newer run")
	// ErrNoToken is returned when a user has no stored access token.
	ErrNoToken = errors.New("user has no stored access token")
)

// ErrInvalidRepoFormat is returned when a repository full name is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrInvalidKey is returned when the encryption key is absent or not 32 bytes of hex.
type ErrInvalidKey struct {
	Reason string
}

func (e *ErrInvalidKey) Error() string {
	return "invalid encryption key: " + e.Reason
}

// MalformedCredentialError is returned when an encoded credential is not 'iv:tag:ciphertext' hex.
type MalformedCredentialError struct {
	Reason string
}

func (e *MalformedCredentialError) Error() string {
	return "malformed credential: " + e.Reason
}

// EngineError describes a failed call to the analysis engine.
// Transient errors are eligible for retry.
type EngineError struct {
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis engine returned %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return "analysis engine request failed: " + e.Err.Error()
	}
	return "analysis engine request failed: " + e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is an EngineError marked as retryable.
func IsTransient(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Transient
	}
	return false
}

// FailureReason classifies a remote failure so callers can prompt re-authentication.
type FailureReason string

const (
	ReasonTokenInvalid FailureReason = "token_invalid"
	ReasonOther        FailureReason = "other"
)

// RemoteError wraps an error returned by the source-control provider with its HTTP status.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote returned %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Classify maps an error to a FailureReason. 401 and 403 responses mean the token is unusable.
func Classify(err error) FailureReason {
	var remote *RemoteError
	if errors.As(err, &remote) {
		if remote.StatusCode == http.StatusUnauthorized || remote.StatusCode == http.StatusForbidden {
			return ReasonTokenInvalid
		}
	}
	return ReasonOther
}
