package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for the request pipeline. Every error leaving the pipeline
// is one of these four; nothing escapes unclassified.
//
//   - NetworkError: transport-level failure, no response was received.
//     Recoverable; the UI should offer a retry.
//   - APIError: the backend answered with a non-2xx status (other than the
//     401s the pipeline resolves itself). Recoverable.
//   - AuthenticationError: a 401 survived one refresh-and-retry cycle, or
//     the refresh itself failed. Terminal: the session is gone and the user
//     must log in again.
//   - ValidationError: client-side input was rejected before any network
//     call was made. Shown inline at the point of input.

// NetworkError wraps a transport failure (no connectivity, timeout, DNS).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a structured non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// AuthenticationError means the session could not be (re)established.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ValidationError is client-side input rejection; it never reaches the
// network layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// --- Classification helpers for callers ---

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// APIStatus returns the backend status code when err is an APIError.
func APIStatus(err error) (int, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, true
	}
	return 0, false
}

// apiError builds an APIError from a response status and body. The backend
// reports errors as {"detail": "..."}; when the detail is absent or not a
// plain string the status text is used instead.
func apiError(status int, body []byte) *APIError {
	msg := http.StatusText(status)
	var envelope struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if s, ok := envelope.Detail.(string); ok && s != "" {
			msg = s
		}
	}
	return &APIError{Status: status, Message: msg}
}
