package shared

import (
	"fmt"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthUnavailable    = fmt.Errorf("no access credential available")
	ErrUpstreamAuthFailed = fmt.Errorf("upstream rejected refreshed credential")
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrRefreshFailed      = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken     = fmt.Errorf("no refresh token available")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrSongNotFound       = fmt.Errorf("song not found")

	// Input validation errors
	ErrInvalidRequest  = fmt.Errorf("invalid request")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// UpstreamError is a terminal non-success status from a remote provider.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error: status %d", e.Status)
	}
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Message)
}

// NewUpstreamError builds an [UpstreamError], trimming oversized bodies used as the message.
func NewUpstreamError(status int, body []byte) *UpstreamError {
	const limit = 512
	msg := strings.TrimSpace(string(body))
	if len(msg) > limit {
		msg = msg[:limit]
	}
	return &UpstreamError{Status: status, Message: msg}
}
