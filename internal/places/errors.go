package places

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when the client has no API key configured.
var ErrMissingAPIKey = errors.New("places API key is not configured")

// UpstreamError reports a non-success response from the places API, either at
// the transport level (StatusCode) or in the provider status field (Status).
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("places API status: %s", e.Status)
	}
	return fmt.Sprintf("places API error: %s returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Message is the user-facing summary of the failure.
func (e *UpstreamError) Message() string {
	if e.Status != "" {
		return "places API status: " + e.Status
	}
	return "places API error"
}
