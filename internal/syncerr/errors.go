// Package syncerr defines the failure taxonomy of the synchronization engine.
package syncerr

import (
	"errors"
	"fmt"
)

// RoutingError means an event cannot be routed or resolved. Retrying the same event will not help
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string { return "routing: " + e.Reason }

func Routingf(format string, args ...any) error {
	return &RoutingError{Reason: fmt.Sprintf(format, args...)}
}

// RemoteConsistencyError means more than one remote resource matched an identifier that should be unique
type RemoteConsistencyError struct {
	ResourceType string
	Identifier   string
	Matches      int
}

func (e *RemoteConsistencyError) Error() string {
	return fmt.Sprintf("found %d %s resources in hcw@home with identifier %s", e.Matches, e.ResourceType, e.Identifier)
}

// RemoteCallError is a non-success outcome of a create, update or delete call
type RemoteCallError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to %s resource: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("failed to %s resource, status code %d", e.Operation, e.StatusCode)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// DataQualityError means source data required by the remote system is missing
type DataQualityError struct {
	Field string
	Owner string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("no %s found for %s", e.Field, e.Owner)
}

// AuthenticationError is a failed login or an unusable token
type AuthenticationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "authentication error"
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to authenticate with hcw@home: %s: %v", msg, e.Err)
	}
	return "failed to authenticate with hcw@home: " + msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Kind returns a short label for metrics and logs
func Kind(err error) string {
	if err == nil {
		return "success"
	}

	var (
		routing     *RoutingError
		consistency *RemoteConsistencyError
		remote      *RemoteCallError
		quality     *DataQualityError
		auth        *AuthenticationError
	)
	switch {
	case errors.As(err, &routing):
		return "routing"
	case errors.As(err, &consistency):
		return "consistency"
	case errors.As(err, &quality):
		return "data_quality"
	case errors.As(err, &auth):
		return "authentication"
	case errors.As(err, &remote):
		return "remote_call"
	default:
		return "transient"
	}
}

// Retryable reports whether redelivering the same event can succeed without someone fixing data or code first
func Retryable(err error) bool {
	switch Kind(err) {
	case "routing", "consistency", "data_quality":
		return false
	default:
		return true
	}
}
