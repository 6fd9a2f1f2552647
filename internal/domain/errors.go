package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// The request cannot be optimized at all; nothing was submitted.
	ErrPrecondition = errors.New("optimization precondition failed")
	// A waypoint breaks a sequence or time-window constraint and is left out.
	ErrConstraintViolation = errors.New("constraint violation")
	// A driver could not be added to the fleet and is skipped.
	ErrDriverAssembly = errors.New("driver assembly failed")
	// No access token could be obtained for the remote service.
	ErrAuthUnavailable = errors.New("[HERE authorization error] can't get access token")
)

// RemoteError is the structured error reported by the remote routing service,
// either as a failed job status or as an HTTP error body.
type RemoteError struct {
	Status        int    `json:"status,omitempty"`
	Code          string `json:"code,omitempty"`
	Title         string `json:"title,omitempty"`
	Cause         string `json:"cause,omitempty"`
	Action        string `json:"action,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (e *RemoteError) Error() string {
	msg := e.Title
	if e.Cause != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Cause
	}
	if msg == "" {
		msg = "remote computation failed"
	}
	if e.Code != "" {
		return fmt.Sprintf("remote error %s: %s", e.Code, msg)
	}
	return "remote error: " + msg
}

// Reason is the human-readable failure cause reported to callers.
func (e *RemoteError) Reason() string {
	if e.Cause != "" {
		return e.Cause
	}
	return e.Title
}

var avoidFeaturePattern = regexp.MustCompile(`(?i)avoid(?:\s+feature)?\s+['"]?([a-z][a-z0-9]*)['"]?\s+(?:is\s+)?not\s+allowed`)

// AvoidNotAllowed reports whether err is the remote rejection of an avoid
// (exclusion) feature, and which feature was rejected. When the remote
// message does not name the feature, AllAvoidFeatures is returned.
func AvoidNotAllowed(err error) (string, bool) {
	var re *RemoteError
	if !errors.As(err, &re) {
		return "", false
	}

	text := re.Title + " " + re.Cause
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "avoid") || !strings.Contains(lower, "not allowed") {
		return "", false
	}

	if m := avoidFeaturePattern.FindStringSubmatch(text); m != nil && !strings.EqualFold(m[1], "is") {
		return m[1], true
	}
	return AllAvoidFeatures, true
}

// OptimizationError aborts a whole optimization because one strategy failed.
type OptimizationError struct {
	Strategy Strategy
	Reason   string
	Err      error
}

func (e *OptimizationError) Error() string {
	return "Optimization error: " + e.Reason
}

func (e *OptimizationError) Unwrap() error { return e.Err }

// Precondition builds an ErrPrecondition with a description.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
