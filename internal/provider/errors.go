package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies provider call failures for the orchestrator and the
// failure report surfaced to operators.
type ErrorKind string

const (
	// KindAuth covers 401/403: credentials invalid until reconfigured.
	KindAuth ErrorKind = "AUTH"
	// KindValidation covers 422: the provider rejected the payload.
	KindValidation ErrorKind = "VALIDATION"
	// KindRateLimited covers 429 after the retry budget is exhausted.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindNotFound covers 404: a stale or unknown handle id.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindProvider covers any other provider-reported 4xx/5xx.
	KindProvider ErrorKind = "PROVIDER"
	// KindTransport covers network and timeout failures where no
	// provider response was received.
	KindTransport ErrorKind = "TRANSPORT"
)

func (k ErrorKind) String() string { return string(k) }

// APIError is a classified failure from an ActiveCampaign call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("activecampaign %s error", strings.ToLower(e.Kind.String())))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the classification from an error chain. Unclassified
// errors map to KindProvider, except context/network failures which are
// transport-level.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransport
	}

	return KindProvider
}

// IsRetryable reports whether the client backoff loop should retry the call.
// Only rate-limit and transport failures are retried; everything else is
// surfaced to the caller on the first attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch KindOf(err) {
	case KindRateLimited, KindTransport:
		return true
	}
	return false
}

func classifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusUnprocessableEntity:
		return KindValidation
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindProvider
	}
}
