// Package errs defines Tessera's error taxonomy: a small set of
// sentinel kinds that callers can test for with errors.Is, wrapping
// the underlying cause the way the rest of the codebase wraps errors
// with fmt.Errorf("...: %w", err).
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Test with errors.Is(err, errs.TransportKind), etc.
var (
	TransportKind     = errors.New("transport error")
	ParseKind         = errors.New("parse error")
	ValidationKind    = errors.New("validation error")
	StorageKind       = errors.New("storage error")
	ServiceKind       = errors.New("service error")
	ConfigurationKind = errors.New("configuration error")
	Cancelled         = errors.New("cancelled")
)

// kindError pairs a sentinel kind with a message and cause, so that
// errors.Is matches the kind while Error() still shows the detail.
type kindError struct {
	kind    error
	message string
	cause   error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *kindError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.kind
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func wrap(kind error, message string, cause error) error {
	return &kindError{kind: kind, message: message, cause: cause}
}

// Transport wraps a Fetcher network failure or timeout.
func Transport(message string, cause error) error {
	return wrap(TransportKind, message, cause)
}

// Parse wraps an HTML-parse failure or missing required structure.
func Parse(message string, cause error) error {
	return wrap(ParseKind, message, cause)
}

// Validation wraps a request that fails a precondition (e.g. a
// non-Wikipedia URL, a malformed link).
func Validation(message string, cause error) error {
	return wrap(ValidationKind, message, cause)
}

// Storage wraps a database I/O failure or constraint violation.
func Storage(message string, cause error) error {
	return wrap(StorageKind, message, cause)
}

// Service wraps an external embedding/chat service failure.
func Service(message string, cause error) error {
	return wrap(ServiceKind, message, cause)
}

// Config wraps a missing or invalid configuration value.
func Config(message string, cause error) error {
	return wrap(ConfigurationKind, message, cause)
}

// IsCancelled reports whether err represents an operator-initiated
// stop rather than a true failure.
func IsCancelled(err error) bool {
	return errors.Is(err, Cancelled)
}
