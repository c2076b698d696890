// Package errs defines the error taxonomy shared by the storage, chat and backup layers
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how it must be recovered
type Kind int

const (
	// StorageFailure backend read/write error, recovered with the caller's default
	StorageFailure Kind = iota + 1
	// DecodeFailure malformed JSON in storage or in a backup document
	DecodeFailure
	// MissingCredential no API key for the selected provider
	MissingCredential
	// ProviderError non-2xx response or transport failure
	ProviderError
	// ValidationFailure input rejected before any state mutation
	ValidationFailure
)

func (k Kind) String() string {
	switch k {
	case StorageFailure:
		return "STORAGE_FAILURE"
	case DecodeFailure:
		return "DECODE_FAILURE"
	case MissingCredential:
		return "MISSING_CREDENTIAL"
	case ProviderError:
		return "PROVIDER_ERROR"
	case ValidationFailure:
		return "VALIDATION_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Sentinels usable with errors.Is
var (
	ErrStorage    = &Error{Kind: StorageFailure}
	ErrDecode     = &Error{Kind: DecodeFailure}
	ErrCredential = &Error{Kind: MissingCredential}
	ErrProvider   = &Error{Kind: ProviderError}
	ErrValidation = &Error{Kind: ValidationFailure}
)

// Error classified error with operation context
type Error struct {
	Kind    Kind
	Op      string // operation name
	Message string // human-readable description
	Err     error  // wrapped cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a classified error wrapping a cause
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage returns the message meant for the chat log, without the op prefix
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
