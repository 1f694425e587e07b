package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for recovery purposes.
type Kind string

const (
	// KindHardware covers device faults (scanner offline, jam, capture
	// timeout). Always retriable, never corrupts pipeline state.
	KindHardware Kind = "hardware"
	// KindNetwork covers transient transport failures, retriable up to the
	// stage's policy limit.
	KindNetwork Kind = "network"
	// KindTerminal covers quota and authorization failures from remote
	// services. Further attempts in the current cycle are pointless.
	KindTerminal Kind = "terminal"
	// KindData covers malformed or untrusted payloads (bad OCR response,
	// unknown assessment). Never retried automatically.
	KindData Kind = "data"
	// KindUser covers operator input rejected before any remote call.
	KindUser Kind = "user"
	// KindInternal is the fallback for unclassified failures.
	KindInternal Kind = "internal"
)

// Error represents a typed pipeline error carrying its recovery class.
type Error struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retriable reports whether another attempt may succeed.
func (e *Error) Retriable() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindHardware || e.Kind == KindNetwork
}

// New creates a new Error instance.
func New(code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message, Err: err}
}

// Predefined errors for common pipeline scenarios.
var (
	ErrScannerFailed      = New("SCANNER_FAILED", KindHardware, "page capture failed")
	ErrCaptureTimeout     = New("CAPTURE_TIMEOUT", KindHardware, "page capture timed out")
	ErrOCRUnavailable     = New("OCR_UNAVAILABLE", KindNetwork, "extraction service unreachable")
	ErrQuotaExceeded      = New("QUOTA_EXCEEDED", KindTerminal, "extraction quota exceeded")
	ErrUnauthorizedAPI    = New("UNAUTHORIZED_API", KindTerminal, "extraction credentials rejected")
	ErrUploadFailed       = New("UPLOAD_FAILED", KindNetwork, "image upload failed")
	ErrPersistFailed      = New("PERSIST_FAILED", KindNetwork, "remote save failed")
	ErrMalformedPayload   = New("MALFORMED_PAYLOAD", KindData, "extraction payload malformed")
	ErrAssessmentNotFound = New("ASSESSMENT_NOT_FOUND", KindData, "assessment not registered for this teacher")
	ErrCollageTooSmall    = New("COLLAGE_TOO_SMALL", KindData, "no layout keeps pages legible")
	ErrNoPages            = New("NO_PAGES", KindUser, "no pages scanned yet")
	ErrInvalidInput       = New("INVALID_INPUT", KindUser, "invalid input")
	ErrInternal           = New("INTERNAL_ERROR", KindInternal, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Kind, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// KindOf reports the classification of an arbitrary error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err).Kind
}
