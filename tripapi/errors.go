package tripapi

import (
	"errors"
	"fmt"
)

// Precondition errors, returned before any I/O.
var (
	ErrEmptyPrompt  = errors.New("tripapi: prompt is empty")
	ErrEmptyMessage = errors.New("tripapi: message is empty")
)

// FailureKind classifies a failed service call.
type FailureKind string

const (
	// FailureTransport means the request never produced a response.
	FailureTransport FailureKind = "transport"
	// FailureStatus means the service answered with a non-2xx status.
	FailureStatus FailureKind = "status"
	// FailureMalformed means the response body was not JSON.
	FailureMalformed FailureKind = "malformed"
	// FailureInvalid means the body was JSON but lacked the expected document.
	FailureInvalid FailureKind = "invalid"
)

// String returns the string representation of the kind.
func (k FailureKind) String() string {
	return string(k)
}

// CallError is a failed service call. Message is the human-readable text
// shown to users: the response body when the service sent one.
type CallError struct {
	Op         string
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *CallError) Error() string {
	return e.Message
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// FailureKindOf returns the kind of a *CallError in err's chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

func transportError(op string, err error) *CallError {
	return &CallError{
		Op:      op,
		Kind:    FailureTransport,
		Message: fmt.Sprintf("%s request failed: %v", op, err),
		Err:     err,
	}
}

func statusError(op string, code int, body string) *CallError {
	msg := body
	if msg == "" {
		msg = fmt.Sprintf("%s API failed (%d)", op, code)
	}
	return &CallError{Op: op, Kind: FailureStatus, StatusCode: code, Message: msg}
}

func malformedError(op string, err error) *CallError {
	return &CallError{
		Op:      op,
		Kind:    FailureMalformed,
		Message: fmt.Sprintf("%s API returned malformed JSON", op),
		Err:     err,
	}
}

func invalidError(op, msg string) *CallError {
	return &CallError{Op: op, Kind: FailureInvalid, Message: msg}
}
