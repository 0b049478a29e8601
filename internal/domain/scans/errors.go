package scans

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies why a scan request failed.
type Kind string

const (
	KindBadRequest       Kind = "bad_request"
	KindCredentialURL    Kind = "credential_url"
	KindCloneFailed      Kind = "clone_failed"
	KindScanFailed       Kind = "scan_failed"
	KindScanOutputFormat Kind = "scan_output_format"
	KindUnexpected       Kind = "unexpected"
)

// ErrNotFound is returned by repositories when a scan does not exist.
var ErrNotFound = errors.New("scan not found")

// Diagnostics is the captured output of a failed child process.
type Diagnostics struct {
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// Error is the single error type returned by the scan service.
type Error struct {
	Kind        Kind
	Message     string
	Diagnostics *Diagnostics
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON renders the client-facing form: kind, message and the
// diagnostics fields inline. The wrapped cause is internal and left out.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Message string `json:"message"`
		*Diagnostics
	}{e.Kind, e.Message, e.Diagnostics})
}

// NewError builds an Error without diagnostics.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}
