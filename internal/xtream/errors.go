package xtream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider-call failures so callers can branch
// without string matching. Calls are never retried here; the caller
// decides what a failure means for its unit of work.
type ErrorKind string

const (
	ErrNetwork      ErrorKind = "network"       // transport error or non-200 status
	ErrEmptyBody    ErrorKind = "empty_body"    // 200 with an empty response body
	ErrDecode       ErrorKind = "decode"        // body did not match the expected shape
	ErrAuthRejected ErrorKind = "auth_rejected" // provider answered but auth != 1
	ErrMissingField ErrorKind = "missing_field" // request could not be built (no server/user/pass)
)

// Error is the typed failure result of one provider call. Message is the
// human-readable cause (HTTP status, empty body, or decode error).
type Error struct {
	Kind    ErrorKind
	Op      string // provider action, e.g. "get_vod_streams"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xtream %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("xtream %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind of err, or "" when err is not an
// xtream.Error.
func KindOf(err error) ErrorKind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return ""
}
