package ply

import "fmt"

// FormatError reports a malformed or truncated container. Decoding stops
// at the first FormatError; no partial mesh is returned.
type FormatError struct {
	// Line is the 1-based header line, or 0 when the problem is in the body
	Line int

	// Reason describes what was wrong
	Reason string

	// Err is the underlying cause, if any
	Err error
}

func (e *FormatError) Error() string {
	msg := "ply: " + e.Reason
	if e.Line > 0 {
		msg = fmt.Sprintf("ply: header line %d: %s", e.Line, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErr(line int, reason string, err error) *FormatError {
	return &FormatError{Line: line, Reason: reason, Err: err}
}
