package vcs

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a revset resolves to no revisions.
type NotFoundError struct {
	Revset string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("revset %q not found", e.Revset)
}

// AmbiguousRevsetError is returned when a revset that must be unique
// resolves to more than one revision.
type AmbiguousRevsetError struct {
	Revset string
}

func (e *AmbiguousRevsetError) Error() string {
	return fmt.Sprintf("revset %q resolves to multiple revisions", e.Revset)
}

// ProtocolError indicates jj produced output this adapter could not
// parse — a schema mismatch between jjq and the installed jj version.
type ProtocolError struct {
	Op     string
	Output string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unparseable jj output for %s: %q", e.Op, e.Output)
}

// ToolError wraps a non-zero, non-empty-revset jj exit.
type ToolError struct {
	Args   []string
	Stderr string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("jj %v failed: %s", e.Args, e.Stderr)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsAmbiguous reports whether err is (or wraps) an AmbiguousRevsetError.
func IsAmbiguous(err error) bool {
	var e *AmbiguousRevsetError
	return errors.As(err, &e)
}
