// Package cokerr implements the error taxonomy used throughout this
// module: a small fixed set of kinds (Open, Read, Seek, Write, Format)
// rather than a type per failure mode, each carrying a stack of
// human-readable context frames, mirroring the reference tool's
// Common::StackException and its kOpenError/kReadError/kSeekError/
// kWriteError sentinels.
package cokerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Open means a file or archive member could not be opened.
	Open Kind = iota
	// Read means a short read, or a read past the data a caller declared.
	Read
	// Seek means a seek past the end of a stream.
	Seek
	// Write means the output sink refused a write.
	Write
	// Format means the bytes read do not parse as the format they claim
	// to be (bad magic, declared size too small, invalid opcode, ...).
	Format
)

// Error lets a bare Kind itself satisfy the error interface, so it can be
// used directly as the target of errors.Is(err, cokerr.Format).
func (k Kind) Error() string {
	return k.String()
}

func (k Kind) String() string {
	switch k {
	case Open:
		return "open error"
	case Read:
		return "read error"
	case Seek:
		return "seek error"
	case Write:
		return "write error"
	case Format:
		return "format error"
	default:
		return "error"
	}
}

// Error is a Kind plus a list of context frames: Wrap puts its new frame in
// front of the wrapped error's frames, and Add appends one at the end. It
// implements errors.Is against its Kind and errors.Unwrap against the
// wrapped cause, if any.
type Error struct {
	Kind    Kind
	frames  []string
	wrapped error
}

// New creates an Error of the given kind with one context frame.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, frames: []string{fmt.Sprintf(format, args...)}}
}

// Wrap creates an Error of the given kind, adding one context frame on top
// of cause. If cause is itself a *cokerr.Error, its frames are carried
// forward so a deeply nested failure prints a full breadcrumb trail; its
// Kind is replaced by kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := &Error{Kind: kind, frames: []string{fmt.Sprintf(format, args...)}, wrapped: cause}

	var inner *Error
	if errors.As(cause, &inner) {
		e.frames = append(e.frames, inner.frames...)
		e.wrapped = inner.wrapped
	}

	return e
}

// Add pushes one more context frame onto an existing error, for cases where
// a lower layer wants to annotate an error as it propagates without
// changing its Kind.
func (e *Error) Add(format string, args ...any) *Error {
	e.frames = append(e.frames, fmt.Sprintf(format, args...))
	return e
}

func (e *Error) Error() string {
	return strings.Join(e.frames, ": ")
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is reports whether target is the same Kind as e, so callers can write
// errors.Is(err, cokerr.Format) to test the taxonomy without a type switch.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}
