// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package rcferrors defines the error taxonomy shared by the point store,
// error handler and forest state mapper.
package rcferrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can branch with errors.Is against the
// Err* sentinel values at the end of this file instead of string-matching
// messages.
type Kind int

const (
	// InvalidArgument marks a violated precondition: bad dimensions,
	// non-positive horizons, an out-of-range percentile, a negative index.
	InvalidArgument Kind = iota + 1
	// InvalidHandle marks a handle that is out of range or currently free.
	InvalidHandle
	// Capacity marks a point store that is full after compaction.
	Capacity
	// Misaligned marks a serialized payload whose declared lengths are
	// inconsistent.
	Misaligned
	// MissingState marks a mapper asked to rebuild without a required piece
	// of state.
	MissingState
	// UnsupportedVersion marks a state descriptor whose version string is
	// not recognized by this build.
	UnsupportedVersion
	// IllegalState marks an internal consistency assertion failure; it
	// indicates a bug in this module, not caller misuse.
	IllegalState
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidHandle:
		return "InvalidHandle"
	case Capacity:
		return "Capacity"
	case Misaligned:
		return "Misaligned"
	case MissingState:
		return "MissingState"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case IllegalState:
		return "IllegalState"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every exported operation in
// this module. It carries a Kind for programmatic dispatch and wraps an
// optional cause with a stack trace captured at construction time.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, ErrSomeKind) work by comparing Kind against a
// target *Error such as the Err* sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind with a stack trace attached.
func New(kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: msg, cause: errors.New(msg)}
}

// Wrap attaches kind and a message to an existing cause, preserving it for
// errors.Unwrap/errors.As while adding a stack trace captured at this call.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: msg, cause: errors.Wrap(cause, msg)}
}

// sentinel values usable with errors.Is(err, rcferrors.ErrInvalidArgument).
var (
	ErrInvalidArgument    = &Error{Kind: InvalidArgument}
	ErrInvalidHandle      = &Error{Kind: InvalidHandle}
	ErrCapacity           = &Error{Kind: Capacity}
	ErrMisaligned         = &Error{Kind: Misaligned}
	ErrMissingState       = &Error{Kind: MissingState}
	ErrUnsupportedVersion = &Error{Kind: UnsupportedVersion}
	ErrIllegalState       = &Error{Kind: IllegalState}
)
