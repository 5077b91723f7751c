// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so the CLI can decide how a failure is shown (or hidden)
// without string matching.
//
// The package supports wrapping underlying errors while maintaining error kind information.
// Kinds compare with errors.Is, so callers can test `errors.Is(err, errors.New(NotConnected, ""))`
// or use the KindOf helper.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ParseError indicates malformed command text localized to one command unit.
	ParseError Kind = "parse_error"
	// NotConnected indicates evaluation was attempted without an active connection.
	NotConnected Kind = "not_connected"
	// EvaluationError indicates the data-plane call (or its arguments) failed.
	EvaluationError Kind = "evaluation_error"
	// UnknownOperation indicates an operation name outside the dispatch table.
	UnknownOperation Kind = "unknown_operation"
	// UserCancelled indicates an interactive confirmation was declined.
	UserCancelled Kind = "user_cancelled"
	// HandshakeFailed indicates a connect attempt could not reach the target.
	HandshakeFailed Kind = "handshake_failed"
	// NotFound indicates a referenced account, database, collection or document is missing.
	NotFound Kind = "not_found"
	// ConfigInvalid indicates the configuration file failed validation.
	ConfigInvalid Kind = "config_invalid"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is an *E of the same kind.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Cancelled returns the error used when the user declines a confirmation.
func Cancelled() *E { return New(UserCancelled, "operation cancelled") }

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsUserCancelled reports whether err was caused by a declined confirmation.
func IsUserCancelled(err error) bool {
	return KindOf(err) == UserCancelled
}
