// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"errors"
	"fmt"
)

// Error kinds. Every composition error wraps exactly one of these.
var (
	// ErrStructural is a keyword or value in an illegal position or of
	// an illegal shape.
	ErrStructural = errors.New("structural error")

	// ErrUnresolvedReference is an extend, ref, or depends-on target
	// that does not exist.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrAccessDenied is a reference blocked by the target's declared
	// access policy.
	ErrAccessDenied = errors.New("access denied")

	// ErrTypeMismatch is an extension across resources of different
	// types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrMissingArtifact is a function, middleware, or layer input that
	// is absent on disk.
	ErrMissingArtifact = errors.New("missing artifact")
)

// Error is a composition error of a known kind. The message is the
// user-facing text; the kind is only visible through errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf formats a message and tags it with kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
