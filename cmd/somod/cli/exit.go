// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitProblems = 1 // the command ran and found problems, as validate does
	ExitUsage    = 2
)

// ExitError ends the program with Code and no error line. The command
// has already written its own report.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// UsageError is a command invoked with the wrong arguments or flags.
type UsageError struct {
	message string
}

func (e *UsageError) Error() string {
	return e.message
}

// Usagef returns a [UsageError].
func Usagef(format string, args ...any) error {
	return &UsageError{message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by [Command.Execute] to a process
// exit code, and reports whether the error still needs printing.
func ExitCode(err error) (code int, report bool) {
	if err == nil {
		return ExitOK, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, false
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsage, true
	}
	return ExitFailure, true
}
