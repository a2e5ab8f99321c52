// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/dci/pkg/errors"
)

// Exit codes by error category.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitDomain     = 3
	exitStructural = 4
)

// CLIError wraps a runtime error with a user hint.
type CLIError struct {
	Err  error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(err error, hint string) *CLIError {
	return &CLIError{Err: err, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ExitCode maps the wrapped error category to a process exit status.
func (e *CLIError) ExitCode() int {
	switch errors.CategoryOf(e.Err) {
	case errors.CategoryUsage:
		return exitUsage
	case errors.CategoryDomain:
		return exitDomain
	case errors.CategoryStructural:
		return exitStructural
	default:
		return exitFailure
	}
}

type errorPayload struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
}

// PrintError prints the error as text or as a JSON object.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	payload := errorPayload{
		Code:     errors.CodeOf(e.Err),
		Category: string(errors.CategoryOf(e.Err)),
		Hint:     e.Hint,
	}
	if e.Err != nil {
		payload.Message = e.Err.Error()
	}
	if asJSON {
		data, _ := json.Marshal(map[string]errorPayload{"error": payload})
		fmt.Fprintln(w, string(data))
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", payload.Code, payload.Message)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	err := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason)
	return NewCLIError(err, "run 'dci help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	hint := "check --set keys and DCI_ environment variables"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(err, hint)
}

// WrapRunError attaches a hint matching the category of a failed command.
func WrapRunError(err error) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryDomain:
		return NewCLIError(err, "the interaction was rejected by a business rule; no balance changed")
	case errors.CategoryStructural:
		return NewCLIError(err, "run 'dci describe' to check capability wiring")
	case errors.CategoryUsage:
		return NewCLIError(err, "run 'dci help' for usage information")
	default:
		return NewCLIError(err, "")
	}
}
