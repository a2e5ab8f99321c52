// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("lookup failed")
	e := New(CodeRoleProviderMissing, "no provider for MoneySource", cause)

	if e.Code != CodeRoleProviderMissing {
		t.Errorf("expected CodeRoleProviderMissing, got %v", e.Code)
	}
	if e.Message != "no provider for MoneySource" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if e.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContextAndAttributes(t *testing.T) {
	e := New(CodeMethodNotFound, "method not found", nil)
	e.WithContext("receiver", "*bank.Account").
		WithContext("method", "Audit").
		WithAttribute("dci.method", "Audit")

	if e.Context["receiver"] != "*bank.Account" {
		t.Errorf("expected receiver context")
	}
	if e.Context["method"] != "Audit" {
		t.Errorf("expected method context")
	}
	if e.Attributes["dci.method"] != "Audit" {
		t.Errorf("expected attribute dci.method")
	}
}

func TestWithRecoverable(t *testing.T) {
	e := New(CodeInvalidInput, "wrong participant count", nil)
	if e.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	e.WithRecoverable(true)
	if e.RecoverableString() != "true" {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "with cause",
			err:      New(CodeInternal, "journal write failed", errors.New("disk full")),
			expected: "[INTERNAL_ERROR] journal write failed: disk full",
		},
		{
			name:     "without cause",
			err:      New(CodeMethodNotFound, "Audit not declared", nil),
			expected: "[METHOD_NOT_FOUND] Audit not declared",
		},
		{
			name:     "domain",
			err:      NewDomain("Insufficient Funds", "Tried to withdraw 1000, 500 available."),
			expected: "Insufficient Funds: Tried to withdraw 1000, 500 available.",
		},
		{
			name:     "domain without detail",
			err:      NewDomain("Frozen", ""),
			expected: "Frozen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil", nil, CategoryUnknown},
		{"method not found", New(CodeMethodNotFound, "x", nil), CategoryStructural},
		{"provider missing", New(CodeRoleProviderMissing, "x", nil), CategoryStructural},
		{"implementation missing", New(CodeRoleImplementationMissing, "x", nil), CategoryStructural},
		{"arity", New(CodeArityMismatch, "x", nil), CategoryStructural},
		{"usage", New(CodeInvalidInput, "x", nil), CategoryUsage},
		{"internal", New(CodeInternal, "x", nil), CategoryUnknown},
		{"domain", NewDomain("Insufficient Funds", "x"), CategoryDomain},
		{"wrapped domain", fmt.Errorf("transfer: %w", NewDomain("Insufficient Funds", "x")), CategoryDomain},
		{"foreign", errors.New("boom"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("resolve: %w", New(CodeRoleProviderMissing, "missing", nil))
	if !Is(err, CodeRoleProviderMissing) {
		t.Fatalf("expected Is to find wrapped code")
	}
	if Is(err, CodeMethodNotFound) {
		t.Fatalf("unexpected code match")
	}
	if !errors.Is(err, &Error{Code: CodeRoleProviderMissing}) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if got := CodeOf(err); got != "ROLE_PROVIDER_MISSING" {
		t.Fatalf("unexpected code %q", got)
	}
	if got := CodeOf(NewDomain("Insufficient Funds", "")); got != "DOMAIN:Insufficient Funds" {
		t.Fatalf("unexpected domain code %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "already Error", err: New(CodeMethodNotFound, "failed", nil), expected: CodeMethodNotFound},
		{name: "generic error", err: errors.New("generic error"), expected: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := AsError(tt.err)
			if tt.expected == "" {
				if e != nil {
					t.Errorf("expected nil for nil error")
				}
				return
			}
			if e == nil {
				t.Fatalf("expected non-nil Error")
			}
			if e.Code != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, e.Code)
			}
		})
	}
}

func TestDomainError(t *testing.T) {
	d := NewDomainf("Insufficient Funds", "Tried to withdraw %d, %d available.", 1000, 500).
		WithValue("requested", 1000).
		WithValue("available", 500)

	wrapped := fmt.Errorf("role call: %w", d)
	got, ok := AsDomain(wrapped)
	if !ok {
		t.Fatalf("expected AsDomain to unwrap")
	}
	if got != d {
		t.Fatalf("expected the same DomainError instance")
	}
	if got.Values["available"] != 500 {
		t.Errorf("expected available value")
	}
	if !errors.Is(wrapped, NewDomain("Insufficient Funds", "")) {
		t.Errorf("expected errors.Is to match by kind")
	}
	if IsDomain(New(CodeInternal, "x", nil)) {
		t.Errorf("structural error must not be a domain error")
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeRoleImplementationMissing, "MoneySourceActions lacks Refund", errors.New("not registered"))
	e.WithContext("provider", "MoneySourceActions").
		WithAttribute("dci.method", "Refund").
		WithRecoverable(false)

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "ROLE_IMPLEMENTATION_MISSING" {
		t.Errorf("expected code 'ROLE_IMPLEMENTATION_MISSING', got %v", result["code"])
	}
	if result["category"] != "structural" {
		t.Errorf("expected structural category, got %v", result["category"])
	}
	if result["error"] != "not registered" {
		t.Errorf("expected cause text, got %v", result["error"])
	}
}
