// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/journal"
)

// Assertions provides assertion helpers for testing.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates a new assertions helper.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed returns true if any assertion has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

func (a *Assertions) fail(format string, args ...any) {
	a.t.Helper()
	a.t.Errorf(format, args...)
	a.failed = true
}

// AssertEqual asserts that two values are equal.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.fail("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNotEqual asserts that two values are not equal.
func (a *Assertions) AssertNotEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected == actual {
		a.fail("%s: expected not %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that the value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.fail("%s: expected true", msg)
	}
}

// AssertFalse asserts that the value is false.
func (a *Assertions) AssertFalse(value bool, msg string) {
	a.t.Helper()
	if value {
		a.fail("%s: expected false", msg)
	}
}

// AssertContains asserts that s contains substr.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.fail("%s: %q does not contain %q", msg, s, substr)
	}
}

// AssertError asserts that err is not nil.
func (a *Assertions) AssertError(err error, msg string) {
	a.t.Helper()
	if err == nil {
		a.fail("%s: expected error, got nil", msg)
	}
}

// AssertNoError asserts that err is nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.fail("%s: unexpected error: %v", msg, err)
	}
}

// AssertErrorContains asserts that err contains the substring.
func (a *Assertions) AssertErrorContains(err error, substr, msg string) {
	a.t.Helper()
	if err == nil {
		a.fail("%s: expected error containing %q, got nil", msg, substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		a.fail("%s: error %q does not contain %q", msg, err.Error(), substr)
	}
}

// AssertCode asserts that err carries the runtime error code.
func (a *Assertions) AssertCode(err error, code errors.ErrorCode, msg string) {
	a.t.Helper()
	if !errors.Is(err, code) {
		a.fail("%s: expected code %s, got %q (%v)", msg, code, errors.CodeOf(err), err)
	}
}

// AssertCategory asserts the category callers would act on.
func (a *Assertions) AssertCategory(err error, category errors.Category, msg string) {
	a.t.Helper()
	if got := errors.CategoryOf(err); got != category {
		a.fail("%s: expected category %s, got %s", msg, category, got)
	}
}

// AssertDomain asserts that err is a domain error of kind.
func (a *Assertions) AssertDomain(err error, kind, msg string) {
	a.t.Helper()
	d, ok := errors.AsDomain(err)
	if !ok {
		a.fail("%s: expected domain error %q, got %v", msg, kind, err)
		return
	}
	if d.Kind != kind {
		a.fail("%s: expected domain error %q, got %q", msg, kind, d.Kind)
	}
}

// AssertLen asserts the length of a slice, map or string.
func (a *Assertions) AssertLen(value any, expected int, msg string) {
	a.t.Helper()
	var length int
	switch v := value.(type) {
	case string:
		length = len(v)
	case []any:
		length = len(v)
	case []string:
		length = len(v)
	case []Call:
		length = len(v)
	case []journal.Entry:
		length = len(v)
	case map[string]any:
		length = len(v)
	default:
		a.fail("%s: cannot get length of %T", msg, value)
		return
	}
	if length != expected {
		a.fail("%s: expected length %d, got %d", msg, expected, length)
	}
}

// CallAssertions checks the calls a scripted participant received.
type CallAssertions struct {
	*Assertions
	calls []Call
}

// AssertCalls creates assertions over the calls p has received so far.
func (a *Assertions) AssertCalls(p *ScriptedParticipant) *CallAssertions {
	a.t.Helper()
	return &CallAssertions{Assertions: a, calls: p.Calls()}
}

// HasCount asserts the number of calls.
func (c *CallAssertions) HasCount(count int) *CallAssertions {
	c.t.Helper()
	if len(c.calls) != count {
		c.fail("expected %d calls, got %d: %s", count, len(c.calls), FormatCalls(c.calls))
	}
	return c
}

// Received asserts that method was called at least once.
func (c *CallAssertions) Received(method string) *CallAssertions {
	c.t.Helper()
	for _, call := range c.calls {
		if call.Method == method {
			return c
		}
	}
	c.fail("method %q was not called: %s", method, FormatCalls(c.calls))
	return c
}

// NotReceived asserts that method was never called.
func (c *CallAssertions) NotReceived(method string) *CallAssertions {
	c.t.Helper()
	for _, call := range c.calls {
		if call.Method == method {
			c.fail("method %q was called: %s", method, FormatCalls(c.calls))
			return c
		}
	}
	return c
}

// NthHasArgs asserts the arguments of the n-th call (zero based).
func (c *CallAssertions) NthHasArgs(n int, args ...any) *CallAssertions {
	c.t.Helper()
	if n < 0 || n >= len(c.calls) {
		c.fail("no call at index %d: %s", n, FormatCalls(c.calls))
		return c
	}
	got := c.calls[n].Args
	if len(got) != len(args) {
		c.fail("call %d: expected %d args, got %v", n, len(args), got)
		return c
	}
	for i := range args {
		if got[i] != args[i] {
			c.fail("call %d arg %d: expected %v, got %v", n, i, args[i], got[i])
		}
	}
	return c
}

// ScenarioResultAssertions provides assertions for scenario results.
type ScenarioResultAssertions struct {
	*Assertions
	result *ScenarioResult
}

// AssertScenarioResult creates assertions for a scenario result.
func (a *Assertions) AssertScenarioResult(result *ScenarioResult) *ScenarioResultAssertions {
	a.t.Helper()
	if result == nil {
		a.fail("scenario result is nil")
		return &ScenarioResultAssertions{Assertions: a, result: &ScenarioResult{}}
	}
	return &ScenarioResultAssertions{Assertions: a, result: result}
}

// Succeeded asserts the scenario completed without error.
func (s *ScenarioResultAssertions) Succeeded() *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Error != nil {
		s.fail("expected success, got error: %v", s.result.Error)
	}
	return s
}

// Failed asserts the scenario failed with an error.
func (s *ScenarioResultAssertions) Failed() *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Error == nil {
		s.fail("expected failure, got success")
	}
	return s
}

// OutputEquals asserts the returned value.
func (s *ScenarioResultAssertions) OutputEquals(expected any) *ScenarioResultAssertions {
	s.t.Helper()
	if s.result.Output != expected {
		s.fail("expected output %v, got %v", expected, s.result.Output)
	}
	return s
}

// Journaled asserts the number of journal entries.
func (s *ScenarioResultAssertions) Journaled(count int) *ScenarioResultAssertions {
	s.t.Helper()
	if len(s.result.Entries) != count {
		s.fail("expected %d journal entries, got %d", count, len(s.result.Entries))
	}
	return s
}

// Quick assertion functions for common patterns

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// FormatCalls renders calls for failure messages.
func FormatCalls(calls []Call) string {
	if len(calls) == 0 {
		return "(no calls)"
	}
	parts := make([]string, len(calls))
	for i, call := range calls {
		parts[i] = fmt.Sprintf("%s%v", call.Method, call.Args)
	}
	return strings.Join(parts, ", ")
}
