// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides utilities for testing contexts and role providers.
//
// This package includes:
//   - Scenario definitions for declarative interaction testing
//   - Scripted participants that record the calls they receive
//   - Assertion helpers for runtime error codes and domain errors
//
// Example usage:
//
//	scenario := testing.NewScenario("overdraft", bank.Transfer).
//	    WithParticipants(source, sink).
//	    WithArgs(1000.0).
//	    ExpectDomain(bank.KindInsufficientFunds).
//	    ExpectJournal(journal.StatusFailed)
//
//	result := scenario.Run(t)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/dci/pkg/data"
	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/interaction"
	"github.com/jllopis/dci/pkg/journal"
)

// Scenario defines one run of a use case and the conditions its outcome
// must meet.
type Scenario struct {
	name          string
	description   string
	useCase       interaction.UseCase
	participants  []data.Participant
	args          []any
	context       context.Context
	runnerOpts    []interaction.RunnerOption
	expectations  []Expectation
	setupFuncs    []func() error
	teardownFuncs []func() error
}

// Expectation defines a condition to verify after running a scenario.
type Expectation interface {
	// Check verifies the expectation against the result.
	Check(result *ScenarioResult) error
	// Description returns a human-readable description of the expectation.
	Description() string
}

// ScenarioResult contains the outcome of running a scenario.
type ScenarioResult struct {
	Output   any
	Error    error
	Entries  []journal.Entry
	Duration time.Duration
}

// NewScenario creates a new test scenario for uc.
func NewScenario(name string, uc interaction.UseCase) *Scenario {
	return &Scenario{
		name:         name,
		useCase:      uc,
		context:      context.Background(),
		expectations: make([]Expectation, 0),
	}
}

// WithDescription adds a description to the scenario.
func (s *Scenario) WithDescription(desc string) *Scenario {
	s.description = desc
	return s
}

// WithParticipants binds the ordered participants.
func (s *Scenario) WithParticipants(participants ...data.Participant) *Scenario {
	s.participants = participants
	return s
}

// WithArgs sets the business arguments.
func (s *Scenario) WithArgs(args ...any) *Scenario {
	s.args = args
	return s
}

// WithContext sets the context for the scenario.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithRunnerOptions passes extra options to the runner. The journal is
// always set by the scenario itself.
func (s *Scenario) WithRunnerOptions(opts ...interaction.RunnerOption) *Scenario {
	s.runnerOpts = append(s.runnerOpts, opts...)
	return s
}

// WithSetup adds a setup function to run before the scenario.
func (s *Scenario) WithSetup(fn func() error) *Scenario {
	s.setupFuncs = append(s.setupFuncs, fn)
	return s
}

// WithTeardown adds a teardown function to run after the scenario.
func (s *Scenario) WithTeardown(fn func() error) *Scenario {
	s.teardownFuncs = append(s.teardownFuncs, fn)
	return s
}

// Expect adds an expectation to the scenario.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectOutput matches the printed form of the initiating call result.
func (s *Scenario) ExpectOutput(matcher StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{matcher: matcher})
}

// ExpectNoError expects the interaction to succeed.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(&noErrorExpectation{})
}

// ExpectError expects an error whose message matches.
func (s *Scenario) ExpectError(matcher StringMatcher) *Scenario {
	return s.Expect(&errorExpectation{matcher: matcher})
}

// ExpectCode expects a runtime error carrying code.
func (s *Scenario) ExpectCode(code errors.ErrorCode) *Scenario {
	return s.Expect(&codeExpectation{code: code})
}

// ExpectDomain expects a domain error of the given kind.
func (s *Scenario) ExpectDomain(kind string) *Scenario {
	return s.Expect(&domainExpectation{kind: kind})
}

// ExpectJournal expects exactly one journal entry with status.
func (s *Scenario) ExpectJournal(status string) *Scenario {
	return s.Expect(&journalExpectation{status: status})
}

// ExpectState runs check after the interaction, e.g. to compare balances.
func (s *Scenario) ExpectState(description string, check func() error) *Scenario {
	return s.Expect(&stateExpectation{description: description, check: check})
}

// ExpectMaxDuration expects the scenario to complete within the given duration.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(&maxDurationExpectation{max: d})
}

// Run executes the scenario through a Runner that journals into memory.
func (s *Scenario) Run(t *testing.T) *ScenarioResult {
	t.Helper()

	for _, setup := range s.setupFuncs {
		if err := setup(); err != nil {
			t.Fatalf("scenario %q setup failed: %v", s.name, err)
		}
	}

	defer func() {
		for _, teardown := range s.teardownFuncs {
			if err := teardown(); err != nil {
				t.Errorf("scenario %q teardown failed: %v", s.name, err)
			}
		}
	}()

	store := journal.NewMemoryStore()
	opts := append(append([]interaction.RunnerOption{}, s.runnerOpts...), interaction.WithJournal(store))
	runner := interaction.NewRunner(opts...)

	start := time.Now()
	output, err := runner.Run(s.context, s.useCase, s.participants, s.args...)
	duration := time.Since(start)

	entries, listErr := store.List(context.Background(), journal.Filter{})
	if listErr != nil {
		t.Fatalf("scenario %q journal: %v", s.name, listErr)
	}

	return &ScenarioResult{
		Output:   output,
		Error:    err,
		Entries:  entries,
		Duration: duration,
	}
}

// Assert checks all expectations and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()

	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", scenario.name, exp.Description(), err)
		}
	}
}

// StringMatcher defines how to match strings in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains returns a matcher that checks if the string contains the substring.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals returns a matcher that checks exact string equality.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex returns a matcher that checks against a regular expression.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: pattern}
}

// HasPrefix returns a matcher that checks if the string has the given prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

type containsMatcher struct {
	substr string
}

func (m *containsMatcher) Match(s string) bool {
	return strings.Contains(s, m.substr)
}

func (m *containsMatcher) Description() string {
	return fmt.Sprintf("contains %q", m.substr)
}

type equalsMatcher struct {
	expected string
}

func (m *equalsMatcher) Match(s string) bool {
	return s == m.expected
}

func (m *equalsMatcher) Description() string {
	return fmt.Sprintf("equals %q", m.expected)
}

type regexMatcher struct {
	pattern string
}

func (m *regexMatcher) Match(s string) bool {
	re, err := regexp.Compile(m.pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func (m *regexMatcher) Description() string {
	return fmt.Sprintf("matches /%s/", m.pattern)
}

type prefixMatcher struct {
	prefix string
}

func (m *prefixMatcher) Match(s string) bool {
	return strings.HasPrefix(s, m.prefix)
}

func (m *prefixMatcher) Description() string {
	return fmt.Sprintf("has prefix %q", m.prefix)
}

type outputExpectation struct {
	matcher StringMatcher
}

func (e *outputExpectation) Check(r *ScenarioResult) error {
	out := fmt.Sprint(r.Output)
	if !e.matcher.Match(out) {
		return fmt.Errorf("output %q does not match: %s", out, e.matcher.Description())
	}
	return nil
}

func (e *outputExpectation) Description() string {
	return "output " + e.matcher.Description()
}

type noErrorExpectation struct{}

func (e *noErrorExpectation) Check(r *ScenarioResult) error {
	if r.Error != nil {
		return fmt.Errorf("unexpected error: %v", r.Error)
	}
	return nil
}

func (e *noErrorExpectation) Description() string {
	return "no error"
}

type errorExpectation struct {
	matcher StringMatcher
}

func (e *errorExpectation) Check(r *ScenarioResult) error {
	if r.Error == nil {
		return fmt.Errorf("expected error, got nil")
	}
	if !e.matcher.Match(r.Error.Error()) {
		return fmt.Errorf("error %q does not match: %s", r.Error.Error(), e.matcher.Description())
	}
	return nil
}

func (e *errorExpectation) Description() string {
	return "error " + e.matcher.Description()
}

type codeExpectation struct {
	code errors.ErrorCode
}

func (e *codeExpectation) Check(r *ScenarioResult) error {
	if !errors.Is(r.Error, e.code) {
		return fmt.Errorf("expected code %s, got %q", e.code, errors.CodeOf(r.Error))
	}
	return nil
}

func (e *codeExpectation) Description() string {
	return fmt.Sprintf("error code %s", e.code)
}

type domainExpectation struct {
	kind string
}

func (e *domainExpectation) Check(r *ScenarioResult) error {
	d, ok := errors.AsDomain(r.Error)
	if !ok {
		return fmt.Errorf("expected domain error %q, got %v", e.kind, r.Error)
	}
	if d.Kind != e.kind {
		return fmt.Errorf("expected domain error %q, got %q", e.kind, d.Kind)
	}
	return nil
}

func (e *domainExpectation) Description() string {
	return fmt.Sprintf("domain error %q", e.kind)
}

type journalExpectation struct {
	status string
}

func (e *journalExpectation) Check(r *ScenarioResult) error {
	if len(r.Entries) != 1 {
		return fmt.Errorf("expected 1 journal entry, got %d", len(r.Entries))
	}
	if r.Entries[0].Status != e.status {
		return fmt.Errorf("expected journal status %q, got %q", e.status, r.Entries[0].Status)
	}
	return nil
}

func (e *journalExpectation) Description() string {
	return fmt.Sprintf("journal status %q", e.status)
}

type stateExpectation struct {
	description string
	check       func() error
}

func (e *stateExpectation) Check(*ScenarioResult) error {
	return e.check()
}

func (e *stateExpectation) Description() string {
	return e.description
}

type maxDurationExpectation struct {
	max time.Duration
}

func (e *maxDurationExpectation) Check(r *ScenarioResult) error {
	if r.Duration > e.max {
		return fmt.Errorf("took %v, expected at most %v", r.Duration, e.max)
	}
	return nil
}

func (e *maxDurationExpectation) Description() string {
	return fmt.Sprintf("completes within %v", e.max)
}
