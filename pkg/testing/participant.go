// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/role"
)

// ScriptedParticipant is a participant double. It records every call and
// answers with queued responses in order.
type ScriptedParticipant struct {
	mu           sync.Mutex
	id           string
	caps         []*role.Capability
	responses    []ScriptedResponse
	currentIndex int
	calls        []Call
	defaultError error
	onCall       func(ctx context.Context, method string, args []any) (any, error)
}

// ScriptedResponse defines a response for the scripted participant.
type ScriptedResponse struct {
	Value any
	Error error
	// Method restricts the response to calls of that method when set.
	Method string
}

// Call records one call received by a ScriptedParticipant.
type Call struct {
	Method string
	Args   []any
}

// NewScriptedParticipant creates a participant declaring caps.
func NewScriptedParticipant(caps ...*role.Capability) *ScriptedParticipant {
	return &ScriptedParticipant{
		id:   uuid.NewString(),
		caps: append([]*role.Capability(nil), caps...),
	}
}

// ID implements data.Participant.
func (p *ScriptedParticipant) ID() string {
	return p.id
}

// Capabilities implements data.Participant.
func (p *ScriptedParticipant) Capabilities() []*role.Capability {
	return p.caps
}

// AddResponse queues a value to be returned.
func (p *ScriptedParticipant) AddResponse(value any) *ScriptedParticipant {
	return p.AddScriptedResponse(ScriptedResponse{Value: value})
}

// AddErrorResponse queues an error to be returned.
func (p *ScriptedParticipant) AddErrorResponse(err error) *ScriptedParticipant {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse adds a fully configured response.
func (p *ScriptedParticipant) AddScriptedResponse(resp ScriptedResponse) *ScriptedParticipant {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithDefaultError sets the error returned when no responses are queued.
func (p *ScriptedParticipant) WithDefaultError(err error) *ScriptedParticipant {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithCallFunc answers every call with fn instead of the queue.
func (p *ScriptedParticipant) WithCallFunc(fn func(ctx context.Context, method string, args []any) (any, error)) *ScriptedParticipant {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCall = fn
	return p
}

// Call implements data.Participant.
func (p *ScriptedParticipant) Call(ctx context.Context, method string, args ...any) (any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Args: append([]any(nil), args...)})
	if fn := p.onCall; fn != nil {
		p.mu.Unlock()
		// fn may call back into this participant.
		return fn(ctx, method, args)
	}
	defer p.mu.Unlock()

	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Method != "" && resp.Method != method {
			continue
		}
		return resp.Value, resp.Error
	}
	if p.defaultError != nil {
		return nil, p.defaultError
	}
	return nil, errors.New(errors.CodeInternal,
		fmt.Sprintf("no more scripted responses (call %d to %s)", len(p.calls), method), nil)
}

// Calls returns all recorded calls.
func (p *ScriptedParticipant) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]Call, len(p.calls))
	copy(result, p.calls)
	return result
}

// LastCall returns the most recent call.
func (p *ScriptedParticipant) LastCall() *Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	call := p.calls[len(p.calls)-1]
	return &call
}

// CallCount returns the number of calls received.
func (p *ScriptedParticipant) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset clears recorded calls and rewinds the queue.
func (p *ScriptedParticipant) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.calls = p.calls[:0]
}
