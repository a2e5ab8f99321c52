// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package interaction implements contexts: stateless use cases that bind
// participants and start an interaction with one role call.
package interaction

import (
	"context"
	"fmt"

	"github.com/jllopis/dci/pkg/data"
	"github.com/jllopis/dci/pkg/errors"
)

// UseCase describes a context. Execute calls Method on the initiating
// participant, passing the remaining participants in order followed by the
// business arguments. A UseCase holds no state between calls.
type UseCase struct {
	// Name identifies the use case in logs, spans and the journal.
	Name string

	// Participants is the exact participant count. Zero accepts any
	// non-empty list.
	Participants int

	// Initiator is the index of the participant receiving the first call.
	Initiator int

	// Method is the role method that starts the interaction.
	Method string
}

// Validate checks the participant list against the use case before any
// call is made.
func (u UseCase) Validate(participants []data.Participant) error {
	if u.Method == "" {
		return u.usage("use case %q has no initiating method", u.Name)
	}
	if len(participants) == 0 {
		return u.usage("use case %q needs at least one participant", u.Name)
	}
	if u.Participants > 0 && len(participants) != u.Participants {
		return u.usage("use case %q expects %d participants, got %d", u.Name, u.Participants, len(participants)).
			WithContext("expected", u.Participants).
			WithContext("got", len(participants))
	}
	if u.Initiator < 0 || u.Initiator >= len(participants) {
		return u.usage("use case %q initiator index %d out of range", u.Name, u.Initiator)
	}
	for i, p := range participants {
		if p == nil {
			return u.usage("use case %q participant %d is nil", u.Name, i).
				WithContext("index", i)
		}
	}
	return nil
}

// Execute runs the use case. Errors from the call chain are returned as-is.
func (u UseCase) Execute(ctx context.Context, participants []data.Participant, args ...any) (any, error) {
	if err := u.Validate(participants); err != nil {
		return nil, err
	}
	initiator := participants[u.Initiator]
	return initiator.Call(ctx, u.Method, u.callArgs(participants, args)...)
}

func (u UseCase) callArgs(participants []data.Participant, args []any) []any {
	out := make([]any, 0, len(participants)-1+len(args))
	for i, p := range participants {
		if i == u.Initiator {
			continue
		}
		out = append(out, p)
	}
	return append(out, args...)
}

func (u UseCase) usage(format string, args ...any) *errors.Error {
	return errors.New(errors.CodeInvalidInput, fmt.Sprintf(format, args...), nil).
		WithContext("usecase", u.Name)
}
