// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package data provides the base embedded by every participant type.
//
// A concrete data type embeds *Object, keeps its intrinsic state and
// primitive operations as ordinary Go methods and declares the ordered
// capabilities it conforms to. Calls made by name through Call are served
// by the type's own members first and forwarded to the dispatcher otherwise.
//
//	type Account struct {
//		*data.Object
//		balance float64
//	}
//
//	func NewAccount(d *dispatch.Dispatcher, balance float64) *Account {
//		a := &Account{balance: balance}
//		a.Object = data.New(a, d, MoneySource, MoneySink)
//		return a
//	}
package data

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jllopis/dci/pkg/dispatch"
	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/role"
)

// Member is implemented by concrete types that serve some methods by name
// themselves. A method returned here always wins over role dispatch.
type Member interface {
	Member(method string) (role.Func, bool)
}

// Participant is what a context binds: an identified object that declares
// capabilities and accepts calls by name.
type Participant interface {
	dispatch.Declarer
	ID() string
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// Object carries identity, declared capabilities and the dispatch hook of a
// data object. Its zero value is not usable; build it with New.
type Object struct {
	id         string
	self       any
	caps       []*role.Capability
	dispatcher *dispatch.Dispatcher

	mu sync.Mutex

	// ownMu guards own only. mu is held across whole interactions, so
	// Call cannot take it.
	ownMu sync.RWMutex
	own   map[string]role.Func
}

// New builds the base for self, the outer concrete value, declaring caps in
// resolution order. The order is fixed for the lifetime of the object.
func New(self any, d *dispatch.Dispatcher, caps ...*role.Capability) *Object {
	if self == nil {
		panic("data: New called with nil self")
	}
	return &Object{
		id:         uuid.NewString(),
		self:       self,
		caps:       append([]*role.Capability(nil), caps...),
		dispatcher: d,
		own:        make(map[string]role.Func),
	}
}

// ID returns the object identity.
func (o *Object) ID() string {
	return o.id
}

// Capabilities returns the declared capabilities in resolution order.
func (o *Object) Capabilities() []*role.Capability {
	return o.caps
}

// Conforms reports whether the object declares c.
func (o *Object) Conforms(c *role.Capability) bool {
	for _, declared := range o.caps {
		if declared == c {
			return true
		}
	}
	return false
}

// Define adds a method the object serves itself. It takes precedence over
// role dispatch and over Member. Safe to call while other goroutines Call.
func (o *Object) Define(method string, fn role.Func) {
	if fn == nil {
		panic(fmt.Sprintf("data: nil function for %s", method))
	}
	o.ownMu.Lock()
	o.own[method] = fn
	o.ownMu.Unlock()
}

// Call invokes method by name: own members first, then the dispatcher
// with the outer object as receiver.
func (o *Object) Call(ctx context.Context, method string, args ...any) (any, error) {
	o.ownMu.RLock()
	fn, ok := o.own[method]
	o.ownMu.RUnlock()
	if ok {
		return fn(ctx, o.self, args...)
	}
	if m, ok := o.self.(Member); ok {
		if fn, ok := m.Member(method); ok {
			return fn(ctx, o.self, args...)
		}
	}
	if o.dispatcher == nil {
		return nil, errors.Newf(errors.CodeMethodNotFound,
			"%T has no method %s and no dispatcher", o.self, method).
			WithContext("receiver", fmt.Sprintf("%T", o.self)).
			WithContext("method", method)
	}
	receiver, ok := o.self.(dispatch.Declarer)
	if !ok {
		receiver = o
	}
	return o.dispatcher.Resolve(ctx, receiver, method, args...)
}

// Lock acquires the object's mutex. Intrinsic state is not synchronized by
// primitives; callers that share an object across goroutines hold this
// lock for a whole interaction.
func (o *Object) Lock() {
	o.mu.Lock()
}

// Unlock releases the object's mutex.
func (o *Object) Unlock() {
	o.mu.Unlock()
}
