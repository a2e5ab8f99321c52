// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package role declares capabilities and the stateless providers that
// implement their role methods.
//
// A capability is a named contract a data object declares conformance to.
// Its signature set lists the role methods that become callable on any
// conforming object. A provider holds one function per role method and is
// bound to exactly one capability by the naming convention
// ProviderName(capability) == capability name + "Actions".
package role

import (
	"fmt"
	"strings"
)

// Variadic marks a signature that accepts any number of arguments.
const Variadic = -1

// Signature describes one role method: its name and parameter arity,
// not counting the receiver.
type Signature struct {
	Name  string
	Arity int
}

// Method builds a Signature.
func Method(name string, arity int) Signature {
	return Signature{Name: name, Arity: arity}
}

// Accepts reports whether n call arguments satisfy the signature.
func (s Signature) Accepts(n int) bool {
	return s.Arity == Variadic || s.Arity == n
}

// String renders the signature as name/arity.
func (s Signature) String() string {
	if s.Arity == Variadic {
		return s.Name + "/*"
	}
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}

// Capability is an immutable, named set of role method signatures.
// Capabilities are declared once, typically as package level variables,
// and compared by identity.
type Capability struct {
	name    string
	methods []Signature
	index   map[string]int
}

// NewCapability declares a capability. It panics on an empty name, an
// invalid identifier or a duplicated method name, since declarations are
// static program text.
func NewCapability(name string, methods ...Signature) *Capability {
	name = strings.TrimSpace(name)
	if !isIdentifier(name) {
		panic(fmt.Sprintf("role: invalid capability name %q", name))
	}
	c := &Capability{
		name:    name,
		methods: make([]Signature, 0, len(methods)),
		index:   make(map[string]int, len(methods)),
	}
	for _, m := range methods {
		if !isIdentifier(m.Name) {
			panic(fmt.Sprintf("role: capability %s: invalid method name %q", name, m.Name))
		}
		if m.Arity < Variadic {
			panic(fmt.Sprintf("role: capability %s: invalid arity %d for %s", name, m.Arity, m.Name))
		}
		if _, dup := c.index[m.Name]; dup {
			panic(fmt.Sprintf("role: capability %s declares %s twice", name, m.Name))
		}
		c.index[m.Name] = len(c.methods)
		c.methods = append(c.methods, m)
	}
	return c
}

// Name returns the capability name.
func (c *Capability) Name() string {
	return c.name
}

// Methods returns a copy of the signature set in declaration order.
func (c *Capability) Methods() []Signature {
	return append([]Signature(nil), c.methods...)
}

// Lookup returns the signature named method.
func (c *Capability) Lookup(method string) (Signature, bool) {
	i, ok := c.index[method]
	if !ok {
		return Signature{}, false
	}
	return c.methods[i], true
}

// Declares reports whether method is part of the signature set.
func (c *Capability) Declares(method string) bool {
	_, ok := c.index[method]
	return ok
}

// ProviderName returns the provider identity bound to this capability.
func (c *Capability) ProviderName() string {
	return ProviderName(c.name)
}

// String implements fmt.Stringer.
func (c *Capability) String() string {
	return c.name
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
