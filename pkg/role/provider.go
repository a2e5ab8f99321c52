package role

import (
	"context"
	"fmt"
	"sort"

	"github.com/jllopis/dci/pkg/errors"
)

// ActionsSuffix is appended to a capability name to obtain its provider name.
const ActionsSuffix = "Actions"

// ProviderName derives the provider identity for a capability name.
func ProviderName(capability string) string {
	return capability + ActionsSuffix
}

// Func is the erased form of a role function. self is the receiver the call
// was routed from; args are the original call arguments in order.
type Func func(ctx context.Context, self any, args ...any) (any, error)

// Action adapts a function whose receiver is typed by a capability interface
// S into a Func. The receiver is only ever asserted to S, never to a concrete
// type, so the function sees nothing beyond the capability contract.
func Action[S any](fn func(ctx context.Context, self S, args ...any) (any, error)) Func {
	return func(ctx context.Context, self any, args ...any) (any, error) {
		typed, ok := self.(S)
		if !ok {
			var zero *S
			return nil, errors.New(errors.CodeConformanceMismatch,
				fmt.Sprintf("%T does not satisfy %s", self, typeName(zero)), nil).
				WithContext("receiver", fmt.Sprintf("%T", self))
		}
		return fn(ctx, typed, args...)
	}
}

func typeName[S any](p *S) string {
	s := fmt.Sprintf("%T", p)
	if len(s) > 0 && s[0] == '*' {
		return s[1:]
	}
	return s
}

// Provider is the stateless holder of the role functions of one capability.
type Provider struct {
	name    string
	actions map[string]Func
}

// NewProvider creates an empty provider named name.
func NewProvider(name string) *Provider {
	return &Provider{
		name:    name,
		actions: make(map[string]Func),
	}
}

// ProviderFor creates an empty provider named after c.
func ProviderFor(c *Capability) *Provider {
	return NewProvider(c.ProviderName())
}

// Handle adds the role function for method. It replaces any previous
// function for the same method and returns the provider for chaining.
func (p *Provider) Handle(method string, fn Func) *Provider {
	if fn == nil {
		panic(fmt.Sprintf("role: provider %s: nil function for %s", p.name, method))
	}
	p.actions[method] = fn
	return p
}

// Name returns the provider identity.
func (p *Provider) Name() string {
	return p.name
}

// Func returns the role function for method.
func (p *Provider) Func(method string) (Func, bool) {
	fn, ok := p.actions[method]
	return fn, ok
}

// Methods returns the handled method names, sorted.
func (p *Provider) Methods() []string {
	out := make([]string, 0, len(p.actions))
	for name := range p.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
