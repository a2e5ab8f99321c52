// Package dispatch routes role method calls from data objects to the
// providers registered for their declared capabilities.
package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/role"
)

// Registry binds capabilities to their providers.
// Thread-safe for concurrent access.
type Registry struct {
	mu sync.RWMutex

	// byName maps provider name -> provider
	byName map[string]*role.Provider

	// capabilities maps capability name -> capability
	capabilities map[string]*role.Capability

	// generation changes on every mutation so resolution caches can
	// discard entries computed against an older wiring.
	generation atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:       make(map[string]*role.Provider),
		capabilities: make(map[string]*role.Capability),
	}
}

// Register binds provider to capability. The provider must be named after
// the capability (capability name + "Actions") and may only handle methods
// the capability declares. The provider must not be modified afterwards.
func (r *Registry) Register(capability *role.Capability, provider *role.Provider) error {
	if capability == nil {
		return errors.New(errors.CodeRegistration, "capability is nil", nil)
	}
	if provider == nil {
		return errors.Newf(errors.CodeRegistration, "provider for %s is nil", capability.Name()).
			WithContext("capability", capability.Name())
	}
	if want := capability.ProviderName(); provider.Name() != want {
		return errors.Newf(errors.CodeRegistration,
			"provider %q does not match capability %s, expected %q", provider.Name(), capability.Name(), want).
			WithContext("capability", capability.Name()).
			WithContext("provider", provider.Name())
	}
	var undeclared []string
	for _, method := range provider.Methods() {
		if !capability.Declares(method) {
			undeclared = append(undeclared, method)
		}
	}
	if len(undeclared) > 0 {
		return errors.Newf(errors.CodeRegistration,
			"provider %s handles methods not declared by %s: %s",
			provider.Name(), capability.Name(), strings.Join(undeclared, ", ")).
			WithContext("capability", capability.Name()).
			WithContext("methods", undeclared)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.capabilities[capability.Name()]; ok && existing != capability {
		return errors.Newf(errors.CodeRegistration,
			"another capability named %s is already registered", capability.Name()).
			WithContext("capability", capability.Name())
	}
	if _, exists := r.byName[provider.Name()]; exists {
		return errors.Newf(errors.CodeRegistration, "provider %q already registered", provider.Name()).
			WithContext("provider", provider.Name())
	}

	r.byName[provider.Name()] = provider
	r.capabilities[capability.Name()] = capability
	r.generation.Add(1)
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package initialization.
func (r *Registry) MustRegister(capability *role.Capability, provider *role.Provider) {
	if err := r.Register(capability, provider); err != nil {
		panic(err)
	}
}

// Unregister removes the provider bound to capability.
func (r *Registry) Unregister(capability *role.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := capability.ProviderName()
	if _, ok := r.byName[name]; !ok {
		return errors.Newf(errors.CodeRoleProviderMissing, "provider %q not registered", name).
			WithContext("provider", name)
	}
	delete(r.byName, name)
	delete(r.capabilities, capability.Name())
	r.generation.Add(1)
	return nil
}

// Provider returns the provider registered under name.
func (r *Registry) Provider(name string) (*role.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	return p, ok
}

// ProviderFor returns the provider bound to capability by the naming convention.
func (r *Registry) ProviderFor(capability *role.Capability) (*role.Provider, bool) {
	return r.Provider(capability.ProviderName())
}

// Capabilities returns the registered capabilities sorted by name.
func (r *Registry) Capabilities() []*role.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*role.Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Generation returns a counter that changes whenever the wiring changes.
func (r *Registry) Generation() uint64 {
	return r.generation.Load()
}

// WiringIssue describes a capability that cannot serve all of its methods.
type WiringIssue struct {
	Capability string
	Provider   string
	Missing    []string // declared methods without a role function
	NoProvider bool
}

func (w WiringIssue) String() string {
	if w.NoProvider {
		return fmt.Sprintf("%s: provider %s not registered", w.Capability, w.Provider)
	}
	return fmt.Sprintf("%s: provider %s lacks %s", w.Capability, w.Provider, strings.Join(w.Missing, ", "))
}

// Validate checks that every given capability has a provider handling all
// of its declared methods. Capabilities without role methods need no
// provider. It returns one issue per incomplete capability, in input order.
func (r *Registry) Validate(capabilities ...*role.Capability) []WiringIssue {
	var issues []WiringIssue
	for _, c := range capabilities {
		methods := c.Methods()
		if len(methods) == 0 {
			continue
		}
		p, ok := r.ProviderFor(c)
		if !ok {
			issues = append(issues, WiringIssue{Capability: c.Name(), Provider: c.ProviderName(), NoProvider: true})
			continue
		}
		var missing []string
		for _, m := range methods {
			if _, ok := p.Func(m.Name); !ok {
				missing = append(missing, m.Name)
			}
		}
		if len(missing) > 0 {
			issues = append(issues, WiringIssue{Capability: c.Name(), Provider: p.Name(), Missing: missing})
		}
	}
	return issues
}
