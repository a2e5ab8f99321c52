package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/role"
	"github.com/jllopis/dci/pkg/telemetry"
)

// Declarer is implemented by every receiver the dispatcher can route for.
// The returned order is the resolution order and must not change over the
// lifetime of the receiver.
type Declarer interface {
	Capabilities() []*role.Capability
}

// Resolution is the outcome of resolving a method against a receiver.
type Resolution struct {
	Capability *role.Capability
	Provider   *role.Provider
	Signature  role.Signature
	Func       role.Func
}

type cacheEntry struct {
	generation uint64
	resolution Resolution
	err        error
}

// Dispatcher resolves role methods and forwards calls to their providers.
// Safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	cache    atomic.Bool
	entries  sync.Map // key -> cacheEntry
	group    singleflight.Group
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.DispatchMetrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCache enables or disables the resolution cache. Enabled by default.
func WithCache(enabled bool) Option {
	return func(d *Dispatcher) {
		d.cache.Store(enabled)
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithMetrics records dispatch metrics.
func WithMetrics(metrics *telemetry.DispatchMetrics) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// New creates a dispatcher over registry.
func New(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		tracer:   telemetry.Tracer(),
	}
	d.cache.Store(true)
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = telemetry.Component(nil, "dispatcher")
	}
	return d
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Resolve routes method to the first capability declared by receiver whose
// signature set contains it and invokes the provider function with receiver
// followed by args. Whatever the provider returns is returned unchanged.
func (d *Dispatcher) Resolve(ctx context.Context, receiver Declarer, method string, args ...any) (any, error) {
	if receiver == nil {
		return nil, errNilReceiver(method)
	}
	receiverType := fmt.Sprintf("%T", receiver)
	ctx, span := d.tracer.Start(ctx, "dci.dispatch "+method,
		trace.WithAttributes(telemetry.DispatchAttributes(receiverType, method, len(args))...))

	res, hit, err := d.lookup(receiver, receiverType, method)
	d.metrics.RecordCache(ctx, hit)
	span.SetAttributes(telemetry.ResolutionAttributes(capabilityName(res.Capability), providerName(res.Provider), hit)...)
	if err == nil && !res.Signature.Accepts(len(args)) {
		err = errors.Newf(errors.CodeArityMismatch, "%s.%s expects %d arguments, got %d",
			res.Capability.Name(), method, res.Signature.Arity, len(args)).
			WithContext("receiver", receiverType).
			WithContext("method", method)
	}
	if err != nil {
		d.logger.WarnContext(ctx, "role dispatch failed",
			slog.String("receiver", receiverType),
			slog.String("method", method),
			slog.String("code", errors.CodeOf(err)))
		d.metrics.RecordDispatch(ctx, capabilityName(res.Capability), method, err, 0)
		telemetry.EndSpan(span, err)
		return nil, err
	}

	d.logger.DebugContext(ctx, "role resolved",
		slog.String("receiver", receiverType),
		slog.String("method", method),
		slog.String("capability", res.Capability.Name()),
		slog.Bool("cached", hit))

	start := time.Now()
	out, err := res.Func(ctx, receiver, args...)
	d.metrics.RecordDispatch(ctx, res.Capability.Name(), method, err, time.Since(start))
	telemetry.EndSpan(span, err)
	return out, err
}

// Lookup resolves method against receiver without invoking it.
func (d *Dispatcher) Lookup(receiver Declarer, method string) (Resolution, error) {
	if receiver == nil {
		return Resolution{}, errNilReceiver(method)
	}
	res, _, err := d.lookup(receiver, fmt.Sprintf("%T", receiver), method)
	return res, err
}

// Reset drops every cached resolution.
func (d *Dispatcher) Reset() {
	d.entries.Clear()
}

// SetCache switches the resolution cache at runtime. Switching it off
// drops what was cached.
func (d *Dispatcher) SetCache(enabled bool) {
	if d.cache.Swap(enabled) && !enabled {
		d.Reset()
	}
}

// CacheEnabled reports whether resolutions are cached.
func (d *Dispatcher) CacheEnabled() bool {
	return d.cache.Load()
}

func (d *Dispatcher) lookup(receiver Declarer, receiverType, method string) (Resolution, bool, error) {
	caps := receiver.Capabilities()
	if !d.cache.Load() {
		res, err := d.resolve(caps, receiverType, method)
		return res, false, err
	}

	gen := d.registry.Generation()
	key := cacheKey(receiverType, caps, method)
	if v, ok := d.entries.Load(key); ok {
		entry := v.(cacheEntry)
		if entry.generation == gen {
			return entry.resolution, true, entry.err
		}
	}

	v, _, _ := d.group.Do(key, func() (any, error) {
		gen := d.registry.Generation()
		res, err := d.resolve(caps, receiverType, method)
		entry := cacheEntry{generation: gen, resolution: res, err: err}
		d.entries.Store(key, entry)
		return entry, nil
	})
	entry := v.(cacheEntry)
	return entry.resolution, false, entry.err
}

// resolve walks caps in declaration order; the first capability declaring
// method wins.
func (d *Dispatcher) resolve(caps []*role.Capability, receiverType, method string) (Resolution, error) {
	for _, c := range caps {
		if c == nil {
			continue
		}
		sig, ok := c.Lookup(method)
		if !ok {
			continue
		}
		res := Resolution{Capability: c, Signature: sig}
		provider, ok := d.registry.ProviderFor(c)
		if !ok {
			return res, errors.Newf(errors.CodeRoleProviderMissing,
				"no provider %s registered for capability %s", c.ProviderName(), c.Name()).
				WithContext("receiver", receiverType).
				WithContext("capability", c.Name()).
				WithContext("provider", c.ProviderName()).
				WithContext("method", method)
		}
		res.Provider = provider
		fn, ok := provider.Func(method)
		if !ok {
			return res, errors.Newf(errors.CodeRoleImplementationMissing,
				"provider %s does not implement %s", provider.Name(), method).
				WithContext("receiver", receiverType).
				WithContext("capability", c.Name()).
				WithContext("provider", provider.Name()).
				WithContext("method", method)
		}
		res.Func = fn
		return res, nil
	}
	return Resolution{}, errors.Newf(errors.CodeMethodNotFound,
		"%s has no method %s", receiverType, method).
		WithContext("receiver", receiverType).
		WithContext("method", method).
		WithContext("capabilities", capabilityNames(caps))
}

func errNilReceiver(method string) error {
	return errors.Newf(errors.CodeInvalidInput, "nil receiver for %s", method).
		WithContext("method", method)
}

func cacheKey(receiverType string, caps []*role.Capability, method string) string {
	var b strings.Builder
	b.WriteString(receiverType)
	for _, c := range caps {
		fmt.Fprintf(&b, "|%p", c)
	}
	b.WriteString("#")
	b.WriteString(method)
	return b.String()
}

func capabilityNames(caps []*role.Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		if c != nil {
			out = append(out, c.Name())
		}
	}
	return out
}

func capabilityName(c *role.Capability) string {
	if c == nil {
		return ""
	}
	return c.Name()
}

func providerName(p *role.Provider) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
