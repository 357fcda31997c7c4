package subscription

import (
	"strings"
)

// Factory builds an adapter from shared dependencies. It must not perform
// I/O and must not fail: missing credentials surface on the first call.
type Factory func(deps Deps) Gateway

// Registry maps processor names to adapter factories.
type Registry struct {
	Default   Provider
	factories map[Provider]Factory
}

// NewRegistry creates a registry whose fallback is def.
func NewRegistry(def Provider) *Registry {
	return &Registry{Default: def, factories: make(map[Provider]Factory)}
}

// Register adds or replaces the factory for p.
func (r *Registry) Register(p Provider, f Factory) *Registry {
	if f == nil {
		panic("gateway factory is required")
	}
	r.factories[p] = f
	return r
}

// Providers lists registered processors.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	return out
}

// Resolve returns the provider a configuration value selects.
// Unknown and empty values resolve to the default.
func (r *Registry) Resolve(name string) Provider {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := r.factories[p]; ok {
		return p
	}
	return r.Default
}

// SelectorConfig is the runtime configuration consulted by SelectGateway.
type SelectorConfig struct {
	Provider string `env:"BILLING_PROVIDER" envDefault:"mercadopago"`
}

// SelectGateway returns the adapter for cfg. It is total: an unknown value
// yields the registry default. It panics only when the registry has no
// factory for its own default, which is a wiring bug.
func SelectGateway(reg *Registry, cfg SelectorConfig, deps Deps) Gateway {
	p := reg.Resolve(cfg.Provider)
	f, ok := reg.factories[p]
	if !ok {
		panic("no gateway factory registered for default provider " + string(reg.Default))
	}
	return f(deps)
}
