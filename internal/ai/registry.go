package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry maps provider names to factories. The default name/model pair is
// what the tutor endpoints use; callers may still ask for others by name.
type Registry struct {
	mu           sync.RWMutex
	factories    map[string]ProviderFactory
	defaultName  string
	defaultModel string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	if r.defaultName == "" {
		r.defaultName = name
	}
}

// SetDefault selects the provider and model returned by Default.
func (r *Registry) SetDefault(name, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = normalize(name)
	r.defaultModel = strings.TrimSpace(model)
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

func (r *Registry) Default(ctx context.Context) (Provider, error) {
	r.mu.RLock()
	name, model := r.defaultName, r.defaultModel
	r.mu.RUnlock()
	if name == "" {
		return nil, ErrNotConfigured
	}
	return r.Get(ctx, name, model)
}
