package oauth

import (
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"
)

// Factory builds an Adapter instance. Instantiation is deferred to the
// first Resolve so registering a provider stays cheap.
type Factory func() (Adapter, error)

// Registry maps provider-name strings to cached Adapter instances. It is
// built once at process start and handed to whoever dispatches on
// provider names; there is no package-global registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[string]Adapter),
	}
}

// Normalize puts a provider name in canonical form.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register installs the factory for a provider name. Re-registering a
// name drops any cached instance so the next Resolve uses the new
// factory.
func (r *Registry) Register(name string, f Factory) error {
	key := Normalize(name)
	if key == "" {
		return apperrors.ErrInvalidProvider.WithDetail("nombre de proveedor vacío")
	}
	if f == nil {
		return apperrors.ErrInvalidProvider.
			WithDetail("factory nula").
			WithContext("provider", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
	delete(r.cache, key)
	return nil
}

// Resolve returns the adapter for the given name (case-insensitive,
// trimmed). Unregistered names fail with invalid_provider: that is a
// caller-input error, not an OAuth-flow error.
func (r *Registry) Resolve(name string) (Adapter, error) {
	key := Normalize(name)
	if key == "" {
		return nil, apperrors.ErrInvalidProvider.WithDetail("proveedor vacío")
	}

	r.mu.RLock()
	if a, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if a, ok := r.cache[key]; ok {
		return a, nil
	}

	factory, ok := r.factories[key]
	if !ok {
		return nil, apperrors.ErrInvalidProvider.WithContext("provider", key)
	}

	adapter, err := factory()
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err).WithContext("provider", key)
	}
	if adapter == nil {
		return nil, apperrors.ErrInvalidProvider.
			WithDetail("la factory devolvió un adapter nulo").
			WithContext("provider", key)
	}
	// The produced adapter must answer to the name it was registered
	// under; a mismatch means a miswired factory.
	if got := Normalize(string(adapter.Provider())); got != key {
		return nil, apperrors.ErrInvalidProvider.
			WithDetail("la factory devolvió un adapter de otro proveedor").
			WithContext("provider", key).
			WithContext("actual", got)
	}

	r.cache[key] = adapter
	return adapter, nil
}

// ResolveFromConfiguration resolves the adapter from a stored
// configuration. An empty provider field is caller/data corruption and
// fails the same way as an unknown name.
func (r *Registry) ResolveFromConfiguration(cfg *repository.VendorEmailConfiguration) (Adapter, error) {
	if cfg == nil || strings.TrimSpace(string(cfg.Provider)) == "" {
		return nil, apperrors.ErrInvalidProvider.WithDetail("la configuración no tiene proveedor")
	}
	return r.Resolve(string(cfg.Provider))
}

// Available returns the registered provider names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InvalidateCache drops the cached instance for one provider.
func (r *Registry) InvalidateCache(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, Normalize(name))
}

// InvalidateAll drops every cached instance; factories stay registered.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]Adapter)
}
