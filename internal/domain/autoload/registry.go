package autoload

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/zjrosen/autoload/internal/version"
)

// Registry errors
var (
	ErrNilLoader = errors.New("loader cannot be nil")
	// ErrFileMissing is returned by a Loader when the file vanished between
	// the existence check and the load. Resolvers treat it as a decline.
	ErrFileMissing = errors.New("file no longer exists")
)

// Resolution is the result of resolving a symbol.
type Resolution struct {
	// Loaded is true when a resolver handled the symbol.
	Loaded bool
	// Path is the file that handled the symbol. Empty when declined.
	Path string
	// Namespace is the namespace whose resolver handled the symbol.
	Namespace string
}

// Resolver is the resolution callback installed for a namespace.
type Resolver func(ctx context.Context, symbol string) (Resolution, error)

type entry struct {
	registration Registration
	resolve      Resolver
}

// Registry holds the winning registration per namespace.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string // namespaces in first-registration order
	loader    Loader
	listeners []Listener
}

// NewRegistry creates an empty registry that loads files through loader.
func NewRegistry(loader Loader) (*Registry, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	return &Registry{
		entries: make(map[string]*entry),
		order:   make([]string, 0),
		loader:  loader,
	}, nil
}

// Subscribe adds a listener notified after every Register call.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// ShouldRegister reports whether a registration of candidate for namespace
// would win. The first registration of a namespace always wins; later ones
// win only with a strictly greater version.
func (r *Registry) ShouldRegister(namespace, candidate string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shouldRegisterLocked(NormalizeNamespace(namespace), candidate)
}

func (r *Registry) shouldRegisterLocked(namespace, candidate string) bool {
	existing, ok := r.entries[namespace]
	if !ok {
		return true
	}
	return version.Greater(candidate, existing.registration.Version())
}

// Register records namespace at version with files under baseDir and installs
// its resolver. Returns false when an equal or newer version is already
// registered, in which case the table is left untouched.
func (r *Registry) Register(namespace, ver, baseDir string) bool {
	reg := NewRegistration(namespace, ver, baseDir)

	r.mu.Lock()
	var previous Registration
	if existing, ok := r.entries[reg.Namespace()]; ok {
		previous = existing.registration
	}

	won := r.shouldRegisterLocked(reg.Namespace(), reg.Version())
	if won {
		if previous.IsZero() {
			r.order = append(r.order, reg.Namespace())
		}
		r.entries[reg.Namespace()] = &entry{
			registration: reg,
			resolve:      newResolver(reg, r.loader),
		}
	}
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	ev := Event{Kind: EventSkipped, Registration: reg, Previous: previous}
	if won {
		ev.Kind = EventRegistered
	}
	for _, l := range listeners {
		l(ev)
	}
	return won
}

// newResolver builds the resolution callback for a registration.
func newResolver(reg Registration, loader Loader) Resolver {
	return func(ctx context.Context, symbol string) (Resolution, error) {
		path, ok := reg.PathFor(symbol, loader.Extension())
		if !ok {
			return Resolution{}, nil
		}
		if !loader.Exists(ctx, path) {
			return Resolution{}, nil
		}
		if err := loader.Load(ctx, path); err != nil {
			if errors.Is(err, ErrFileMissing) {
				return Resolution{}, nil
			}
			return Resolution{}, fmt.Errorf("load %s for %s: %w", path, symbol, err)
		}
		return Resolution{Loaded: true, Path: path, Namespace: reg.Namespace()}, nil
	}
}

// resolvers returns a snapshot of installed resolvers in registration order.
func (r *Registry) resolvers() []Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Resolver, 0, len(r.order))
	for _, ns := range r.order {
		result = append(result, r.entries[ns].resolve)
	}
	return result
}

// Resolve offers symbol to every installed resolver until one loads it.
// A declined symbol is not an error: the zero Resolution is returned so
// other resolution mechanisms can proceed.
//
// The table lock is not held while a file loads, so loaded files may resolve
// further symbols or register new namespaces.
func (r *Registry) Resolve(ctx context.Context, symbol string) (Resolution, error) {
	for _, resolve := range r.resolvers() {
		res, err := resolve(ctx, symbol)
		if err != nil {
			return Resolution{}, err
		}
		if res.Loaded {
			return res, nil
		}
	}
	return Resolution{}, nil
}

// Candidate returns the first existing file that Resolve would load for
// symbol, without loading it.
func (r *Registry) Candidate(ctx context.Context, symbol string) (string, bool) {
	for _, reg := range r.ordered() {
		path, ok := reg.PathFor(symbol, r.loader.Extension())
		if ok && r.loader.Exists(ctx, path) {
			return path, true
		}
	}
	return "", false
}

func (r *Registry) ordered() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Registration, 0, len(r.order))
	for _, ns := range r.order {
		result = append(result, r.entries[ns].registration)
	}
	return result
}

// IsRegistered reports whether the normalized namespace has an entry.
func (r *Registry) IsRegistered(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[NormalizeNamespace(namespace)]
	return ok
}

// GetVersion returns the stored version for the normalized namespace.
func (r *Registry) GetVersion(namespace string) (string, bool) {
	reg, ok := r.Get(namespace)
	if !ok {
		return "", false
	}
	return reg.Version(), true
}

// Get returns the registration for the normalized namespace.
func (r *Registry) Get(namespace string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[NormalizeNamespace(namespace)]
	if !ok {
		return Registration{}, false
	}
	return e.registration, true
}

// GetRegistered returns a snapshot mapping namespace to version.
func (r *Registry) GetRegistered() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]string, len(r.entries))
	for ns, e := range r.entries {
		result[ns] = e.registration.Version()
	}
	return result
}

// List returns all registrations sorted by namespace
func (r *Registry) List() []Registration {
	r.mu.RLock()
	regs := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		regs = append(regs, e.registration)
	}
	r.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Namespace() < regs[j].Namespace()
	})
	return regs
}

// BaseDirs returns the distinct base directories of all registrations.
func (r *Registry) BaseDirs() []string {
	dirs := make(map[string]struct{})
	for _, reg := range r.List() {
		dirs[reg.BaseDir()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(dirs))
}
