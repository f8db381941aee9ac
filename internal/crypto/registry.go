package crypto

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Base identifies an abstract capability under which type classes are registered.
type Base string

const (
	BaseHasher        Base = "hasher"
	BaseHMAC          Base = "hmac"
	BaseCipher        Base = "cipher"
	BaseAsymmetricKey Base = "asymmetric-key"
)

// AvailabilityFunc reports whether a default candidate can be used on this platform.
// A nil return means available. Any other error means "not available", except
// ErrPasswordRequired and ErrDecryptionFailed which propagate.
type AvailabilityFunc func() error

// defaultCandidate is one entry of a base's default-selection policy.
type defaultCandidate struct {
	priority  int
	seq       int
	typeClass string
	available AvailabilityFunc
}

// Registry maps (base, type class) pairs to implementations.
// It is populated once at the composition root and read many times afterwards.
type Registry struct {
	mu       sync.RWMutex
	entries  map[Base]map[string]any
	defaults map[Base][]defaultCandidate
	seq      int
	sealed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[Base]map[string]any),
		defaults: make(map[Base][]defaultCandidate),
	}
}

// Register binds impl to (base, typeClass).
// Registering the same implementation twice is a no-op; a different one is a conflict.
func (r *Registry) Register(base Base, typeClass string, impl any) error {
	if typeClass == "" {
		return newError("register", "", fmt.Errorf("%w: empty type class", ErrMissingArgument))
	}
	if impl == nil {
		return newError("register", typeClass, fmt.Errorf("%w: nil implementation", ErrMissingArgument))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return newError("register", typeClass, fmt.Errorf("%w: registry is sealed", ErrUnsupported))
	}

	m, ok := r.entries[base]
	if !ok {
		m = make(map[string]any)
		r.entries[base] = m
	}
	if existing, ok := m[typeClass]; ok {
		if sameImpl(existing, impl) {
			return nil
		}
		return newError("register", typeClass, fmt.Errorf("%w: %s/%s already bound to %T", ErrRegistrationConflict, base, typeClass, existing))
	}
	m[typeClass] = impl
	return nil
}

// RegisterDefault adds a default-selection candidate for base.
// Candidates are tried in ascending priority, then registration order.
func (r *Registry) RegisterDefault(base Base, priority int, typeClass string, available AvailabilityFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return newError("register", typeClass, fmt.Errorf("%w: registry is sealed", ErrUnsupported))
	}

	r.seq++
	r.defaults[base] = append(r.defaults[base], defaultCandidate{
		priority:  priority,
		seq:       r.seq,
		typeClass: typeClass,
		available: available,
	})
	sort.SliceStable(r.defaults[base], func(i, j int) bool {
		a, b := r.defaults[base][i], r.defaults[base][j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.seq < b.seq
	})
	return nil
}

// Seal rejects any further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the implementation bound to (base, typeClass) without default resolution.
func (r *Registry) Lookup(base Base, typeClass string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.entries[base][typeClass]
	return impl, ok
}

// Resolve returns the implementation for typeClass. An empty type class selects the default.
func (r *Registry) Resolve(base Base, typeClass string) (any, error) {
	if typeClass == "" {
		return r.ResolveDefault(base)
	}
	impl, ok := r.Lookup(base, typeClass)
	if !ok {
		return nil, newError("resolve", typeClass, fmt.Errorf("%w: %s", ErrUnsupportedTypeClass, base))
	}
	return impl, nil
}

// ResolveDefault returns the first candidate whose availability predicate succeeds.
func (r *Registry) ResolveDefault(base Base) (any, error) {
	_, impl, err := r.resolveDefault(base)
	return impl, err
}

// DefaultTypeClass returns the type class that default resolution would select.
func (r *Registry) DefaultTypeClass(base Base) (string, error) {
	tc, _, err := r.resolveDefault(base)
	return tc, err
}

func (r *Registry) resolveDefault(base Base) (string, any, error) {
	r.mu.RLock()
	candidates := append([]defaultCandidate(nil), r.defaults[base]...)
	r.mu.RUnlock()

	for _, c := range candidates {
		impl, ok := r.Lookup(base, c.typeClass)
		if !ok {
			continue
		}
		if c.available != nil {
			ok, err := Probe(c.available)
			if err != nil {
				return "", nil, newError("resolve", c.typeClass, err)
			}
			if !ok {
				continue
			}
		}
		return c.typeClass, impl, nil
	}
	return "", nil, newError("resolve", "", fmt.Errorf("%w: %s", ErrNoDefault, base))
}

// TypeClasses lists the type classes registered under base, sorted.
func (r *Registry) TypeClasses(base Base) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries[base]))
	for tc := range r.entries[base] {
		out = append(out, tc)
	}
	sort.Strings(out)
	return out
}

// ResolveAs resolves typeClass and asserts the implementation type.
func ResolveAs[T any](r *Registry, base Base, typeClass string) (T, error) {
	var zero T
	impl, err := r.Resolve(base, typeClass)
	if err != nil {
		return zero, err
	}
	typed, ok := impl.(T)
	if !ok {
		return zero, newError("resolve", typeClass, fmt.Errorf("%w: %s holds %T", ErrClassNotOfExpectedType, base, impl))
	}
	return typed, nil
}

// sameImpl compares implementations by identity. Funcs compare by code pointer.
func sameImpl(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
