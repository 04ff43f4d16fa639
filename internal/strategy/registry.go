package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrConfiguration is the root of every error caused by a malformed or
	// unknown strategy kind.
	ErrConfiguration = errors.New("strategy configuration error")

	ErrKindExists    = fmt.Errorf("%w: kind already registered", ErrConfiguration)
	ErrKindNotFound  = fmt.Errorf("%w: kind not found", ErrConfiguration)
	ErrNoConstructor = fmt.Errorf("%w: kind has no zero-argument constructor", ErrConfiguration)
	ErrInstantiation = fmt.Errorf("%w: kind cannot be instantiated", ErrConfiguration)
)

// Factory builds a fresh instance with its initial memory.
type Factory func() Prisoner

// KindSpec describes one registered kind. New is nil for kinds that can only
// be built with arguments; such kinds cannot seed a population and their
// instances must override Evolve.
type KindSpec struct {
	Name        string
	Description string
	New         Factory
}

var kindRegistry = struct {
	mu sync.RWMutex
	m  map[string]KindSpec
}{
	m: make(map[string]KindSpec),
}

// Register adds a kind to the process-wide registry.
func Register(spec KindSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return errors.New("kind name is required")
	}

	kindRegistry.mu.Lock()
	defer kindRegistry.mu.Unlock()

	if _, exists := kindRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, spec.Name)
	}
	kindRegistry.m[spec.Name] = spec
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(spec KindSpec) {
	if err := Register(spec); err != nil {
		panic(err)
	}
}

// Unregister removes a kind. Removing an unknown kind is a no-op.
func Unregister(name string) {
	kindRegistry.mu.Lock()
	defer kindRegistry.mu.Unlock()

	delete(kindRegistry.m, strings.TrimSpace(name))
}

func Lookup(name string) (KindSpec, error) {
	name = strings.TrimSpace(name)

	kindRegistry.mu.RLock()
	spec, ok := kindRegistry.m[name]
	kindRegistry.mu.RUnlock()

	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %s", ErrKindNotFound, name)
	}
	return spec, nil
}

// Constructor resolves the zero-argument factory of a kind.
func Constructor(name string) (Factory, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if spec.New == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoConstructor, spec.Name)
	}
	return spec.New, nil
}

// Spawn builds one fresh instance of a kind. Every failure is reported as
// ErrInstantiation so callers can tell a broken offspring path apart from a
// bad population request.
func Spawn(name string) (Prisoner, error) {
	factory, err := Constructor(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInstantiation, name, err)
	}
	p := factory()
	if p == nil {
		return nil, fmt.Errorf("%w: %s: factory returned nil", ErrInstantiation, name)
	}
	return p, nil
}

// Kinds lists registered kinds ordered by name.
func Kinds() []KindSpec {
	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()

	specs := make([]KindSpec, 0, len(kindRegistry.m))
	for _, spec := range kindRegistry.m {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func KindNames() []string {
	specs := Kinds()
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}
