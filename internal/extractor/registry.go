package extractor

import (
	"fmt"
	"sort"
	"sync"
)

// Factories register themselves by name so the CLI can look them up,
// in the manner of database/sql drivers. Extractor implementations are
// expected to call Register from an init function and be linked into
// the binary that runs the suite.
var (
	registryMu   sync.RWMutex
	registry     = make(map[string]Factory)
	failureKinds = make(map[string]error)
)

// Register makes a factory available under the given name.
// Registering a duplicate or nil factory panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("extractor: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("extractor: Register called twice for %q", name))
	}
	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("extractor %q is not registered (known: %v)", name, registeredLocked())
	}
	return f, nil
}

// Registered returns the sorted names of all registered factories.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registeredLocked()
}

// RegisterFailureKind names an error kind so suite manifests can
// reference it by name in expect_error clauses. The error is matched
// with errors.Is against whatever the extraction chain raises.
func RegisterFailureKind(name string, err error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if err == nil {
		panic("extractor: RegisterFailureKind error is nil")
	}
	if _, dup := failureKinds[name]; dup {
		panic(fmt.Sprintf("extractor: RegisterFailureKind called twice for %q", name))
	}
	failureKinds[name] = err
}

// LookupFailureKind resolves a named error kind.
func LookupFailureKind(name string) (error, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kind, ok := failureKinds[name]
	if !ok {
		return nil, fmt.Errorf("failure kind %q is not registered", name)
	}
	return kind, nil
}

func registeredLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
