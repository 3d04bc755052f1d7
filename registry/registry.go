// Package registry is a small in-process service registry. Components
// publish capabilities under well-known names exactly once; other
// components look them up later. It stands in the role a firmware
// protocol database plays for boot-time drivers.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicate = errors.New("registry: service already installed")
	ErrNotFound  = errors.New("registry: service not found")
)

type Registry struct {
	mu  sync.Mutex
	svc map[string]any
}

func New() *Registry {
	return &Registry{svc: make(map[string]any)}
}

// Install publishes svc under name. A name can be installed only once.
func (r *Registry) Install(name string, svc any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.svc[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	r.svc[name] = svc
	return nil
}

// Lookup returns the service installed under name.
func (r *Registry) Lookup(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.svc[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return svc, nil
}
