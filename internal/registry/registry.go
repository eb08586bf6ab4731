// Package registry holds the immutable, ordered set of monitored services.
package registry

import (
	"github.com/hazz-dev/statusbot/internal/config"
)

// Registry maps service names to services. Iteration follows the order the
// services were loaded in. It is read-only after New and safe for concurrent use.
type Registry struct {
	services []config.Service
	index    map[string]int
}

// New validates services and builds a Registry. It returns a *config.Error
// when a name or URL is missing, malformed, or duplicated.
func New(services []config.Service) (*Registry, error) {
	if err := config.Validate(services); err != nil {
		return nil, err
	}
	r := &Registry{
		services: make([]config.Service, len(services)),
		index:    make(map[string]int, len(services)),
	}
	copy(r.services, services)
	for i, svc := range r.services {
		r.index[svc.Name] = i
	}
	return r, nil
}

// All returns the services in registry order. The slice is a copy.
func (r *Registry) All() []config.Service {
	out := make([]config.Service, len(r.services))
	copy(out, r.services)
	return out
}

// Get looks up a service by name.
func (r *Registry) Get(name string) (config.Service, bool) {
	i, ok := r.index[name]
	if !ok {
		return config.Service{}, false
	}
	return r.services[i], true
}

// Names returns service names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.services))
	for i, svc := range r.services {
		names[i] = svc.Name
	}
	return names
}

// Len returns the number of services.
func (r *Registry) Len() int {
	return len(r.services)
}
