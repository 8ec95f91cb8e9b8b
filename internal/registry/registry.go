package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// Registry is the catalog of downstream services allowed to request scoped
// tokens. It is built once at startup and read-only afterwards, so it is
// safe for concurrent readers without locking.
type Registry struct {
	byID  map[string]domain.ServiceDescriptor
	order []string
}

type registryFile struct {
	Services []domain.ServiceDescriptor `yaml:"services"`
}

// Load reads service descriptors from a YAML file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse service registry: %w", err)
	}

	return New(file.Services...)
}

// New builds a registry from descriptors, preserving registration order.
func New(descriptors ...domain.ServiceDescriptor) (*Registry, error) {
	r := &Registry{byID: make(map[string]domain.ServiceDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("service descriptor missing id (name=%q)", d.Name)
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("duplicate service id %q", d.ID)
		}
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r, nil
}

// All returns every descriptor in registration order.
func (r *Registry) All() []domain.ServiceDescriptor {
	out := make([]domain.ServiceDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Enabled returns enabled descriptors in registration order.
func (r *Registry) Enabled() []domain.ServiceDescriptor {
	out := make([]domain.ServiceDescriptor, 0, len(r.order))
	for _, id := range r.order {
		if d := r.byID[id]; d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// IsEnabled reports false for unknown ids as well as disabled ones.
func (r *Registry) IsEnabled(serviceID string) bool {
	d, ok := r.byID[serviceID]
	return ok && d.Enabled
}

// Get returns the descriptor or domain.ErrServiceNotFound.
func (r *Registry) Get(serviceID string) (domain.ServiceDescriptor, error) {
	d, ok := r.byID[serviceID]
	if !ok {
		return domain.ServiceDescriptor{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, serviceID)
	}
	return d, nil
}
