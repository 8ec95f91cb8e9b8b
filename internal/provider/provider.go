package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

// Adapter is the contract every external identity provider implements.
// Adapters return identity facts only; user creation, linking, and session
// decisions belong to the resolver and the flow controller.
type Adapter interface {
	// Name returns the identifier the flow controller dispatches on.
	Name() string

	// AuthCodeURL builds the provider authorization URL. State and the PKCE
	// challenge are supplied by the caller so the adapter stays stateless.
	AuthCodeURL(state string, codeChallenge string) string

	// Exchange trades the authorization code for a normalized identity.
	Exchange(ctx context.Context, code string, codeVerifier string) (*domain.ExternalIdentity, error)
}

// Registry maps provider names to adapters. Built once at startup.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry registers the given adapters by name.
func NewRegistry(list ...Adapter) *Registry {
	m := make(map[string]Adapter, len(list))
	for _, a := range list {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter or domain.ErrUnknownProvider.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}
	return a, nil
}

// Names returns registered provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
