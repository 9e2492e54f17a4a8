package payment

import (
	"fmt"
	"strings"
)

// Registry resolves a named provider to its adapter. An empty name resolves to
// the default provider.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[strings.ToLower(p.Name())] = p
	}
	defaultName = strings.ToLower(defaultName)
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default %q not registered", ErrUnknownProvider, defaultName)
	}
	return &Registry{providers: byName, defaultName: defaultName}, nil
}

func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) DefaultName() string { return r.defaultName }
