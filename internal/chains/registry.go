// Package chains defines the chain descriptors the transfer service routes
// between and the conversion between native address encodings and the
// protocol's normalized 32-byte form.
package chains

import (
	"fmt"
	"sort"

	"github.com/courier-service/courier_service/internal/cctp"
)

// Kind identifies a chain's execution model and address encoding
type Kind string

const (
	KindSolana Kind = "solana"
	KindAptos  Kind = "aptos"
)

// Chain describes one supported network
type Chain struct {
	Name     string
	Kind     Kind
	Domain   uint32
	Decimals int32
}

// Registry maps chain names and protocol domains to chain descriptors.
// It is constructed once at startup and passed to every component that
// needs it; nothing registers itself through import side effects.
type Registry struct {
	byName   map[string]Chain
	byDomain map[uint32]Chain
}

// NewRegistry builds a registry from an explicit chain list
func NewRegistry(chains ...Chain) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]Chain, len(chains)),
		byDomain: make(map[uint32]Chain, len(chains)),
	}
	for _, c := range chains {
		if c.Name == "" {
			return nil, fmt.Errorf("chain with domain %d has no name", c.Domain)
		}
		if _, exists := r.byName[c.Name]; exists {
			return nil, fmt.Errorf("duplicate chain name %q", c.Name)
		}
		if _, exists := r.byDomain[c.Domain]; exists {
			return nil, fmt.Errorf("duplicate chain domain %d", c.Domain)
		}
		r.byName[c.Name] = c
		r.byDomain[c.Domain] = c
	}
	return r, nil
}

// NewDefaultRegistry returns the registry for the supported chain pair
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(
		Chain{Name: "solana", Kind: KindSolana, Domain: cctp.DomainSolana, Decimals: 6},
		Chain{Name: "aptos", Kind: KindAptos, Domain: cctp.DomainAptos, Decimals: 6},
	)
	if err != nil {
		// static chain list, cannot collide
		panic(err)
	}
	return r
}

// Get returns the chain with the given name
func (r *Registry) Get(name string) (Chain, error) {
	c, ok := r.byName[name]
	if !ok {
		return Chain{}, fmt.Errorf("unsupported chain %q", name)
	}
	return c, nil
}

// GetByDomain returns the chain with the given protocol domain id
func (r *Registry) GetByDomain(domain uint32) (Chain, error) {
	c, ok := r.byDomain[domain]
	if !ok {
		return Chain{}, fmt.Errorf("unsupported domain %d", domain)
	}
	return c, nil
}

// Names returns the registered chain names in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
