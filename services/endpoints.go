package services

import (
	"fmt"
	"sort"

	"github.com/lborres/bantay/core"
)

// Route is one concrete path a transport mounts under the base path.
type Route struct {
	Method string
	Path   string // "/signin" or "/signin/{provider}"
	core.Endpoint
}

// ProviderParam is the path parameter name used in provider routes.
const ProviderParam = "provider"

// EndpointRegistry expands the endpoint table into concrete routes and
// rejects duplicate METHOD:PATH combinations.
type EndpointRegistry struct {
	routes map[string]Route
}

// NewEndpointRegistry registers every base endpoint.
func NewEndpointRegistry() *EndpointRegistry {
	reg, err := NewEndpointRegistryFrom(core.BaseEndpoints)
	if err != nil {
		panic(err)
	}
	return reg
}

// NewEndpointRegistryFrom builds a registry from an arbitrary table.
func NewEndpointRegistryFrom(endpoints []core.Endpoint) (*EndpointRegistry, error) {
	reg := &EndpointRegistry{routes: make(map[string]Route)}
	for _, ep := range endpoints {
		if err := reg.register(Route{Method: ep.Method, Path: ep.Path(), Endpoint: ep}); err != nil {
			return nil, err
		}
		if ep.WithProvider {
			withProvider := Route{Method: ep.Method, Path: ep.Path() + "/{" + ProviderParam + "}", Endpoint: ep}
			if err := reg.register(withProvider); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func (r *EndpointRegistry) register(route Route) error {
	key := route.Method + ":" + route.Path
	if _, exists := r.routes[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", route.Method, route.Path)
	}
	r.routes[key] = route
	return nil
}

// Routes returns every route ordered by path, then method.
func (r *EndpointRegistry) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}
