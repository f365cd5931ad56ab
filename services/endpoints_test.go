package services

import (
	"net/http"
	"testing"

	"github.com/lborres/bantay/core"
)

// Requirement: the registry expands provider endpoints into both the bare and
// the /{provider} route.
func TestEndpointRegistry_Routes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		action core.Action
	}{
		{name: "providers", method: http.MethodGet, path: "/providers", action: core.ActionProviders},
		{name: "session", method: http.MethodGet, path: "/session", action: core.ActionSession},
		{name: "csrf", method: http.MethodGet, path: "/csrf", action: core.ActionCSRF},
		{name: "signin page", method: http.MethodGet, path: "/signin", action: core.ActionSignIn},
		{name: "signin provider", method: http.MethodPost, path: "/signin/{provider}", action: core.ActionSignIn},
		{name: "callback get", method: http.MethodGet, path: "/callback/{provider}", action: core.ActionCallback},
		{name: "callback post", method: http.MethodPost, path: "/callback/{provider}", action: core.ActionCallback},
		{name: "signout", method: http.MethodPost, path: "/signout", action: core.ActionSignOut},
		{name: "verify request", method: http.MethodGet, path: "/verify-request", action: core.ActionVerifyRequest},
		{name: "error", method: http.MethodGet, path: "/error", action: core.ActionError},
		{name: "client log", method: http.MethodPost, path: "/_log", action: core.ActionLog},
	}

	// Arrange
	routes := NewEndpointRegistry().Routes()
	byKey := make(map[string]Route, len(routes))
	for _, r := range routes {
		byKey[r.Method+":"+r.Path] = r
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			r, ok := byKey[test.method+":"+test.path]

			// Assert
			if !ok {
				t.Fatalf("route %s %s not registered", test.method, test.path)
			}
			if r.Action != test.action {
				t.Errorf("Action = %q, want %q", r.Action, test.action)
			}
		})
	}
}

// Requirement: there is one route per endpoint plus one per provider variant.
func TestEndpointRegistry_Count(t *testing.T) {
	want := 0
	for _, ep := range core.BaseEndpoints {
		want++
		if ep.WithProvider {
			want++
		}
	}

	if got := len(NewEndpointRegistry().Routes()); got != want {
		t.Errorf("len(Routes()) = %d, want %d", got, want)
	}
}

// Requirement: duplicate METHOD:PATH combinations are rejected.
func TestEndpointRegistry_Conflict(t *testing.T) {
	// Arrange
	endpoints := []core.Endpoint{
		{Action: core.ActionSession, Method: http.MethodGet},
		{Action: core.ActionSession, Method: http.MethodGet},
	}

	// Act
	_, err := NewEndpointRegistryFrom(endpoints)

	// Assert
	if err == nil {
		t.Error("expected a conflict error")
	}
}

// Requirement: routes come back in a stable order.
func TestEndpointRegistry_Ordered(t *testing.T) {
	routes := NewEndpointRegistry().Routes()
	for i := 1; i < len(routes); i++ {
		prev, cur := routes[i-1], routes[i]
		if prev.Path > cur.Path || (prev.Path == cur.Path && prev.Method > cur.Method) {
			t.Fatalf("routes out of order at %d: %s %s before %s %s", i, prev.Method, prev.Path, cur.Method, cur.Path)
		}
	}
}
