package core

import "net/http"

// Endpoint describes one mounted route. Transports use the table to
// register routes; the router uses it to reject unsupported combinations.
type Endpoint struct {
	Action      Action
	Method      string
	Description string

	// WithProvider marks routes that also accept "/<action>/<providerId>".
	WithProvider bool

	// RequiresCSRF marks routes that reject unverified POSTs.
	RequiresCSRF bool
}

// Path is the route relative to the base path, e.g. "/signin".
func (e Endpoint) Path() string {
	return "/" + string(e.Action)
}

// BaseEndpoints is every route bantay serves.
var BaseEndpoints = []Endpoint{
	{Action: ActionProviders, Method: http.MethodGet, Description: "List configured providers"},
	{Action: ActionSession, Method: http.MethodGet, Description: "Read and refresh the current session"},
	{Action: ActionCSRF, Method: http.MethodGet, Description: "Issue the CSRF token"},
	{Action: ActionSignIn, Method: http.MethodGet, WithProvider: true, Description: "Sign-in page"},
	{Action: ActionSignIn, Method: http.MethodPost, WithProvider: true, RequiresCSRF: true, Description: "Start a provider sign-in"},
	{Action: ActionCallback, Method: http.MethodGet, WithProvider: true, Description: "Provider callback"},
	{Action: ActionCallback, Method: http.MethodPost, WithProvider: true, Description: "Provider callback (form_post and credentials)"},
	{Action: ActionSignOut, Method: http.MethodGet, Description: "Sign-out page"},
	{Action: ActionSignOut, Method: http.MethodPost, RequiresCSRF: true, Description: "End the session"},
	{Action: ActionVerifyRequest, Method: http.MethodGet, Description: "Check-your-email page"},
	{Action: ActionError, Method: http.MethodGet, Description: "Error page"},
	{Action: ActionLog, Method: http.MethodPost, Description: "Client log sink"},
}

// LookupEndpoint returns the route for action and method.
func LookupEndpoint(action Action, method string) (Endpoint, bool) {
	for _, e := range BaseEndpoints {
		if e.Action == action && e.Method == method {
			return e, true
		}
	}
	return Endpoint{}, false
}
