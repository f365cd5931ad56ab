// Package nethttp serves bantay on a standard library ServeMux and holds
// the request and response conversions the other net/http based transports
// share.
package nethttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/pages"
	"github.com/lborres/bantay/services"
)

// maxBodyBytes bounds form and JSON bodies read from auth requests.
const maxBodyBytes = 1 << 20

type Adapter struct {
	mux *http.ServeMux
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(mux *http.ServeMux) *Adapter {
	return &Adapter{mux: mux}
}

// RegisterRoutes mounts one pattern per route, e.g.
// "POST /api/auth/signin/{provider}".
func (a *Adapter) RegisterRoutes(h core.Handler) error {
	for _, route := range services.NewEndpointRegistry().Routes() {
		pattern := route.Method + " " + h.BasePath() + route.Path
		a.mux.Handle(pattern, Handler(h, route.Action))
	}
	return nil
}

// Handler serves one action. The provider id comes from the {provider}
// path value when the route has one.
func Handler(h core.Handler, action core.Action) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := NewRequest(r, action, r.PathValue(services.ProviderParam))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := h.Handle(r.Context(), req)
		if err != nil {
			h.Logger().Warn("HANDLE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
		if err := WriteResponse(w, r, res); err != nil {
			h.Logger().Error("WRITE_RESPONSE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
	})
}

// NewRequest converts r. Bodies may be form-encoded or JSON objects.
func NewRequest(r *http.Request, action core.Action, providerID string) (*core.Request, error) {
	req := &core.Request{
		Method:     r.Method,
		Action:     action,
		ProviderID: providerID,
		Origin:     Origin(r),
		Headers:    r.Header,
		Cookies:    make(map[string]string),
		Query:      r.URL.Query(),
		Body:       url.Values{},
	}
	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return req, nil
	}
	body, err := ReadBody(r.Header.Get("Content-Type"), io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// ReadBody parses a form-encoded or JSON object body into url.Values. JSON
// values that are not strings are formatted with fmt.
func ReadBody(contentType string, body io.Reader) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) == 0 {
		return url.Values{}, nil
	}

	if mediaType == "application/json" {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		out := make(url.Values, len(m))
		for k, v := range m {
			switch v := v.(type) {
			case string:
				out.Set(k, v)
			case nil:
			default:
				out.Set(k, fmt.Sprint(v))
			}
		}
		return out, nil
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode form body: %w", err)
	}
	return values, nil
}

// Origin is scheme://host as the client saw it, honouring the usual proxy
// headers.
func Origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host
}

// WriteResponse writes res: cookies first, then a redirect, page or JSON
// body.
func WriteResponse(w http.ResponseWriter, r *http.Request, res *core.Response) error {
	for _, c := range res.Cookies {
		http.SetCookie(w, c.HTTPCookie())
	}
	for k, vs := range res.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case res.Redirect != "" && res.JSONRedirect:
		return writeJSON(w, status, map[string]string{"url": res.Redirect})
	case res.Redirect != "":
		http.Redirect(w, r, res.Redirect, http.StatusFound)
		return nil
	case res.Page != nil:
		w.Header().Set("Content-Type", pages.ContentType)
		w.WriteHeader(status)
		return pages.Render(w, res.Page)
	case res.Body != nil:
		return writeJSON(w, status, res.Body)
	default:
		w.WriteHeader(status)
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// ============================================
// PROTECTED ROUTES
// ============================================

type contextKey struct{}

// Protected only lets signed-in requests through. Anonymous browsers are
// redirected to sign in; API clients asking for JSON get a 401.
func Protected(h core.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := NewRequest(r, core.ActionSession, "")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, cookies, err := h.GetServerSession(r.Context(), req)
			for _, c := range cookies {
				http.SetCookie(w, c.HTTPCookie())
			}
			if err != nil {
				h.Logger().Warn("SESSION_ERROR", zap.Error(err))
			}
			if err != nil || data == nil {
				res := h.SessionRequired(req, Origin(r)+r.URL.RequestURI())
				if WantsJSON(r) {
					_ = writeJSON(w, http.StatusUnauthorized, map[string]string{
						"error": string(core.CodeSessionRequired),
						"url":   res.Redirect,
					})
					return
				}
				if err := WriteResponse(w, r, res); err != nil {
					h.Logger().Error("WRITE_RESPONSE_ERROR", zap.Error(err))
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), data)))
		})
	}
}

// WantsJSON reports whether the client prefers a JSON answer.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func WithSession(ctx context.Context, data *core.SessionData) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

// SessionFrom returns the session Protected stored, or nil.
func SessionFrom(ctx context.Context) *core.SessionData {
	data, _ := ctx.Value(contextKey{}).(*core.SessionData)
	return data
}
