// Package chi mounts bantay on a chi router.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/nethttp"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

type Adapter struct {
	router chi.Router
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(router chi.Router) *Adapter {
	return &Adapter{router: router}
}

func (a *Adapter) RegisterRoutes(h core.Handler) error {
	a.router.Route(h.BasePath(), func(r chi.Router) {
		for _, route := range services.NewEndpointRegistry().Routes() {
			r.Method(route.Method, route.Path, handler(h, route.Action))
		}
	})
	return nil
}

func handler(h core.Handler, action core.Action) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := nethttp.NewRequest(r, action, chi.URLParam(r, services.ProviderParam))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := h.Handle(r.Context(), req)
		if err != nil {
			h.Logger().Warn("HANDLE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
		if err := nethttp.WriteResponse(w, r, res); err != nil {
			h.Logger().Error("WRITE_RESPONSE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
	})
}

// Protected is chi middleware that requires a session. Handlers read it
// with nethttp.SessionFrom.
func Protected(h core.Handler) func(http.Handler) http.Handler {
	return nethttp.Protected(h)
}
