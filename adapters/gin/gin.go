// Package gin mounts bantay on a gin engine.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/nethttp"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

// SessionKey is the gin context key Protected stores the session under.
const SessionKey = "bantay.session"

type Adapter struct {
	router gin.IRouter
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(router gin.IRouter) *Adapter {
	return &Adapter{router: router}
}

func (a *Adapter) RegisterRoutes(h core.Handler) error {
	group := a.router.Group(h.BasePath())
	for _, route := range services.NewEndpointRegistry().Routes() {
		group.Handle(route.Method, ginPath(route.Path), handler(h, route.Action))
	}
	return nil
}

// ginPath rewrites "{provider}" to gin's ":provider".
func ginPath(p string) string {
	const param = "{" + services.ProviderParam + "}"
	if n := len(p) - len(param); n >= 0 && p[n:] == param {
		return p[:n] + ":" + services.ProviderParam
	}
	return p
}

func handler(h core.Handler, action core.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := nethttp.NewRequest(c.Request, action, c.Param(services.ProviderParam))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := h.Handle(c.Request.Context(), req)
		if err != nil {
			h.Logger().Warn("HANDLE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
		if err := nethttp.WriteResponse(c.Writer, c.Request, res); err != nil {
			h.Logger().Error("WRITE_RESPONSE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
	}
}

// Protected aborts anonymous requests and stores the session under
// SessionKey for the rest of the chain.
func Protected(h core.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := nethttp.NewRequest(c.Request, core.ActionSession, "")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, cookies, err := h.GetServerSession(c.Request.Context(), req)
		for _, ck := range cookies {
			http.SetCookie(c.Writer, ck.HTTPCookie())
		}
		if err != nil {
			h.Logger().Warn("SESSION_ERROR", zap.Error(err))
		}
		if err != nil || data == nil {
			res := h.SessionRequired(req, nethttp.Origin(c.Request)+c.Request.URL.RequestURI())
			if nethttp.WantsJSON(c.Request) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": string(core.CodeSessionRequired),
					"url":   res.Redirect,
				})
				return
			}
			if err := nethttp.WriteResponse(c.Writer, c.Request, res); err != nil {
				h.Logger().Error("WRITE_RESPONSE_ERROR", zap.Error(err))
			}
			c.Abort()
			return
		}
		c.Set(SessionKey, data)
		c.Request = c.Request.WithContext(nethttp.WithSession(c.Request.Context(), data))
		c.Next()
	}
}

// Session returns the session Protected stored, or nil.
func Session(c *gin.Context) *core.SessionData {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	data, _ := v.(*core.SessionData)
	return data
}
