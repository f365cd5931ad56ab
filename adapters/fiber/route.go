package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

type Adapter struct {
	app *fiber.App
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

func (a *Adapter) RegisterRoutes(h core.Handler) error {
	api := a.app.Group(h.BasePath())

	for _, route := range services.NewEndpointRegistry().Routes() {
		api.Add([]string{route.Method}, fiberPath(route.Path), handle(h, route.Action))
	}

	return nil
}

// fiberPath rewrites "{provider}" to fiber's ":provider".
func fiberPath(p string) string {
	return strings.Replace(p, "{"+services.ProviderParam+"}", ":"+services.ProviderParam, 1)
}
