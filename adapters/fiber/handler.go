package fiber

import (
	"bytes"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/nethttp"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/pages"
	"github.com/lborres/bantay/services"
)

// handle returns the fiber handler for one action.
func handle(h core.Handler, action core.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		req, err := newRequest(c, action)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		res, err := h.Handle(c.Context(), req)
		if err != nil {
			h.Logger().Warn("HANDLE_ERROR", zap.String("action", string(action)), zap.Error(err))
		}
		return writeResponse(c, res)
	}
}

// newRequest converts the fiber context into a core.Request.
func newRequest(c fiber.Ctx, action core.Action) (*core.Request, error) {
	req := &core.Request{
		Method:     c.Method(),
		Action:     action,
		ProviderID: c.Params(services.ProviderParam),
		Origin:     c.Scheme() + "://" + c.Host(),
		Headers:    http.Header{},
		Cookies:    make(map[string]string),
		Body:       url.Values{},
	}

	for k, vs := range c.GetReqHeaders() {
		for _, v := range vs {
			req.Headers.Add(k, v)
		}
	}
	c.Request().Header.VisitAllCookie(func(k, v []byte) {
		req.Cookies[string(k)] = string(v)
	})

	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return nil, err
	}
	req.Query = query

	if c.Method() == http.MethodGet || c.Method() == http.MethodHead {
		return req, nil
	}
	body, err := nethttp.ReadBody(c.Get(fiber.HeaderContentType), bytes.NewReader(c.Body()))
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// writeResponse writes res: cookies first, then a redirect, page or JSON
// body.
func writeResponse(c fiber.Ctx, res *core.Response) error {
	for _, ck := range res.Cookies {
		c.Cookie(fiberCookie(ck))
	}
	for k, vs := range res.Headers {
		for _, v := range vs {
			c.Append(k, v)
		}
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case res.Redirect != "" && res.JSONRedirect:
		return c.Status(status).JSON(fiber.Map{"url": res.Redirect})
	case res.Redirect != "":
		return c.Redirect().Status(http.StatusFound).To(res.Redirect)
	case res.Page != nil:
		var buf bytes.Buffer
		if err := pages.Render(&buf, res.Page); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, pages.ContentType)
		return c.Status(status).Send(buf.Bytes())
	case res.Body != nil:
		return c.Status(status).JSON(res.Body)
	default:
		return c.SendStatus(status)
	}
}

// fiberCookie converts ck. fasthttp drops a negative max-age, so deletions
// are sent as an expiry in the past.
func fiberCookie(ck core.Cookie) *fiber.Cookie {
	out := &fiber.Cookie{
		Name:     ck.Name,
		Value:    ck.Value,
		Path:     ck.Options.Path,
		Domain:   ck.Options.Domain,
		MaxAge:   ck.Options.MaxAge,
		Expires:  ck.Options.Expires,
		Secure:   ck.Options.Secure,
		HTTPOnly: ck.Options.HTTPOnly,
		SameSite: sameSite(ck.Options.SameSite),
	}
	if ck.Options.MaxAge < 0 {
		out.MaxAge = 0
		out.Expires = time.Unix(1, 0)
	}
	return out
}

func sameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return fiber.CookieSameSiteStrictMode
	case http.SameSiteNoneMode:
		return fiber.CookieSameSiteNoneMode
	case http.SameSiteLaxMode:
		return fiber.CookieSameSiteLaxMode
	default:
		return fiber.CookieSameSiteDisabled
	}
}
