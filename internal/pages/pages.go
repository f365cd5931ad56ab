// Package pages renders the built-in sign-in, sign-out, verify-request and
// error pages.
package pages

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"sort"

	"github.com/lborres/bantay/core"
)

// signInMessages are shown above the sign-in form.
var signInMessages = map[core.ErrorCode]string{
	core.CodeSignin:                "Try signing in with a different account.",
	core.CodeOAuthSignin:           "Try signing in with a different account.",
	core.CodeOAuthCallback:         "Try signing in with a different account.",
	core.CodeOAuthCreateAccount:    "Try signing in with a different account.",
	core.CodeEmailCreateAccount:    "Try signing in with a different account.",
	core.CodeCallback:              "Try signing in with a different account.",
	core.CodeOAuthAccountNotLinked: "To confirm your identity, sign in with the same account you used originally.",
	core.CodeEmailSignin:           "The e-mail could not be sent.",
	core.CodeCredentialsSignin:     "Sign in failed. Check the details you provided are correct.",
	core.CodeSessionRequired:       "Please sign in to access this page.",
	core.CodeDefault:               "Unable to sign in.",
}

type errorMessage struct {
	Heading string
	Message string
	Signin  bool
}

var errorMessages = map[core.ErrorCode]errorMessage{
	core.CodeConfiguration: {
		Heading: "Server error",
		Message: "There is a problem with the server configuration. Check the server logs for more information.",
	},
	core.CodeAccessDenied: {
		Heading: "Access Denied",
		Message: "You do not have permission to sign in.",
		Signin:  true,
	},
	core.CodeVerification: {
		Heading: "Unable to sign in",
		Message: "The sign in link is no longer valid. It may have been used already or it may have expired.",
		Signin:  true,
	},
	core.CodeDefault: {
		Heading: "Error",
		Message: "Something went wrong.",
	},
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f3f4f6;margin:0;display:flex;justify-content:center}
.card{background:#fff;margin-top:10vh;padding:2rem;border-radius:.5rem;max-width:22rem;width:100%;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.error{background:#fee2e2;color:#991b1b;padding:.75rem;border-radius:.25rem;margin-bottom:1rem}
label,input,button{display:block;width:100%;box-sizing:border-box}
input{margin:.25rem 0 .75rem;padding:.5rem}
button{padding:.6rem;margin:.5rem 0;cursor:pointer}
hr{border:0;border-top:1px solid #e5e7eb;margin:1rem 0}
</style>
</head>
<body><div class="card">{{template "content" .}}</div></body>
</html>{{end}}`

var contents = map[core.PageKind]string{
	core.PageSignIn: `{{define "content"}}
{{with .Message}}<div class="error">{{.}}</div>{{end}}
{{range $i, $p := .Providers}}
{{if $i}}<hr>{{end}}
{{if eq $p.Type "oauth"}}
<form action="{{$p.SignInURL}}" method="POST">
<input type="hidden" name="csrfToken" value="{{$.Page.CSRFToken}}">
{{with $.Page.CallbackURL}}<input type="hidden" name="callbackUrl" value="{{.}}">{{end}}
<button type="submit">Sign in with {{$p.Name}}</button>
</form>
{{else if eq $p.Type "email"}}
<form action="{{$p.SignInURL}}" method="POST">
<input type="hidden" name="csrfToken" value="{{$.Page.CSRFToken}}">
<label for="input-email-for-{{$p.ID}}">Email</label>
<input id="input-email-for-{{$p.ID}}" type="email" name="email" value="{{$.Page.Email}}" placeholder="email@example.com" required>
<button type="submit">Sign in with {{$p.Name}}</button>
</form>
{{else if eq $p.Type "credentials"}}
<form action="{{$p.CallbackURL}}" method="POST">
<input type="hidden" name="csrfToken" value="{{$.Page.CSRFToken}}">
{{range $name, $in := $p.Credentials}}
<label for="input-{{$name}}-for-{{$p.ID}}">{{or $in.Label $name}}</label>
<input id="input-{{$name}}-for-{{$p.ID}}" name="{{$name}}" type="{{or $in.Type "text"}}" placeholder="{{$in.Placeholder}}">
{{end}}
<button type="submit">Sign in with {{$p.Name}}</button>
</form>
{{end}}
{{end}}
{{end}}`,

	core.PageSignOut: `{{define "content"}}
<h1>Signout</h1>
<p>Are you sure you want to sign out?</p>
<form action="{{.Page.BaseURL}}/signout" method="POST">
<input type="hidden" name="csrfToken" value="{{.Page.CSRFToken}}">
<button type="submit">Sign out</button>
</form>
{{end}}`,

	core.PageVerifyRequest: `{{define "content"}}
<h1>Check your email</h1>
<p>A sign in link has been sent to your email address.</p>
<p><a href="{{.Origin}}">{{.Page.Host}}</a></p>
{{end}}`,

	core.PageError: `{{define "content"}}
<h1>{{.Error.Heading}}</h1>
<p>{{.Error.Message}}</p>
{{if .Error.Signin}}<p><a href="{{.Page.BaseURL}}/signin">Sign in</a></p>{{end}}
{{end}}`,
}

var titles = map[core.PageKind]string{
	core.PageSignIn:        "Sign In",
	core.PageSignOut:       "Sign Out",
	core.PageVerifyRequest: "Verify Request",
	core.PageError:         "Error",
}

var templates = mustParse()

func mustParse() map[core.PageKind]*template.Template {
	out := make(map[core.PageKind]*template.Template, len(contents))
	for kind, content := range contents {
		t := template.Must(template.New(string(kind)).Parse(layout))
		out[kind] = template.Must(t.Parse(content))
	}
	return out
}

type view struct {
	Title     string
	Page      *core.Page
	Providers []core.PageProvider
	Message   string
	Error     errorMessage
	Origin    string
}

// Render writes page as a complete HTML document.
func Render(w io.Writer, page *core.Page) error {
	t, ok := templates[page.Kind]
	if !ok {
		return fmt.Errorf("pages: unknown page %q", page.Kind)
	}

	v := view{Title: titles[page.Kind], Page: page}
	if u, err := url.Parse(page.BaseURL); err == nil && u.Host != "" {
		v.Origin = u.Scheme + "://" + u.Host
	}
	switch page.Kind {
	case core.PageSignIn:
		if page.Error != "" {
			v.Message = signInMessages[page.Error]
			if v.Message == "" {
				v.Message = signInMessages[core.CodeDefault]
			}
		}
		v.Providers = sortProviders(page.Providers)
	case core.PageError:
		msg, ok := errorMessages[page.Error]
		if !ok {
			msg = errorMessages[core.CodeDefault]
		}
		v.Error = msg
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("pages: render %s: %w", page.Kind, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// ContentType is the header value for rendered pages.
const ContentType = "text/html; charset=utf-8"

// sortProviders orders OAuth buttons first, then email, then credentials.
func sortProviders(in []core.PageProvider) []core.PageProvider {
	ps := append([]core.PageProvider(nil), in...)
	order := map[core.ProviderType]int{core.ProviderTypeOAuth: 0, core.ProviderTypeEmail: 1, core.ProviderTypeCredentials: 2}
	sort.SliceStable(ps, func(i, j int) bool { return order[ps[i].Type] < order[ps[j].Type] })
	return ps
}
