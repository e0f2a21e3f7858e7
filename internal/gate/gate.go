// Package gate decides, per front-end request, whether page content may be
// served or the login page must be rendered instead.
package gate

import (
	"net/http"
	"net/url"
	"sitegate/internal/session"
	"strings"
)

const (
	// LoginParam marks a login page request; the value "preview" asks for preview mode.
	LoginParam   = "restricted_login"
	PreviewValue = "preview"
	// LoginAction is the form action posted by the login page.
	LoginAction = "restricted_login"
)

// Decision is the outcome of evaluating one request.
type Decision int

const (
	// Pass leaves the request to the management surface's own access control.
	Pass Decision = iota
	// RenderPreview shows the login page in preview mode to an administrator.
	RenderPreview
	// LoginRequest lets the login page itself or a login submission through.
	LoginRequest
	// AdminBypass serves content to a privileged administrator.
	AdminBypass
	// SetupRequired blocks everyone while no allowed domain is configured.
	SetupRequired
	// Authenticated serves content to a signed-in allow-listed visitor.
	Authenticated
	// RenderLogin shows the login page and produces no content.
	RenderLogin
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case RenderPreview:
		return "render_preview"
	case LoginRequest:
		return "login_request"
	case AdminBypass:
		return "admin_bypass"
	case SetupRequired:
		return "setup_required"
	case Authenticated:
		return "authenticated"
	case RenderLogin:
		return "render_login"
	default:
		return "unknown"
	}
}

// Allows reports whether the decision lets page content through.
func (d Decision) Allows() bool {
	switch d {
	case Pass, LoginRequest, AdminBypass, Authenticated:
		return true
	default:
		return false
	}
}

// Request is everything Evaluate needs to know about an incoming request.
type Request struct {
	Path             string
	Method           string
	Query            url.Values
	Form             url.Values
	IsAdminSurface   bool
	IsAsync          bool
	IsPrivileged     bool
	DomainConfigured bool
	Session          session.Data
}

// Evaluate applies the gate rules in order; the first match wins.
func Evaluate(r Request) Decision {
	switch {
	case r.IsAdminSurface || r.IsAsync:
		return Pass
	case IsPreview(r.Query) && r.IsPrivileged:
		return RenderPreview
	case IsLoginPage(r.Method, r.Query, r.Form):
		return LoginRequest
	case r.IsPrivileged:
		return AdminBypass
	case !r.DomainConfigured:
		return SetupRequired
	case r.Session.IsAuthenticated():
		return Authenticated
	default:
		return RenderLogin
	}
}

// IsPreview reports whether the query asks for the preview login page.
func IsPreview(query url.Values) bool {
	return query.Get(LoginParam) == PreviewValue
}

// IsLoginPage reports whether the request is the login page or a login form post.
func IsLoginPage(method string, query, form url.Values) bool {
	if _, ok := query[LoginParam]; ok {
		return true
	}
	return method == http.MethodPost && form.Get("action") == LoginAction
}

// RedirectURL rebuilds the absolute URL of r without the login marker.
func RedirectURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}

	u := url.URL{
		Scheme:  scheme,
		Host:    r.Host,
		Path:    r.URL.Path,
		RawPath: r.URL.RawPath,
	}
	if r.URL.RawQuery != "" {
		query := r.URL.Query()
		query.Del(LoginParam)
		u.RawQuery = query.Encode()
	}
	return u.String()
}
