// Package guard decides whether a CLI command may run for the current
// session, mirroring the protected and public routes of the web client.
package guard

import (
	"context"
	"net/url"

	"github.com/dmitrijs2005/dulo/internal/logging"
)

const (
	LoginRoute = "/login"
	HomeRoute  = "/home"
)

// Authenticator reports the local session state.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Refresher obtains a new access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Decision is the outcome of a guard check. When Allow is false, Redirect
// names the route to go to instead.
type Decision struct {
	Allow    bool
	Redirect string
	// From is the route that was denied, carried to the login page.
	From string
}

// URL renders the redirect with its from parameter, e.g. /login?from=%2Fscan.
func (d Decision) URL() string {
	if d.Allow {
		return ""
	}
	if d.From == "" {
		return d.Redirect
	}
	return d.Redirect + "?" + url.Values{"from": {d.From}}.Encode()
}

type Guard struct {
	auth      Authenticator
	refresher Refresher
	log       logging.Logger
}

func New(auth Authenticator, refresher Refresher, log logging.Logger) *Guard {
	if log == nil {
		log = logging.Nop()
	}
	return &Guard{auth: auth, refresher: refresher, log: log}
}

// Protected allows route when a session exists. Otherwise it tries one
// silent refresh and allows the route if that yields a token.
func (g *Guard) Protected(ctx context.Context, route string) Decision {
	if g.auth.IsAuthenticated(ctx) {
		return Decision{Allow: true}
	}

	token, err := g.refresher.Refresh(ctx)
	if err == nil && token != "" {
		g.log.Debug(ctx, "session restored by silent refresh", "route", route)
		return Decision{Allow: true}
	}
	if err != nil {
		g.log.Debug(ctx, "silent refresh failed", "route", route, "error", err)
	}
	return Decision{Redirect: LoginRoute, From: route}
}

// Public allows route for anonymous users and sends signed-in users home.
func (g *Guard) Public(ctx context.Context, route string) Decision {
	if g.auth.IsAuthenticated(ctx) {
		return Decision{Redirect: HomeRoute}
	}
	return Decision{Allow: true}
}
