package client

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore is the persistence the API client needs. session.Store
// implements it.
type TokenStore interface {
	// Token returns the access token and when it was obtained, or "".
	Token(ctx context.Context) (string, time.Time, error)
	// SaveToken stores token and at together. An empty token deletes both.
	SaveToken(ctx context.Context, token string, at time.Time) error
	RefreshCookie(ctx context.Context) (string, error)
	// SaveRefreshCookie stores the cookie value. An empty value deletes it.
	SaveRefreshCookie(ctx context.Context, value string) error
	// ClearSession drops the token, its timestamp and the cached user.
	ClearSession(ctx context.Context) error
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client cannot verify tokens; it only needs a hint for when to refresh.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
