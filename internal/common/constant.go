// Package common contains shared constants and sentinel errors used across
// DULO client components.
package common

// HTTP header and cookie names used when talking to the DULO backend.
const (
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
	RequestIDHeaderName     = "X-Request-ID"
	ContentTypeHeaderName   = "Content-Type"
	ContentTypeJSON         = "application/json"

	// RefreshCookieName is the httponly cookie the backend issues on login.
	RefreshCookieName = "refresh_token"
)

// Local store keys. They mirror the browser storage keys of the web client
// so a session dump reads the same in both.
const (
	KeyAccessToken          = "access_token"
	KeyAccessTokenTimestamp = "access_token_timestamp"
	KeyCurrentUser          = "current_user"
	KeyRefreshCookie        = "refresh_token"
	KeyTheme                = "dulo-ui-theme"
)
