// Package session keeps the signed-in state of the client in the local
// database: access token and timestamp, refresh cookie, cached profile and
// theme preference. Store implements client.TokenStore.
package session
