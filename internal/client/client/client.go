package client

import (
	"context"
)

type Client interface {
	// Do sends req with the stored bearer token, refreshing it when needed.
	// Non-2xx answers are returned as *APIError.
	Do(ctx context.Context, req *Request) (*Response, error)
	// Refresh obtains a new access token, sharing one network call between
	// concurrent callers.
	Refresh(ctx context.Context) (string, error)
	ShouldRefresh(ctx context.Context) bool
	BaseURL() string
}
