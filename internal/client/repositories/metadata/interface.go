package metadata

import (
	"context"
)

// Repository is a small key/value store for session material: the access
// token, its timestamp, the cached profile, the refresh cookie and the theme.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string, more ...string) error
}
