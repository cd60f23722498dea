package storage

import (
	"context"
	"errors"
	"fmt"
)

// Object is one converted file ready to be stored.
type Object struct {
	Name        string
	ContentType string
	// Owner is the username the file belongs to; remote sinks use it in
	// the key.
	Owner string
	Data  []byte
}

// Sink stores objects and returns where each one ended up: a filesystem
// path or a URL.
type Sink interface {
	Save(ctx context.Context, obj Object) (string, error)
}

// Multi saves to every sink in order and stops at the first failure.
type Multi []Sink

func (m Multi) Save(ctx context.Context, obj Object) (string, error) {
	locs, err := m.SaveAll(ctx, obj)
	if len(locs) == 0 {
		return "", err
	}
	return locs[0], err
}

// SaveAll is Save returning every location written before any failure.
func (m Multi) SaveAll(ctx context.Context, obj Object) ([]string, error) {
	if len(m) == 0 {
		return nil, errors.New("no storage sink configured")
	}
	locs := make([]string, 0, len(m))
	for _, s := range m {
		loc, err := s.Save(ctx, obj)
		if err != nil {
			return locs, fmt.Errorf("save %s: %w", obj.Name, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}
