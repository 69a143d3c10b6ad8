package credstore

import (
	"context"
)

// Store is durable key/value persistence for session artifacts. Absent keys
// are reported as (nil, nil). Each operation is atomic per key: a write either
// lands completely or not at all.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
