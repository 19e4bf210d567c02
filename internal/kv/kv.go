// Package kv abstracts the external key-value store behind get/put. The
// store offers no prefix listing, no transactions, and no compare-and-swap;
// callers that need discovery maintain their own manifest record.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type KV interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value at key, unconditionally overwriting any prior value.
	Put(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}
