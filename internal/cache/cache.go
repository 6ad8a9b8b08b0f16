// Package cache holds rendered catalog responses for a short time so repeated
// list and detail reads skip the store.
package cache

import "context"

// Cache stores response bodies by canonical request key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	// Purge removes all cached values.
	Purge(ctx context.Context)
}
