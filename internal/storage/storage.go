// Package storage provides the durable per-user key-value store backing
// category statistics and account sets.
package storage

import "context"

// KV is the contract for the persistence layer. Values are opaque blobs
// keyed by (user id, key); the storage never interprets them.
type KV interface {
	// Get returns the value stored for the user under key, or
	// common.ErrNotFound.
	Get(ctx context.Context, userID int64, key string) ([]byte, error)
	// Set stores value for the user under key, replacing any previous value.
	Set(ctx context.Context, userID int64, key string, value []byte) error
	// Delete removes all keys stored for the user.
	Delete(ctx context.Context, userID int64) error
	// Users returns the ids of all users with at least one stored key.
	Users(ctx context.Context) ([]int64, error)
	// Close releases the underlying resources.
	Close() error
}
