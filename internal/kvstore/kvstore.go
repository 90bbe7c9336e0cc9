// Package kvstore provides the hash/set key-value store the task layer sits on.
// Keys are flat strings; record fields live in hashes, enumeration in sets.
// Read-your-writes per key, no transactions across keys.
package kvstore

import "context"

type Store interface {
	// GetHash returns all fields of a hash, or nil if the key does not exist.
	GetHash(ctx context.Context, key string) (map[string]string, error)
	// SetHash replaces the hash at key with fields.
	SetHash(ctx context.Context, key string, fields map[string]string) error
	// DeleteHash removes the hash at key. Missing keys are not an error.
	DeleteHash(ctx context.Context, key string) error
	// Keys returns every hash key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Members returns the members of a set, empty if the set does not exist.
	Members(ctx context.Context, setKey string) ([]string, error)
	AddMember(ctx context.Context, setKey, member string) error
	RemoveMember(ctx context.Context, setKey, member string) error
	Close() error
}
