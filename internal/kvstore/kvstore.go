// Package kvstore abstracts the client-persistent key-value storage the
// duplicate guard uses to remember "already registered" markers across
// sessions. The backend stays authoritative; this is only a cache.
package kvstore

import "context"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
