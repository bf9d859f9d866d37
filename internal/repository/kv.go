package repository

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("not found")

// KVStore persists opaque values by key. Get returns ErrNotFound for a missing
// key; Delete of a missing key is not an error.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// namespacedKV prefixes every key so several stores can share one backend
type namespacedKV struct {
	next   KVStore
	prefix string
}

// WithNamespace scopes kv to keys under "<ns>:". An empty ns returns kv as is.
func WithNamespace(kv KVStore, ns string) KVStore {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return kv
	}
	return &namespacedKV{next: kv, prefix: ns + ":"}
}

func (n *namespacedKV) Get(ctx context.Context, key string) ([]byte, error) {
	return n.next.Get(ctx, n.prefix+key)
}

func (n *namespacedKV) Set(ctx context.Context, key string, value []byte) error {
	return n.next.Set(ctx, n.prefix+key, value)
}

func (n *namespacedKV) Delete(ctx context.Context, key string) error {
	return n.next.Delete(ctx, n.prefix+key)
}

func (n *namespacedKV) Keys(ctx context.Context) ([]string, error) {
	all, err := n.next.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, n.prefix) {
			keys = append(keys, strings.TrimPrefix(k, n.prefix))
		}
	}
	return keys, nil
}

func (n *namespacedKV) Close() error {
	return n.next.Close()
}
