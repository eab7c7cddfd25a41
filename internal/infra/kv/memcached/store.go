// Package memcached puts a read-through memcache layer in front of another Store.
package memcached

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/usecase"
)

// DefaultTTL bounds how long a value written by another process may be served stale.
const DefaultTTL int32 = 30

type cacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Delete(key string) error
}

// Store serves View reads from memcache and falls back to the inner store.
// Update always reads from the inner store and refreshes the cache only after
// the inner commit succeeded.
type Store struct {
	inner  usecase.Store
	client cacheClient
	prefix string
	ttl    int32
}

func New(inner usecase.Store, client cacheClient, dataset string) *Store {
	return &Store{
		inner:  inner,
		client: client,
		prefix: "greenledger:" + dataset + ":",
		ttl:    DefaultTTL,
	}
}

// cacheKey hashes the store key; memcache rejects keys with spaces or over 250 bytes.
func (s *Store) cacheKey(key string) string {
	sum := xxh3.HashString128(key).Bytes()
	return s.prefix + hex.EncodeToString(sum[:])
}

func (s *Store) View(ctx context.Context, fn func(tx usecase.Reader) error) error {
	return s.inner.View(ctx, func(tx usecase.Reader) error {
		return fn(&reader{ctx: ctx, store: s, inner: tx})
	})
}

func (s *Store) Update(ctx context.Context, fn func(tx usecase.Txn) error) error {
	var written map[string][]byte
	err := s.inner.Update(ctx, func(tx usecase.Txn) error {
		rec := &recorder{Txn: tx, writes: map[string][]byte{}}
		if err := fn(rec); err != nil {
			return err
		}
		written = rec.writes
		return nil
	})
	if err != nil {
		return err
	}

	for key, value := range written {
		s.fill(ctx, key, value)
	}
	return nil
}

// Restore drops nothing from the cache: archived datasets keep their values.
func (s *Store) Restore(ctx context.Context, lifetime domain.Lifetime) error {
	return s.inner.Restore(ctx, lifetime)
}

func (s *Store) fill(ctx context.Context, key string, value []byte) {
	err := s.client.Set(&memcache.Item{
		Key:        s.cacheKey(key),
		Value:      value,
		Expiration: s.ttl,
	})
	if err == nil {
		return
	}

	slog.WarnContext(
		ctx, "memcache set failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
		slog.String("module", "memcached"),
	)
	// a stale entry would outlive the commit; drop it
	if err := s.client.Delete(s.cacheKey(key)); err != nil && err != memcache.ErrCacheMiss {
		slog.WarnContext(
			ctx, "memcache delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "memcached"),
		)
	}
}

// add caches a value read from the inner store unless a commit already
// cached a newer one.
func (s *Store) add(ctx context.Context, key string, value []byte) {
	err := s.client.Add(&memcache.Item{
		Key:        s.cacheKey(key),
		Value:      value,
		Expiration: s.ttl,
	})
	if err != nil && err != memcache.ErrNotStored {
		slog.DebugContext(
			ctx, "memcache add failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "memcached"),
		)
	}
}

type reader struct {
	ctx   context.Context
	store *Store
	inner usecase.Reader
}

func (r *reader) Get(key string) ([]byte, bool, error) {
	item, err := r.store.client.Get(r.store.cacheKey(key))
	if err == nil {
		return item.Value, true, nil
	}
	if err != memcache.ErrCacheMiss {
		slog.DebugContext(
			r.ctx, "memcache get failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "memcached"),
		)
	}

	value, found, err := r.inner.Get(key)
	if err != nil || !found {
		return value, found, err
	}
	r.store.add(r.ctx, key, value)
	return value, true, nil
}

type recorder struct {
	usecase.Txn
	writes map[string][]byte
}

func (r *recorder) Set(key string, value []byte) {
	r.writes[key] = value
	r.Txn.Set(key, value)
}

var _ usecase.Store = (*Store)(nil)
