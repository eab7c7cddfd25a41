// Package redis stores a dataset in a single redis hash. Commits use
// WATCH/MULTI/EXEC so concurrent writers never interleave.
package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/usecase"
)

const maxRetries = 8

// ErrConflict is returned when optimistic retries are exhausted.
var ErrConflict = errors.New("concurrent update conflict")

type Store struct {
	client      redis.UniversalClient
	hash        string
	deadlineKey string
	now         func() time.Time
}

func New(client redis.UniversalClient, dataset string) *Store {
	return &Store{
		client:      client,
		hash:        "greenledger:" + dataset,
		deadlineKey: "greenledger:" + dataset + ":deadline",
		now:         time.Now,
	}
}

// getter is the read surface shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (s *Store) deadline(ctx context.Context, cmd getter) (time.Time, error) {
	ms, err := cmd.Get(ctx, s.deadlineKey).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "read deadline of %s", s.hash)
	}
	return time.UnixMilli(ms), nil
}

func archived(deadline, now time.Time) bool {
	return !deadline.IsZero() && now.After(deadline)
}

func (s *Store) View(ctx context.Context, fn func(tx usecase.Reader) error) error {
	deadline, err := s.deadline(ctx, s.client)
	if err != nil {
		return err
	}
	if archived(deadline, s.now()) {
		return domain.ErrArchived
	}
	return fn(&reader{ctx: ctx, cmd: s.client, hash: s.hash})
}

func (s *Store) Update(ctx context.Context, fn func(tx usecase.Txn) error) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			deadline, err := s.deadline(ctx, rtx)
			if err != nil {
				return err
			}
			now := s.now()
			if archived(deadline, now) {
				return domain.ErrArchived
			}

			tx := &txn{
				reader: reader{ctx: ctx, cmd: rtx, hash: s.hash},
				writes: map[string][]byte{},
			}
			if err := fn(tx); err != nil {
				return err
			}

			extend := tx.extend != nil && tx.extend.NeedsExtension(deadline, now)
			if len(tx.writes) == 0 && !extend {
				return nil
			}

			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if len(tx.writes) > 0 {
					values := make(map[string]any, len(tx.writes))
					for key, value := range tx.writes {
						values[key] = value
					}
					pipe.HSet(ctx, s.hash, values)
				}
				if extend {
					pipe.Set(ctx, s.deadlineKey, now.Add(tx.extend.ExtendTo).UnixMilli(), 0)
				}
				return nil
			})
			return err
		}, s.hash, s.deadlineKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return errors.Wrapf(ErrConflict, "update %s", s.hash)
}

func (s *Store) Restore(ctx context.Context, lifetime domain.Lifetime) error {
	err := s.client.Set(ctx, s.deadlineKey, s.now().Add(lifetime.ExtendTo).UnixMilli(), 0).Err()
	if err != nil {
		return errors.Wrapf(err, "restore %s", s.hash)
	}
	return nil
}

type reader struct {
	ctx  context.Context
	cmd  getter
	hash string
}

func (r *reader) Get(key string) ([]byte, bool, error) {
	value, err := r.cmd.HGet(r.ctx, r.hash, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "hget %s %s", r.hash, key)
	}
	return value, true, nil
}

type txn struct {
	reader
	writes map[string][]byte
	extend *domain.Lifetime
}

func (t *txn) Get(key string) ([]byte, bool, error) {
	if value, ok := t.writes[key]; ok {
		return value, true, nil
	}
	return t.reader.Get(key)
}

func (t *txn) Set(key string, value []byte) {
	t.writes[key] = value
}

func (t *txn) Extend(lifetime domain.Lifetime) {
	t.extend = &lifetime
}

var _ usecase.Store = (*Store)(nil)
