package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/infra/kv/kvtest"
	"github.com/totegamma/greenledger/internal/usecase"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(WithClock(clock.now)), clock
}

func get(t *testing.T, s *Store, key string) ([]byte, bool) {
	t.Helper()
	var (
		value []byte
		found bool
	)
	err := s.View(context.Background(), func(tx usecase.Reader) error {
		var err error
		value, found, err = tx.Get(key)
		return err
	})
	require.NoError(t, err)
	return value, found
}

func TestUpdateAppliesAllWrites(t *testing.T) {
	s, _ := newTestStore()

	err := s.Update(context.Background(), func(tx usecase.Txn) error {
		tx.Set("a", []byte("1"))
		tx.Set("b", []byte("2"))

		value, found, err := tx.Get("a")
		require.NoError(t, err)
		assert.True(t, found, "buffered writes must be visible inside the transaction")
		assert.Equal(t, []byte("1"), value)
		return nil
	})
	require.NoError(t, err)

	value, found := get(t, s, "b")
	assert.True(t, found)
	assert.Equal(t, []byte("2"), value)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s, _ := newTestStore()
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(tx usecase.Txn) error {
		tx.Set("a", []byte("1"))
		tx.Extend(domain.DefaultLifetime)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, found := get(t, s, "a")
	assert.False(t, found)
	assert.True(t, s.Deadline().IsZero(), "a failed transaction must not extend the lifetime")
}

func TestExtendHonoursThreshold(t *testing.T) {
	s, clock := newTestStore()
	lifetime := domain.Lifetime{Threshold: time.Hour, ExtendTo: 2 * time.Hour}
	write := func() {
		require.NoError(t, s.Update(context.Background(), func(tx usecase.Txn) error {
			tx.Set("k", []byte("v"))
			tx.Extend(lifetime)
			return nil
		}))
	}

	write()
	first := s.Deadline()
	assert.Equal(t, clock.t.Add(2*time.Hour), first)

	clock.t = clock.t.Add(30 * time.Minute)
	write()
	assert.Equal(t, first, s.Deadline(), "more than the threshold remains, no extension expected")

	clock.t = clock.t.Add(45 * time.Minute)
	write()
	assert.Equal(t, clock.t.Add(2*time.Hour), s.Deadline())
}

func TestArchivedDatasetRejectsAccessUntilRestored(t *testing.T) {
	s, clock := newTestStore()
	lifetime := domain.Lifetime{Threshold: time.Minute, ExtendTo: time.Minute}

	require.NoError(t, s.Update(context.Background(), func(tx usecase.Txn) error {
		tx.Set("counter", []byte("3"))
		tx.Extend(lifetime)
		return nil
	}))

	clock.t = clock.t.Add(2 * time.Minute)

	err := s.View(context.Background(), func(tx usecase.Reader) error { return nil })
	require.ErrorIs(t, err, domain.ErrArchived)
	err = s.Update(context.Background(), func(tx usecase.Txn) error { return nil })
	require.ErrorIs(t, err, domain.ErrArchived)

	require.NoError(t, s.Restore(context.Background(), lifetime))

	value, found := get(t, s, "counter")
	assert.True(t, found, "restore must keep archived entries")
	assert.Equal(t, []byte("3"), value)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s, _ := newTestStore()
	input := []byte("abc")
	require.NoError(t, s.Update(context.Background(), func(tx usecase.Txn) error {
		tx.Set("k", input)
		return nil
	}))
	input[0] = 'x'

	value, _ := get(t, s, "k")
	value[1] = 'y'

	again, _ := get(t, s, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestStoreBehaviour(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) usecase.Store { return New() })
}
