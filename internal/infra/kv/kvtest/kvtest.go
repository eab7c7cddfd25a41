// Package kvtest holds behaviour shared by every usecase.Store implementation.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/usecase"
)

type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }

// Run exercises a store through the registry usecase. newStore must return an
// empty dataset on every call.
func Run(t *testing.T, newStore func(t *testing.T) usecase.Store) {
	t.Run("registry round trip", func(t *testing.T) {
		ctx := context.Background()
		uc := usecase.NewRegistryUsecase[domain.TreeCertificate](
			domain.CertificateRegistry, newStore(t), fixedClock(42), nil, domain.DefaultLifetime,
		)

		for want := uint64(1); want <= 3; want++ {
			id, err := uc.Create(ctx, "alice", domain.TreeCertificate{Species: "Oak", Location: "Riverside"})
			require.NoError(t, err)
			require.Equal(t, want, id)
		}
		require.NoError(t, uc.Verify(ctx, 2))
		require.NoError(t, uc.Verify(ctx, 2))
		require.ErrorIs(t, uc.Verify(ctx, 9), domain.ErrNotFound)

		stats, err := uc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Stats{TotalRecords: 3, VerifiedRecords: 1, CategoryCount: 1}, stats)

		rec, err := uc.Get(ctx, 2)
		require.NoError(t, err)
		assert.True(t, rec.Verified)
		assert.Equal(t, uint64(42), rec.CreatedAt)

		rec, err = uc.Get(ctx, 4)
		require.NoError(t, err)
		assert.False(t, rec.Found())
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		boom := errors.New("boom")

		err := store.Update(ctx, func(tx usecase.Txn) error {
			tx.Set("k", []byte("v"))
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = store.View(ctx, func(tx usecase.Reader) error {
			_, found, err := tx.Get("k")
			assert.False(t, found)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("concurrent creates allocate distinct ids", func(t *testing.T) {
		ctx := context.Background()
		uc := usecase.NewRegistryUsecase[domain.ArtPiece](
			domain.ArtPieceRegistry, newStore(t), fixedClock(1), nil, domain.DefaultLifetime,
		)

		const workers = 16
		ids := make(chan uint64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := uc.Create(ctx, "bob", domain.ArtPiece{Title: "t", Materials: "tin"})
				if err == nil {
					ids <- id
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[uint64]bool{}
		for id := range ids {
			assert.False(t, seen[id], "id %d allocated twice", id)
			seen[id] = true
		}

		stats, err := uc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(len(seen)), stats.TotalRecords)
	})
}
