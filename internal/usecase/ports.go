package usecase

import (
	"context"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
)

// Reader reads keys from a store snapshot.
type Reader interface {
	Get(key string) ([]byte, bool, error)
}

// Txn is a write transaction. Set and Extend are buffered and applied together
// when the transaction function returns nil; nothing is applied otherwise.
// Get observes writes already buffered in the same transaction.
type Txn interface {
	Reader
	Set(key string, value []byte)
	Extend(lifetime domain.Lifetime)
}

// Store is a keyed dataset with a bounded lifetime. Implementations serialize
// conflicting Update calls and report domain.ErrArchived once the dataset
// lifetime has lapsed.
type Store interface {
	View(ctx context.Context, fn func(tx Reader) error) error
	Update(ctx context.Context, fn func(tx Txn) error) error
	// Restore revives an archived dataset and extends it to lifetime.
	Restore(ctx context.Context, lifetime domain.Lifetime) error
}

// Clock supplies creation timestamps.
type Clock interface {
	Now() uint64
}

// EventSink receives informational events. It must not fail the caller.
type EventSink interface {
	Emit(ctx context.Context, event greenledger.Event)
}
