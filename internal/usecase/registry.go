package usecase

import (
	"context"
	"errors"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
)

var tracer = otel.Tracer("registry")

// RegistryUsecase allocates ids, stores records and keeps Stats in lock-step
// with them. Every mutation runs inside a single store transaction.
type RegistryUsecase[P domain.Payload[P]] struct {
	name     string
	store    Store
	clock    Clock
	events   EventSink
	lifetime domain.Lifetime
}

func NewRegistryUsecase[P domain.Payload[P]](
	name string,
	store Store,
	clock Clock,
	events EventSink,
	lifetime domain.Lifetime,
) *RegistryUsecase[P] {
	return &RegistryUsecase[P]{
		name:     name,
		store:    store,
		clock:    clock,
		events:   events,
		lifetime: lifetime,
	}
}

func (uc *RegistryUsecase[P]) Name() string {
	return uc.name
}

// Create stores a new unverified record and returns its id.
func (uc *RegistryUsecase[P]) Create(ctx context.Context, owner string, payload P) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Create")
	defer span.End()
	span.SetAttributes(attribute.String("registry", uc.name))

	var record domain.Record[P]
	err := uc.store.Update(ctx, func(tx Txn) error {
		var counter uint64
		if _, err := load(tx, counterKey, &counter); err != nil {
			return err
		}
		if counter == math.MaxUint64 {
			return domain.ErrOverflow
		}

		record = domain.Record[P]{
			ID:        counter + 1,
			Owner:     owner,
			Payload:   payload,
			CreatedAt: uc.clock.Now(),
			Verified:  false,
		}

		var stats domain.Stats
		if _, err := load(tx, statsKey, &stats); err != nil {
			return err
		}
		stats.TotalRecords++

		if category := payload.Category(); category != "" {
			_, seen, err := tx.Get(categoryKey(category))
			if err != nil {
				return err
			}
			if !seen {
				stats.CategoryCount++
				tx.Set(categoryKey(category), []byte(category))
			}
		}

		if err := put(tx, recordKey(record.ID), record); err != nil {
			return err
		}
		if err := put(tx, counterKey, record.ID); err != nil {
			return err
		}
		if err := put(tx, statsKey, stats); err != nil {
			return err
		}
		tx.Extend(uc.lifetime)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("id", int64(record.ID)))
	uc.emit(ctx, greenledger.EventCreated, record.ID, owner)

	return record.ID, nil
}

// Verify marks a record verified. Verifying an already verified record is a
// successful no-op and leaves Stats untouched.
func (uc *RegistryUsecase[P]) Verify(ctx context.Context, id uint64) error {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("registry", uc.name), attribute.Int64("id", int64(id)))

	var (
		record  domain.Record[P]
		changed bool
	)
	err := uc.store.Update(ctx, func(tx Txn) error {
		// stores may run fn again after a conflict
		changed = false
		found, err := load(tx, recordKey(id), &record)
		if err != nil {
			return err
		}
		if !found {
			return domain.NotFoundError{Resource: "record"}
		}
		if record.Verified {
			return nil
		}

		record.Verified = true

		var stats domain.Stats
		if _, err := load(tx, statsKey, &stats); err != nil {
			return err
		}
		stats.VerifiedRecords++

		if err := put(tx, recordKey(id), record); err != nil {
			return err
		}
		if err := put(tx, statsKey, stats); err != nil {
			return err
		}
		tx.Extend(uc.lifetime)
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.emit(ctx, greenledger.EventNotFound, id, "")
		}
		span.RecordError(err)
		return err
	}

	if changed {
		uc.emit(ctx, greenledger.EventVerified, id, record.Owner)
	} else {
		uc.emit(ctx, greenledger.EventAlreadyVerified, id, record.Owner)
	}
	return nil
}

// Get returns the record or, if absent, the not-found sentinel with ID 0.
// Errors are reserved for store failures.
func (uc *RegistryUsecase[P]) Get(ctx context.Context, id uint64) (domain.Record[P], error) {
	record, found, err := uc.Lookup(ctx, id)
	if err != nil {
		return domain.Record[P]{}, err
	}
	if !found {
		return domain.NotFoundRecord[P](), nil
	}
	return record, nil
}

// Lookup is Get with an explicit presence flag instead of the sentinel.
func (uc *RegistryUsecase[P]) Lookup(ctx context.Context, id uint64) (domain.Record[P], bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Lookup")
	defer span.End()

	var (
		record domain.Record[P]
		found  bool
	)
	err := uc.store.View(ctx, func(tx Reader) error {
		var err error
		found, err = load(tx, recordKey(id), &record)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.Record[P]{}, false, err
	}

	return record, found, nil
}

func (uc *RegistryUsecase[P]) Stats(ctx context.Context) (domain.Stats, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Stats")
	defer span.End()

	var stats domain.Stats
	err := uc.store.View(ctx, func(tx Reader) error {
		_, err := load(tx, statsKey, &stats)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.Stats{}, err
	}

	return stats, nil
}

// Restore revives an archived dataset. Records, counter and stats are kept as they were.
func (uc *RegistryUsecase[P]) Restore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Restore")
	defer span.End()

	if err := uc.store.Restore(ctx, uc.lifetime); err != nil {
		span.RecordError(err)
		return err
	}

	uc.emit(ctx, greenledger.EventRestored, 0, "")
	return nil
}

func (uc *RegistryUsecase[P]) emit(ctx context.Context, typ greenledger.EventType, id uint64, owner string) {
	if uc.events == nil {
		return
	}
	uc.events.Emit(ctx, greenledger.Event{
		Type:      typ,
		Registry:  uc.name,
		RecordID:  id,
		URI:       greenledger.ComposeRecordURI(uc.name, id),
		Owner:     owner,
		Timestamp: uc.clock.Now(),
	})
}
