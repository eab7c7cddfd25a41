// Package postgres stores datasets as rows of a key/value table. Each commit
// locks the dataset row so concurrent commits run one after another.
package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/internal/infra/database/models"
	"github.com/totegamma/greenledger/internal/usecase"
)

type Store struct {
	db      *gorm.DB
	dataset string
	now     func() time.Time
}

func New(db *gorm.DB, dataset string) *Store {
	return &Store{db: db, dataset: dataset, now: time.Now}
}

func (s *Store) archived(ds models.Dataset) bool {
	return ds.ExpiresAt != nil && s.now().After(*ds.ExpiresAt)
}

func (s *Store) View(ctx context.Context, fn func(tx usecase.Reader) error) error {
	var ds models.Dataset
	err := s.db.WithContext(ctx).Where("name = ?", s.dataset).Take(&ds).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(err, "load dataset %s", s.dataset)
	}
	if s.archived(ds) {
		return domain.ErrArchived
	}
	return fn(&reader{ctx: ctx, db: s.db, dataset: s.dataset})
}

func (s *Store) Update(ctx context.Context, fn func(tx usecase.Txn) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		ds, err := s.lock(db)
		if err != nil {
			return err
		}
		if s.archived(ds) {
			return domain.ErrArchived
		}

		tx := &txn{
			reader: reader{ctx: ctx, db: db, dataset: s.dataset},
			writes: map[string][]byte{},
		}
		if err := fn(tx); err != nil {
			return err
		}

		now := s.now()
		for key, value := range tx.writes {
			entry := models.Entry{
				Dataset: s.dataset,
				Key:     key,
				Value:   value,
				MDate:   now,
			}
			err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "dataset"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "m_date"}),
			}).Create(&entry).Error
			if err != nil {
				return errors.Wrapf(err, "write %s/%s", s.dataset, key)
			}
		}

		var deadline time.Time
		if ds.ExpiresAt != nil {
			deadline = *ds.ExpiresAt
		}
		if tx.extend != nil && tx.extend.NeedsExtension(deadline, now) {
			if err := s.setExpiry(db, now.Add(tx.extend.ExtendTo)); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) Restore(ctx context.Context, lifetime domain.Lifetime) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if _, err := s.lock(db); err != nil {
			return err
		}
		return s.setExpiry(db, s.now().Add(lifetime.ExtendTo))
	})
}

// lock creates the dataset row on first use and takes a row lock on it.
func (s *Store) lock(db *gorm.DB) (models.Dataset, error) {
	err := db.Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.Dataset{Name: s.dataset}).Error
	if err != nil {
		return models.Dataset{}, errors.Wrapf(err, "create dataset %s", s.dataset)
	}

	var ds models.Dataset
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", s.dataset).
		Take(&ds).Error
	if err != nil {
		return models.Dataset{}, errors.Wrapf(err, "lock dataset %s", s.dataset)
	}
	return ds, nil
}

func (s *Store) setExpiry(db *gorm.DB, expiresAt time.Time) error {
	err := db.Model(&models.Dataset{}).
		Where("name = ?", s.dataset).
		Update("expires_at", expiresAt).Error
	if err != nil {
		return errors.Wrapf(err, "extend dataset %s", s.dataset)
	}
	return nil
}

type reader struct {
	ctx     context.Context
	db      *gorm.DB
	dataset string
}

func (r *reader) Get(key string) ([]byte, bool, error) {
	var entry models.Entry
	err := r.db.WithContext(r.ctx).
		Where("dataset = ? AND key = ?", r.dataset, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read %s/%s", r.dataset, key)
	}
	return entry.Value, true, nil
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
