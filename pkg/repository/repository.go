package repository

import (
	"context"
	"errors"

	"licensing-controlplane/pkg/db/option"

	"gorm.io/gorm"
)

// Repository is the generic persistence port. Query arguments are struct
// conditions: non-zero fields of the query value become WHERE clauses.
type Repository[T any] interface {
	// WithTrx rebinds the repository to a transaction handle so multi-step
	// mutations share one transaction scope.
	WithTrx(tx *gorm.DB) Repository[T]

	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, id string, values any) error
	BatchCreate(ctx context.Context, entities []*T) error
	BatchUpdate(ctx context.Context, entities []*T) error
	Count(ctx context.Context, query *T) (int64, error)
	// Delete removes every row matching the struct condition and reports how
	// many rows went away.
	Delete(ctx context.Context, query *T) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore returns a gorm-backed Repository for T.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	tx := s.db.WithContext(ctx).Model(new(T)).Where(query)
	tx = option.Apply(tx, opts...)

	var out []*T
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindOne returns (nil, nil) when no row matches; callers treat absence as a
// domain condition, not an error.
func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	tx := s.db.WithContext(ctx).Model(new(T)).Where(query)
	tx = option.Apply(tx, opts...)

	var out T
	if err := tx.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *store[T]) Create(ctx context.Context, entity *T) error {
	return s.db.WithContext(ctx).Create(entity).Error
}

func (s *store[T]) Update(ctx context.Context, id string, values any) error {
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *store[T]) BatchCreate(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(entities).Error
}

func (s *store[T]) BatchUpdate(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(entities).Error
}

func (s *store[T]) Count(ctx context.Context, query *T) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(new(T)).Where(query).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *store[T]) Delete(ctx context.Context, query *T) (int64, error) {
	res := s.db.WithContext(ctx).Where(query).Delete(new(T))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
