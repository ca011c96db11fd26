package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

type IdempotencyRepository interface {
	// Claim atomically marks key as used. Exactly one caller ever gets true.
	Claim(ctx context.Context, key string) (bool, error)
	// Release drops a claim whose job never started.
	Release(ctx context.Context, key string) error
}

type idempotencyRepository struct{ db *gorm.DB }

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) Claim(ctx context.Context, key string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.IdempotencyClaim{Key: key})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("idempotency_key = ?", key).Delete(&model.IdempotencyClaim{}).Error
}
