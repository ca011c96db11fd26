package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

type FollowerRepository interface {
	Upsert(ctx context.Context, f *model.Follower) error
	Delete(ctx context.Context, actorID string) error
	List(ctx context.Context) ([]*model.Follower, error)
	Count(ctx context.Context) (int64, error)
}

type followerRepository struct {
	db *gorm.DB
}

func NewFollowerRepository(db *gorm.DB) FollowerRepository { return &followerRepository{db: db} }

// Upsert keeps one row per actor; a re-follow refreshes inbox and key data.
func (r *followerRepository) Upsert(ctx context.Context, f *model.Follower) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"actor_url", "inbox_url", "shared_inbox_url", "public_key_pem", "updated_at"}),
	}).Create(f).Error
}

// Delete is idempotent: removing an unknown actor is not an error.
func (r *followerRepository) Delete(ctx context.Context, actorID string) error {
	return r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Delete(&model.Follower{}).Error
}

func (r *followerRepository) List(ctx context.Context) ([]*model.Follower, error) {
	var res []*model.Follower
	err := r.db.WithContext(ctx).Order("created_at, actor_id").Find(&res).Error
	return res, err
}

func (r *followerRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Follower{}).Count(&cnt).Error
	return cnt, err
}
