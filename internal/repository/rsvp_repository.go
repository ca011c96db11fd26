package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

type RSVPRepository interface {
	// Upsert stores r as the latest response of (EventID, ActorID).
	Upsert(ctx context.Context, r *model.RSVP) error
	Get(ctx context.Context, eventID int64, actorID string) (*model.RSVP, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*model.RSVP, error)
	Count(ctx context.Context) (int64, error)
}

type rsvpRepository struct{ db *gorm.DB }

func NewRSVPRepository(db *gorm.DB) RSVPRepository { return &rsvpRepository{db: db} }

func (r *rsvpRepository) Upsert(ctx context.Context, rsvp *model.RSVP) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rsvp_type", "activity_id", "object_id", "payload", "updated_at"}),
	}).Create(rsvp).Error
}

func (r *rsvpRepository) Get(ctx context.Context, eventID int64, actorID string) (*model.RSVP, error) {
	var rsvp model.RSVP
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND actor_id = ?", eventID, actorID).
		First(&rsvp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rsvp, nil
}

func (r *rsvpRepository) ListByEvent(ctx context.Context, eventID int64) ([]*model.RSVP, error) {
	var res []*model.RSVP
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&res).Error
	return res, err
}

func (r *rsvpRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.RSVP{}).Count(&cnt).Error
	return cnt, err
}
