package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
)

type InboxActivityRepository interface {
	Insert(ctx context.Context, a *model.InboxActivity) error
	Count(ctx context.Context) (int64, error)
	Summary(ctx context.Context, eventID int64) (*model.ActivityPubSummary, error)
	ListComments(ctx context.Context, eventID int64, limit int) ([]*model.Comment, error)
}

type inboxActivityRepository struct{ db *gorm.DB }

func NewInboxActivityRepository(db *gorm.DB) InboxActivityRepository {
	return &inboxActivityRepository{db: db}
}

func (r *inboxActivityRepository) Insert(ctx context.Context, a *model.InboxActivity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *inboxActivityRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.InboxActivity{}).Count(&cnt).Error
	return cnt, err
}

// Summary counts likes, boosts and replies from the audit log and RSVPs from
// their latest-wins table.
func (r *inboxActivityRepository) Summary(ctx context.Context, eventID int64) (*model.ActivityPubSummary, error) {
	type typeCount struct {
		Kind string
		N    int64
	}
	var s model.ActivityPubSummary

	var activity []typeCount
	err := r.db.WithContext(ctx).
		Model(&model.InboxActivity{}).
		Select("activity_type AS kind, COUNT(DISTINCT activity_id) AS n").
		Where("event_id = ? AND activity_type IN ?", eventID, []string{"Like", "Announce"}).
		Group("activity_type").
		Scan(&activity).Error
	if err != nil {
		return nil, err
	}
	for _, c := range activity {
		switch c.Kind {
		case "Like":
			s.Likes = c.N
		case "Announce":
			s.Boosts = c.N
		}
	}

	if err := r.db.WithContext(ctx).
		Model(&model.InboxActivity{}).
		Where("event_id = ? AND activity_type = ? AND in_reply_to IS NOT NULL", eventID, "Create").
		Distinct("activity_id").
		Count(&s.Replies).Error; err != nil {
		return nil, err
	}

	var rsvps []typeCount
	err = r.db.WithContext(ctx).
		Model(&model.RSVP{}).
		Select("rsvp_type AS kind, COUNT(*) AS n").
		Where("event_id = ?", eventID).
		Group("rsvp_type").
		Scan(&rsvps).Error
	if err != nil {
		return nil, err
	}
	for _, c := range rsvps {
		switch model.RSVPType(c.Kind) {
		case model.RSVPAccept:
			s.RSVPYes = c.N
		case model.RSVPTentativeAccept:
			s.RSVPMaybe = c.N
		case model.RSVPReject:
			s.RSVPNo = c.N
		}
	}
	return &s, nil
}

// ListComments returns the newest reply notes for an event.
func (r *inboxActivityRepository) ListComments(ctx context.Context, eventID int64, limit int) ([]*model.Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	// first delivery of each reply; peers may re-send the same activity
	firstSeen := r.db.Model(&model.InboxActivity{}).
		Select("MIN(id)").
		Where("event_id = ? AND activity_type = ? AND in_reply_to IS NOT NULL AND object_content IS NOT NULL", eventID, "Create").
		Group("activity_id")

	var rows []*model.InboxActivity
	err := r.db.WithContext(ctx).
		Where("id IN (?)", firstSeen).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]*model.Comment, len(rows))
	for i, row := range rows {
		res[i] = &model.Comment{
			ActorID:   row.ActorID,
			ObjectURL: row.ObjectURL,
			Content:   *row.ObjectContent,
			Published: row.ObjectPublished,
		}
	}
	return res, nil
}
