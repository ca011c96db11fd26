package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Somerville-Events/somerville.events-sub000/internal/dedup"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

type EventRepository interface {
	Get(ctx context.Context, id int64) (*model.Event, error)
	// Insert stores e unless an equivalent event already exists. It returns the
	// id of the stored or matched event and whether a new row was created.
	Insert(ctx context.Context, e *model.Event) (id int64, created bool, err error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	// ListPage returns events in ascending id order.
	ListPage(ctx context.Context, offset, limit int) ([]*model.Event, error)
}

type eventRepository struct {
	db      *gorm.DB
	matcher *dedup.Matcher
}

func NewEventRepository(db *gorm.DB, matcher *dedup.Matcher) EventRepository {
	if matcher == nil {
		matcher = dedup.NewMatcher(dedup.DefaultNameThreshold, dedup.DefaultDescriptionThreshold)
	}
	return &eventRepository{db: db, matcher: matcher}
}

func (r *eventRepository) Get(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *eventRepository) Insert(ctx context.Context, e *model.Event) (int64, bool, error) {
	normalize(e)

	if id, ok, err := r.findDuplicate(ctx, e); err != nil {
		return 0, false, fmt.Errorf("duplicate lookup: %w", err)
	} else if ok {
		logger.Info("duplicate event, reusing existing id",
			zap.Int64("event_id", id), zap.String("name", e.Name))
		e.ID = id
		return id, false, nil
	}

	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return 0, false, fmt.Errorf("insert event: %w", err)
	}
	return e.ID, true, nil
}

// findDuplicate narrows candidates in SQL by exact slot, then applies the
// text similarity check in Go.
func (r *eventRepository) findDuplicate(ctx context.Context, e *model.Event) (int64, bool, error) {
	if e.ExternalID != nil {
		var existing model.Event
		err := r.db.WithContext(ctx).
			Where("source = ? AND external_id = ?", e.Source, *e.ExternalID).
			Take(&existing).Error
		if err == nil {
			return existing.ID, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, err
		}
	}

	q := r.db.WithContext(ctx).Where("start_date = ?", e.StartDate)
	q = nullSafeEq(q, "end_date", e.EndDate)
	if e.Address != nil {
		q = q.Where("address = ?", *e.Address)
	} else {
		q = q.Where("address IS NULL")
		q = nullSafeEq(q, "original_location", e.OriginalLocation)
	}

	var candidates []*model.Event
	if err := q.Order("id").Find(&candidates).Error; err != nil {
		return 0, false, err
	}
	for _, c := range candidates {
		if dedup.SameSlot(c, e) && r.matcher.IsDuplicate(c, e) {
			return c.ID, true, nil
		}
	}
	return 0, false, nil
}

func nullSafeEq[T any](q *gorm.DB, column string, v *T) *gorm.DB {
	if v == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *v)
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Event{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Event{}).Count(&cnt).Error
	return cnt, err
}

func (r *eventRepository) ListPage(ctx context.Context, offset, limit int) ([]*model.Event, error) {
	var res []*model.Event
	err := r.db.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

// normalize stores instants in UTC so exact-match lookups compare like with like.
func normalize(e *model.Event) {
	e.StartDate = e.StartDate.UTC()
	if e.EndDate != nil {
		end := e.EndDate.UTC()
		e.EndDate = &end
	}
	if e.Source == "" {
		e.Source = model.SourceImageUpload
	}
	e.Categories = model.NormalizeCategories(e.Categories)
}
