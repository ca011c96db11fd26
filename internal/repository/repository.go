package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Somerville-Events/somerville.events-sub000/internal/dedup"
)

var ErrNotFound = errors.New("record not found")

// Repository bundles every store the service talks to. It is the only place
// shared mutable state lives; concurrency control happens in the database.
type Repository struct {
	Events      EventRepository
	Idempotency IdempotencyRepository
	Followers   FollowerRepository
	Inbox       InboxActivityRepository
	RSVPs       RSVPRepository
}

// New wires the gorm-backed repositories over one connection pool.
func New(db *gorm.DB, matcher *dedup.Matcher) *Repository {
	return &Repository{
		Events:      NewEventRepository(db, matcher),
		Idempotency: NewIdempotencyRepository(db),
		Followers:   NewFollowerRepository(db),
		Inbox:       NewInboxActivityRepository(db),
		RSVPs:       NewRSVPRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
