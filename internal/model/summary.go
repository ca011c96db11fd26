package model

import "time"

// ActivityPubSummary aggregates federation interactions with one event. Never stored.
type ActivityPubSummary struct {
	Likes     int64 `json:"likes"`
	Boosts    int64 `json:"boosts"`
	Replies   int64 `json:"replies"`
	RSVPYes   int64 `json:"rsvp_yes"`
	RSVPMaybe int64 `json:"rsvp_maybe"`
	RSVPNo    int64 `json:"rsvp_no"`
}

// Comment is a reply note received for an event.
type Comment struct {
	ActorID   string     `json:"actor_id"`
	ObjectURL *string    `json:"url,omitempty"`
	Content   string     `json:"content"`
	Published *time.Time `json:"published,omitempty"`
}

// All lists the models owned by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Event{},
		&IdempotencyClaim{},
		&Follower{},
		&InboxActivity{},
		&RSVP{},
	}
}
