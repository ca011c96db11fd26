package model

import (
	"time"

	"gorm.io/datatypes"
)

// RSVPType is the ActivityStreams response kind.
type RSVPType string

const (
	RSVPAccept          RSVPType = "Accept"
	RSVPTentativeAccept RSVPType = "TentativeAccept"
	RSVPReject          RSVPType = "Reject"
)

// RSVP holds the latest response of one actor to one event.
type RSVP struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	EventID    int64          `gorm:"not null;uniqueIndex:ux_rsvp_event_actor"`
	ActorID    string         `gorm:"type:text;not null;uniqueIndex:ux_rsvp_event_actor"`
	RSVPType   RSVPType       `gorm:"column:rsvp_type;type:varchar(32);not null"`
	ActivityID string         `gorm:"type:text;not null"`
	ObjectID   *string        `gorm:"type:text"`
	Payload    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (RSVP) TableName() string { return "activitypub_rsvps" }
