package model

import (
	"time"

	"gorm.io/datatypes"
)

// InboxActivity is the append-only audit row for a validated inbound activity.
type InboxActivity struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	ActivityID      string         `gorm:"type:text;not null;index"`
	ActivityType    string         `gorm:"type:varchar(32);not null;index:idx_inbox_event_type"`
	ActorID         string         `gorm:"type:text;not null"`
	ObjectID        *string        `gorm:"type:text"`
	ObjectType      *string        `gorm:"type:varchar(64)"`
	ObjectURL       *string        `gorm:"type:text"`
	ObjectContent   *string        `gorm:"type:text"`
	ObjectPublished *time.Time
	InReplyTo       *string        `gorm:"type:text"`
	EventID         *int64         `gorm:"index:idx_inbox_event_type"`
	Payload         datatypes.JSON `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"index"`
}

func (InboxActivity) TableName() string { return "activitypub_inbox_activities" }
