package model

import "time"

// Follower is a remote actor following the local service actor.
type Follower struct {
	ActorID        string  `gorm:"primaryKey;type:text"`
	ActorURL       string  `gorm:"type:text;not null"`
	InboxURL       string  `gorm:"type:text;not null"`
	SharedInboxURL *string `gorm:"type:text"`
	PublicKeyPEM   *string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Follower) TableName() string { return "activitypub_followers" }

// DeliveryInbox is where activities for this follower are POSTed.
func (f *Follower) DeliveryInbox() string {
	if f.SharedInboxURL != nil && *f.SharedInboxURL != "" {
		return *f.SharedInboxURL
	}
	return f.InboxURL
}
