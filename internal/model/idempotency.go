package model

import "time"

// IdempotencyClaim marks an upload token as used. Existence of the row is the claim.
type IdempotencyClaim struct {
	Key       string `gorm:"column:idempotency_key;primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

func (IdempotencyClaim) TableName() string { return "idempotency_keys" }
