package models

import (
	"time"
)

// Payment records every order reference already applied to the ledger.
// The unique index on OrderReference is what makes grant idempotent
// against provider webhook retries.
type Payment struct {
	ID             uint    `gorm:"primaryKey"`
	UserID         uint    `gorm:"not null;index"`
	User           User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	OrderReference string  `gorm:"size:255;uniqueIndex;not null"`
	Amount         float64 `gorm:"not null"`
	Status         string  `gorm:"size:32"`
	CreatedAt      time.Time
}
