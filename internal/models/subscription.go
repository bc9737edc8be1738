package models

import (
	"time"
)

// Subscription is the authoritative entitlement record, one row per user.
// Active implies a set ExpiryDate; InviteLink exists only while active.
type Subscription struct {
	ID                uint `gorm:"primaryKey"`
	UserID            uint `gorm:"uniqueIndex;not null"`
	User              User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Active            bool `gorm:"default:false"`
	StartDate         time.Time
	ExpiryDate        time.Time
	TariffLabel       string `gorm:"size:100"`
	InviteLink        string `gorm:"size:512"`
	RecurringOrderRef string `gorm:"size:255"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
