package models

import (
	"time"
)

// VIP grant parameters.
const (
	VIPDurationDays    = 365
	VIPReputationBonus = 50
)

// VIPSubscription records one completed VIP payment. The unique index on
// PaymentID is the at-most-once guard for settlement side effects: a second
// insert for the same payment loses on the index, never double-applies.
type VIPSubscription struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UserID          string    `gorm:"size:64;not null;index" json:"user_id"`
	PaymentID       string    `gorm:"uniqueIndex;size:128;not null" json:"payment_id"`
	Txid            string    `gorm:"size:128" json:"txid"`
	Amount          float64   `json:"amount"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ReputationBonus int       `gorm:"default:50" json:"reputation_bonus"`
}

// TableName overrides the table name
func (VIPSubscription) TableName() string {
	return "vip_subscriptions"
}

// Active reports whether the subscription covers the given instant.
func (s *VIPSubscription) Active(at time.Time) bool {
	return !at.Before(s.StartDate) && at.Before(s.EndDate)
}
