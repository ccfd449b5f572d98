package models

import (
	"time"
)

// StatTotalTransactions counts provider-confirmed payouts.
const StatTotalTransactions = "total_transactions"

// AppStat is a named monotone counter. Incremented with a single-statement
// update so concurrent payouts never lose a count.
type AppStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Value     int64     `gorm:"default:0" json:"value"`
}

// TableName overrides the table name
func (AppStat) TableName() string {
	return "app_stats"
}

// ReputationScore is a legacy auxiliary record. Key is free-form historical
// data: a uid, a username, or a composite that merely contains the username.
type ReputationScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Key       string    `gorm:"uniqueIndex;size:255;not null" json:"key"`
	Score     int       `gorm:"default:0" json:"score"`
}

// TableName overrides the table name
func (ReputationScore) TableName() string {
	return "reputation_scores"
}
