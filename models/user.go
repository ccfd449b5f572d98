package models

import (
	"time"
)

// Wallet placeholder values used by historical ingestion paths. A real
// address never gets replaced by either of these once recorded.
const (
	WalletNotLinked = "Not Linked"
	WalletPending   = "Pending"
)

// User is a canonical pioneer record, the single authoritative row per
// identity produced by reconciliation. Identity key is UID when present,
// otherwise Username.
type User struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	UID             string    `gorm:"index;size:64" json:"uid,omitempty"`
	Username        string    `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Wallet          string    `gorm:"size:64" json:"wallet"`
	IsVIP           bool      `gorm:"column:is_vip;default:false" json:"is_vip"`
	ReputationScore int       `gorm:"default:0" json:"reputation_score"`
	LastSeen        time.Time `json:"last_seen"`
	Source          string    `gorm:"size:50" json:"source"` // ingestion path that last touched the row
}

// TableName overrides the table name
func (User) TableName() string {
	return "final_users"
}

// IdentityKey returns the merge key reconciliation groups by.
func (u *User) IdentityKey() string {
	if u.UID != "" {
		return u.UID
	}
	return u.Username
}

// HasLinkedWallet reports whether the wallet field holds a real address
// rather than a placeholder.
func (u *User) HasLinkedWallet() bool {
	return u.Wallet != "" && u.Wallet != WalletNotLinked && u.Wallet != WalletPending
}

// EnrichedUser is a User joined with the auxiliary VIP markers and
// reputation records the aggregator consults.
type EnrichedUser struct {
	User
	VIPMarker      bool `json:"vip_marker"`
	LegacyScore    int  `json:"legacy_score"`
	AmbiguousMatch bool `json:"ambiguous_match,omitempty"` // legacy substring join fired without an exact hit
}
