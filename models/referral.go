package models

import (
	"time"
)

// Referral statuses. Confirmed and rejected are terminal.
const (
	ReferralStatusPending   = "pending"
	ReferralStatusConfirmed = "confirmed"
	ReferralStatusRejected  = "rejected"
)

// Referral is one attribution edge: referrer brought referred. A wallet may
// be referred at most once, enforced by the unique index on ReferredWallet.
type Referral struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ReferrerCode   string     `gorm:"size:64;not null;index" json:"referrer_code"`
	ReferrerWallet string     `gorm:"size:64;index" json:"referrer_wallet,omitempty"`
	ReferredWallet string     `gorm:"uniqueIndex;size:64;not null" json:"referred_wallet"`
	Status         string     `gorm:"size:20;default:'pending'" json:"status"`
	PointsAwarded  int        `gorm:"default:0" json:"points_awarded"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// TableName overrides the table name
func (Referral) TableName() string {
	return "referrals"
}

// Terminal reports whether the referral reached a final status.
func (r *Referral) Terminal() bool {
	return r.Status == ReferralStatusConfirmed || r.Status == ReferralStatusRejected
}

// ReferralClaim is the per-wallet claim ledger. TotalClaimed only ever
// grows; one row per wallet.
type ReferralClaim struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	WalletAddress string    `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	TotalClaimed  int       `gorm:"default:0" json:"total_claimed"`
	LastClaimDate time.Time `json:"last_claim_date"`
}

// TableName overrides the table name
func (ReferralClaim) TableName() string {
	return "referral_claims"
}

// ReferralStats summarizes one referrer wallet for the API layer.
type ReferralStats struct {
	Wallet          string `json:"wallet"`
	TotalReferrals  int64  `json:"total_referrals"`
	Confirmed       int64  `json:"confirmed"`
	Pending         int64  `json:"pending"`
	ConfirmedPoints int    `json:"confirmed_points"`
	TotalClaimed    int    `json:"total_claimed"`
	Available       int    `json:"available"`
}
