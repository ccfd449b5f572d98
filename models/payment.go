package models

import (
	"time"
)

// Payment lifecycle states. Completed, Rejected and Failed are terminal.
const (
	PaymentStateCreated   = "created"
	PaymentStateApproved  = "approved"
	PaymentStateCompleted = "completed"
	PaymentStateRejected  = "rejected"
	PaymentStateFailed    = "failed"
)

// Payment directions. User-to-app payments go through approve/complete;
// app-to-user payouts are initiated by the application itself.
const (
	DirectionUserToApp = "user_to_app"
	DirectionAppToUser = "app_to_user"
)

// Payment mirrors one Pi Platform payment as this system last saw it.
// State transitions are driven by calls to the provider; the provider's
// record is authoritative, this row tracks what we did about it.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	PaymentID string    `gorm:"uniqueIndex;size:128;not null" json:"payment_id"`
	UID       string    `gorm:"size:64" json:"uid"`
	Amount    float64   `json:"amount"`
	Memo      string    `gorm:"size:255" json:"memo"`
	Metadata  string    `gorm:"type:text" json:"metadata"` // JSON blob from the provider
	State     string    `gorm:"size:20;default:'created'" json:"state"`
	Txid      string    `gorm:"size:128" json:"txid,omitempty"`
	Direction string    `gorm:"size:20;default:'user_to_app'" json:"direction"`
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}

// Terminal reports whether the payment can transition no further.
func (p *Payment) Terminal() bool {
	switch p.State {
	case PaymentStateCompleted, PaymentStateRejected, PaymentStateFailed:
		return true
	}
	return false
}
