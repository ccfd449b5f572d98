// Package referrals records referral attribution edges and the per-wallet
// claim ledger. A wallet can be referred once, a referral settles once, and
// claimed points only ever grow.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pi-pioneer-hub/apperr"
	"github.com/yourusername/pi-pioneer-hub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Tracker struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewTracker(db *gorm.DB, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tracker{db: db, logger: logger}
}

// Create records a pending referral edge. The unique index on
// referred_wallet turns a second referral of the same wallet into a
// conflict, never an overwrite.
func (t *Tracker) Create(ctx context.Context, referrerCode, referrerWallet, referredWallet string) (*models.Referral, error) {
	if referrerCode == "" {
		return nil, apperr.MissingField("referrerCode")
	}
	if referredWallet == "" {
		return nil, apperr.MissingField("referredWallet")
	}

	ref := models.Referral{
		ReferrerCode:   referrerCode,
		ReferrerWallet: referrerWallet,
		ReferredWallet: referredWallet,
		Status:         models.ReferralStatusPending,
	}
	if err := t.db.WithContext(ctx).Create(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("wallet %s already referred", referredWallet)
		}
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}
	return &ref, nil
}

// Confirm moves a pending referral to confirmed and records the points it
// awards. The guarded update makes the transition happen exactly once even
// under concurrent confirmations.
func (t *Tracker) Confirm(ctx context.Context, referredWallet string, points int) (*models.Referral, error) {
	return t.settle(ctx, referredWallet, models.ReferralStatusConfirmed, points)
}

// Reject moves a pending referral to rejected.
func (t *Tracker) Reject(ctx context.Context, referredWallet string) (*models.Referral, error) {
	return t.settle(ctx, referredWallet, models.ReferralStatusRejected, 0)
}

func (t *Tracker) settle(ctx context.Context, referredWallet, status string, points int) (*models.Referral, error) {
	if referredWallet == "" {
		return nil, apperr.MissingField("referredWallet")
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":         status,
		"points_awarded": points,
	}
	if status == models.ReferralStatusConfirmed {
		updates["confirmed_at"] = now
	}

	tx := t.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referred_wallet = ? AND status = ?", referredWallet, models.ReferralStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to settle referral: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		var ref models.Referral
		err := t.db.WithContext(ctx).Where("referred_wallet = ?", referredWallet).First(&ref).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Conflict("no referral exists for wallet %s", referredWallet)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load referral: %w", err)
		}
		return nil, apperr.Conflict("referral for wallet %s is already %s", referredWallet, ref.Status)
	}

	var ref models.Referral
	if err := t.db.WithContext(ctx).Where("referred_wallet = ?", referredWallet).First(&ref).Error; err != nil {
		return nil, fmt.Errorf("failed to load referral: %w", err)
	}
	t.logger.WithFields(logrus.Fields{
		"referred_wallet": referredWallet,
		"status":          status,
	}).Info("referral settled")
	return &ref, nil
}

// Claim moves amount points from a wallet's confirmed, unclaimed balance
// into its claim ledger. The increment is an optimistic conditional update
// on the previously read total, so two racing claims cannot both apply.
func (t *Tracker) Claim(ctx context.Context, wallet string, amount int) (*models.ReferralClaim, error) {
	if wallet == "" {
		return nil, apperr.MissingField("walletAddress")
	}
	if amount <= 0 {
		return nil, apperr.MissingField("amount")
	}

	confirmed, err := t.confirmedPoints(ctx, wallet)
	if err != nil {
		return nil, err
	}

	// One row per wallet; create it at zero if this is the first claim.
	claim := models.ReferralClaim{WalletAddress: wallet}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoNothing: true,
	}).Create(&claim).Error; err != nil {
		return nil, fmt.Errorf("failed to init claim ledger: %w", err)
	}
	if err := t.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&claim).Error; err != nil {
		return nil, fmt.Errorf("failed to load claim ledger: %w", err)
	}

	available := confirmed - claim.TotalClaimed
	if amount > available {
		return nil, apperr.Conflict("claim of %d exceeds available %d points for wallet %s", amount, available, wallet)
	}

	now := time.Now().UTC()
	tx := t.db.WithContext(ctx).Model(&models.ReferralClaim{}).
		Where("wallet_address = ? AND total_claimed = ?", wallet, claim.TotalClaimed).
		Updates(map[string]interface{}{
			"total_claimed":   gorm.Expr("total_claimed + ?", amount),
			"last_claim_date": now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to apply claim: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		// A concurrent claim moved the ledger under us. Do not blindly
		// re-apply; report the conflict so the caller re-reads.
		return nil, apperr.Conflict("concurrent claim detected for wallet %s", wallet)
	}

	if err := t.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&claim).Error; err != nil {
		return nil, fmt.Errorf("failed to load claim ledger: %w", err)
	}
	return &claim, nil
}

// Stats summarizes one referrer wallet.
func (t *Tracker) Stats(ctx context.Context, wallet string) (*models.ReferralStats, error) {
	if wallet == "" {
		return nil, apperr.MissingField("wallet")
	}

	stats := models.ReferralStats{Wallet: wallet}
	db := t.db.WithContext(ctx).Model(&models.Referral{})

	if err := db.Where("referrer_wallet = ?", wallet).Count(&stats.TotalReferrals).Error; err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}
	if err := t.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_wallet = ? AND status = ?", wallet, models.ReferralStatusConfirmed).
		Count(&stats.Confirmed).Error; err != nil {
		return nil, fmt.Errorf("failed to count confirmed referrals: %w", err)
	}
	if err := t.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_wallet = ? AND status = ?", wallet, models.ReferralStatusPending).
		Count(&stats.Pending).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending referrals: %w", err)
	}

	confirmed, err := t.confirmedPoints(ctx, wallet)
	if err != nil {
		return nil, err
	}
	stats.ConfirmedPoints = confirmed

	var claim models.ReferralClaim
	err = t.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&claim).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load claim ledger: %w", err)
	}
	stats.TotalClaimed = claim.TotalClaimed
	stats.Available = confirmed - claim.TotalClaimed

	return &stats, nil
}

func (t *Tracker) confirmedPoints(ctx context.Context, wallet string) (int, error) {
	var total int64
	err := t.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_wallet = ? AND status = ?", wallet, models.ReferralStatusConfirmed).
		Select("COALESCE(SUM(points_awarded), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum confirmed points: %w", err)
	}
	return int(total), nil
}
