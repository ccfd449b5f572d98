// Package payments drives Pi Platform payments through their lifecycle and
// applies the resulting VIP and reputation effects at most once.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pi-pioneer-hub/apperr"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChainSubmitter submits the custodial payout transaction on the Pi
// blockchain and returns its txid.
type ChainSubmitter interface {
	SubmitPayout(destination string, amount float64) (string, error)
}

// Service is the settlement state machine. Created → Approved → Completed,
// with Rejected and Failed as the alternate terminal paths. Completion side
// effects are guarded by the unique payment_id index on vip_subscriptions.
type Service struct {
	db     *gorm.DB
	pi     PiClientInterface
	chain  ChainSubmitter
	rawLog *rawlog.Store
	logger *logrus.Logger
}

func NewService(db *gorm.DB, pi PiClientInterface, chain ChainSubmitter, rawLog *rawlog.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{db: db, pi: pi, chain: chain, rawLog: rawLog, logger: logger}
}

const (
	approveAttempts = 3
	approveDelay    = 500 * time.Millisecond
)

// Approve tells the provider to approve the payment. The provider treats
// repeated approvals of one paymentID as idempotent, so transport failures
// are retried with backoff. A provider rejection moves the local record to
// rejected and surfaces the provider's error_message untouched.
func (s *Service) Approve(ctx context.Context, paymentID string) (*models.Payment, error) {
	if paymentID == "" {
		return nil, apperr.MissingField("paymentId")
	}

	var resp *PiPayment
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			resp, err = s.pi.ApprovePayment(ctx, paymentID)
			return err
		},
		IsFatalError: func(err error) bool { return !apperr.IsRetryable(err) },
		Attempts:     approveAttempts,
		Delay:        approveDelay,
		BackoffFunc:  retry.DoubleDelay,
		Clock:        clock.WallClock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		var rej *apperr.UpstreamRejection
		if errors.As(err, &rej) {
			if dbErr := s.upsertPayment(ctx, paymentID, nil, models.PaymentStateRejected, ""); dbErr != nil {
				s.logger.WithError(dbErr).Error("failed to record payment rejection")
			}
		}
		return nil, err
	}

	if err := s.upsertPayment(ctx, paymentID, resp, models.PaymentStateApproved, ""); err != nil {
		return nil, err
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to load payment record: %w", err)
	}
	return &payment, nil
}

// Complete confirms the payment with its blockchain txid and applies the
// VIP grant. The subscription insert races on the unique payment_id index:
// whoever loses sees gorm.ErrDuplicatedKey, returns the existing grant as
// success and applies nothing. Never retried without that guard, so this
// method does not auto-retry the provider call at all.
func (s *Service) Complete(ctx context.Context, paymentID, txid string) (*models.VIPSubscription, bool, error) {
	if paymentID == "" {
		return nil, false, apperr.MissingField("paymentId")
	}
	if txid == "" {
		return nil, false, apperr.MissingField("txid")
	}

	// Fast path: this payment already settled.
	var existing models.VIPSubscription
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check completion ledger: %w", err)
	}

	resp, err := s.pi.CompletePayment(ctx, paymentID, txid)
	if err != nil {
		var rej *apperr.UpstreamRejection
		if errors.As(err, &rej) {
			if dbErr := s.upsertPayment(ctx, paymentID, nil, models.PaymentStateFailed, txid); dbErr != nil {
				s.logger.WithError(dbErr).Error("failed to record payment failure")
			}
		}
		return nil, false, err
	}

	uid := resp.UserUID
	if uid == "" {
		uid = s.localPaymentUID(ctx, paymentID)
	}

	sub, applied, err := s.grantVIP(ctx, uid, paymentID, txid, resp.Amount)
	if err != nil {
		return nil, false, err
	}

	if err := s.upsertPayment(ctx, paymentID, resp, models.PaymentStateCompleted, txid); err != nil {
		s.logger.WithError(err).Error("failed to record payment completion")
	}

	return sub, !applied, nil
}

// grantVIP inserts the subscription row and, only when this call won the
// insert, applies the user-directory effects. Returns applied=false when a
// prior or concurrent completion already holds the payment_id.
func (s *Service) grantVIP(ctx context.Context, uid, paymentID, txid string, amount float64) (*models.VIPSubscription, bool, error) {
	now := time.Now().UTC()
	start := now
	end := start.AddDate(0, 0, models.VIPDurationDays)

	// Renewal before expiry extends from the current end rather than
	// resetting it.
	var active models.VIPSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_date > ?", uid, now).
		Order("end_date DESC").
		First(&active).Error
	if err == nil {
		end = active.EndDate.AddDate(0, 0, models.VIPDurationDays)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check active subscriptions: %w", err)
	}

	sub := models.VIPSubscription{
		UserID:          uid,
		PaymentID:       paymentID,
		Txid:            txid,
		Amount:          amount,
		StartDate:       start,
		EndDate:         end,
		ReputationBonus: models.VIPReputationBonus,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.VIPSubscription
			if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&winner).Error; err != nil {
				return nil, false, fmt.Errorf("failed to load existing subscription: %w", err)
			}
			return &winner, false, nil
		}
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}

	tx := s.db.WithContext(ctx).Model(&models.User{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"is_vip":           true,
			"reputation_score": gorm.Expr("reputation_score + ?", models.VIPReputationBonus),
		})
	if tx.Error != nil {
		return nil, false, fmt.Errorf("failed to apply vip effects: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		// User not reconciled into the directory yet; the grant stands and
		// the next reconciliation run will not clear is_vip (it never
		// writes that column).
		s.logger.WithField("uid", uid).Warn("vip grant applied with no matching directory row")
	}

	if s.rawLog != nil {
		var user models.User
		if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err == nil && user.Username != "" {
			if err := s.rawLog.SetVIPMarker(ctx, user.Username); err != nil {
				s.logger.WithError(err).Warn("failed to write legacy vip marker")
			}
		}
	}

	return &sub, true, nil
}

// Payout sends Pi from the app's custodial wallet to a recipient: create at
// the provider, submit the chain transaction, complete with the txid. The
// total_transactions counter moves only on provider-confirmed success.
func (s *Service) Payout(ctx context.Context, toAddress string, amount float64, recipientUID string) (string, error) {
	if toAddress == "" {
		return "", apperr.MissingField("toAddress")
	}
	if amount <= 0 {
		return "", apperr.MissingField("amount")
	}
	if recipientUID == "" {
		return "", apperr.MissingField("recipientUid")
	}
	if s.chain == nil {
		return "", &apperr.ConfigurationError{Setting: "APP_WALLET_SECRET"}
	}

	created, err := s.pi.CreatePayment(ctx, recipientUID, amount, "payout", map[string]interface{}{
		"type": "app_to_user",
	})
	if err != nil {
		return "", err
	}

	dest := created.ToAddress
	if dest == "" {
		dest = toAddress
	}

	txid, err := s.chain.SubmitPayout(dest, amount)
	if err != nil {
		if dbErr := s.recordPayout(ctx, created, recipientUID, amount, models.PaymentStateFailed, ""); dbErr != nil {
			s.logger.WithError(dbErr).Error("failed to record payout failure")
		}
		return "", fmt.Errorf("failed to submit payout transaction: %w", err)
	}

	if _, err := s.pi.CompletePayment(ctx, created.Identifier, txid); err != nil {
		if dbErr := s.recordPayout(ctx, created, recipientUID, amount, models.PaymentStateFailed, txid); dbErr != nil {
			s.logger.WithError(dbErr).Error("failed to record payout failure")
		}
		return "", err
	}

	if err := s.recordPayout(ctx, created, recipientUID, amount, models.PaymentStateCompleted, txid); err != nil {
		s.logger.WithError(err).Error("failed to record payout completion")
	}
	if err := s.bumpTotalTransactions(ctx); err != nil {
		s.logger.WithError(err).Error("failed to bump transaction counter")
	}

	s.logger.WithFields(logrus.Fields{
		"to":     dest,
		"amount": amount,
		"txid":   txid,
	}).Info("payout completed")
	return txid, nil
}

func (s *Service) localPaymentUID(ctx context.Context, paymentID string) string {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return ""
	}
	return payment.UID
}

// upsertPayment mirrors the provider state into the local payments table
// with a single conflict-upsert keyed on payment_id.
func (s *Service) upsertPayment(ctx context.Context, paymentID string, resp *PiPayment, state, txid string) error {
	payment := models.Payment{
		PaymentID: paymentID,
		State:     state,
		Txid:      txid,
		Direction: models.DirectionUserToApp,
	}
	assignments := map[string]interface{}{"state": state}
	if txid != "" {
		assignments["txid"] = txid
	}
	if resp != nil {
		payment.UID = resp.UserUID
		payment.Amount = resp.Amount
		payment.Memo = resp.Memo
		assignments["uid"] = resp.UserUID
		assignments["amount"] = resp.Amount
		assignments["memo"] = resp.Memo
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&payment).Error
}

func (s *Service) recordPayout(ctx context.Context, created *PiPayment, uid string, amount float64, state, txid string) error {
	payment := models.Payment{
		PaymentID: created.Identifier,
		UID:       uid,
		Amount:    amount,
		Memo:      "payout",
		State:     state,
		Txid:      txid,
		Direction: models.DirectionAppToUser,
	}
	assignments := map[string]interface{}{"state": state}
	if txid != "" {
		assignments["txid"] = txid
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&payment).Error
}

func (s *Service) bumpTotalTransactions(ctx context.Context) error {
	stat := models.AppStat{Name: models.StatTotalTransactions, Value: 1}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("app_stats.value + 1")}),
	}).Create(&stat).Error
}
