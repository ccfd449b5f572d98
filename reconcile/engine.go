// Package reconcile rebuilds the canonical user directory from the raw
// pioneer record log and enriches directory rows with the legacy VIP and
// reputation side tables.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine merges every raw record list into final_users. It owns the
// username, wallet, last_seen and source columns; it never touches is_vip
// or reputation_score, those belong to settlement.
type Engine struct {
	db     *gorm.DB
	rawLog *rawlog.Store
	logger *logrus.Logger
}

func NewEngine(db *gorm.DB, rawLog *rawlog.Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{db: db, rawLog: rawLog, logger: logger}
}

// Result reports what one reconciliation run did. Skipped counts malformed
// or unidentifiable records; they never abort the batch.
type Result struct {
	Processed int `json:"processed"`
	Upserted  int `json:"upserted"`
	Skipped   int `json:"skipped"`
}

// Reconcile fetches both ingestion lists, merges records per identity key
// and upserts the merged rows. Running it twice over the same log yields an
// identical directory.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	var res Result

	lists, err := e.rawLog.FetchLists(ctx)
	if err != nil {
		// No log store, no run. This is a configuration-level failure,
		// not a data problem.
		return res, err
	}

	merged := make(map[string]*Record)
	var order []string

	for _, list := range lists {
		for _, entry := range list.Entries {
			res.Processed++
			rec, err := Normalize(entry)
			if err != nil {
				res.Skipped++
				e.logger.WithFields(logrus.Fields{
					"list":  list.Key,
					"error": err,
				}).Warn("skipping malformed raw record")
				continue
			}
			key := rec.IdentityKey()
			if key == "" {
				res.Skipped++
				e.logger.WithField("list", list.Key).Warn("skipping raw record with no uid or username")
				continue
			}
			if existing, ok := merged[key]; ok {
				existing.merge(rec)
			} else {
				merged[key] = rec
				order = append(order, key)
			}
		}
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			// Aborted mid-batch: each applied upsert was independently
			// idempotent, so report progress and stop.
			return res, err
		}
		if err := e.upsert(ctx, merged[key]); err != nil {
			return res, fmt.Errorf("failed to upsert user %q: %w", key, err)
		}
		res.Upserted++
	}

	e.logger.WithFields(logrus.Fields{
		"processed": res.Processed,
		"upserted":  res.Upserted,
		"skipped":   res.Skipped,
	}).Info("reconciliation run finished")
	return res, nil
}

// Rebuild clears the directory before reconciling. Destructive; only ever
// invoked explicitly, to heal from a corrupted prior state.
func (e *Engine) Rebuild(ctx context.Context) (Result, error) {
	if err := e.db.WithContext(ctx).Exec("DELETE FROM final_users").Error; err != nil {
		return Result{}, fmt.Errorf("failed to clear user directory: %w", err)
	}
	e.logger.Warn("user directory cleared for full rebuild")
	return e.Reconcile(ctx)
}

// walletCase keeps the most informative wallet in a single statement:
// a real incoming address always wins, anything else only fills an empty
// column. Runs inside the upsert so concurrent runs cannot lose updates.
const walletCase = "CASE WHEN %s NOT IN ('', 'Not Linked', 'Pending') THEN %s " +
	"WHEN final_users.wallet = '' OR final_users.wallet IS NULL THEN %s " +
	"ELSE final_users.wallet END"

func (e *Engine) upsert(ctx context.Context, rec *Record) error {
	lastSeen := rec.Timestamp
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}

	// Rows keyed by uid first: the username may have changed between
	// ingestion runs and the uid is the stronger identity.
	if rec.UID != "" {
		wallet := fmt.Sprintf(walletCase, "?", "?", "?")
		updates := map[string]interface{}{
			"wallet":    gorm.Expr(wallet, rec.Wallet, rec.Wallet, rec.Wallet),
			"last_seen": lastSeen,
			"source":    "reconciliation",
		}
		if rec.Username != "" {
			updates["username"] = rec.Username
		}
		tx := e.db.WithContext(ctx).Model(&models.User{}).
			Where("uid = ?", rec.UID).
			Updates(updates)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected > 0 {
			return nil
		}
	}

	// username is the unique column; a uid-only record gets its uid as a
	// stable stand-in so repeated runs hit the same row.
	username := rec.Username
	if username == "" {
		username = rec.UID
	}

	wallet := fmt.Sprintf(walletCase, "excluded.wallet", "excluded.wallet", "excluded.wallet")
	user := models.User{
		UID:      rec.UID,
		Username: username,
		Wallet:   rec.Wallet,
		LastSeen: lastSeen,
		Source:   "reconciliation",
	}
	return e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"uid":       gorm.Expr("CASE WHEN excluded.uid <> '' THEN excluded.uid ELSE final_users.uid END"),
			"wallet":    gorm.Expr(wallet),
			"last_seen": lastSeen,
			"source":    "reconciliation",
		}),
	}).Create(&user).Error
}
