package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pi-pioneer-hub/models"
	"github.com/yourusername/pi-pioneer-hub/rawlog"
	"gorm.io/gorm"
)

// Enricher joins canonical users against the vip_status:* marker keys and
// the legacy reputation_scores table. Exact key matches are the primary
// join; the substring fallback exists only because some historical writers
// embedded the username inside a longer key, and anything it finds is
// flagged as ambiguous instead of silently trusted.
type Enricher struct {
	db     *gorm.DB
	rawLog *rawlog.Store
	logger *logrus.Logger
}

func NewEnricher(db *gorm.DB, rawLog *rawlog.Store, logger *logrus.Logger) *Enricher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Enricher{db: db, rawLog: rawLog, logger: logger}
}

// Enrich joins one user with the auxiliary VIP and reputation records.
func (a *Enricher) Enrich(ctx context.Context, user models.User) (models.EnrichedUser, error) {
	enriched := models.EnrichedUser{User: user}

	marker, ambiguous, err := a.vipMarker(ctx, user.Username)
	if err != nil {
		return enriched, err
	}
	enriched.VIPMarker = marker
	enriched.AmbiguousMatch = ambiguous

	score, scoreAmbiguous, err := a.legacyScore(ctx, user)
	if err != nil {
		return enriched, err
	}
	enriched.LegacyScore = score
	enriched.AmbiguousMatch = enriched.AmbiguousMatch || scoreAmbiguous

	return enriched, nil
}

// EnrichAll walks the whole directory in batches, calling fn for every
// enriched user. The iteration is restartable and bounded by the directory
// size; fn returning an error stops the walk.
func (a *Enricher) EnrichAll(ctx context.Context, fn func(models.EnrichedUser) error) error {
	var users []models.User
	errStop := errors.New("stop")
	var fnErr error
	err := a.db.WithContext(ctx).FindInBatches(&users, 100, func(tx *gorm.DB, batch int) error {
		for _, u := range users {
			enriched, err := a.Enrich(ctx, u)
			if err != nil {
				return err
			}
			if err := fn(enriched); err != nil {
				fnErr = err
				return errStop
			}
		}
		return nil
	}).Error
	if errors.Is(err, errStop) {
		return fnErr
	}
	return err
}

func (a *Enricher) vipMarker(ctx context.Context, username string) (marker, ambiguous bool, err error) {
	if username == "" {
		return false, false, nil
	}

	exact, err := a.rawLog.HasVIPMarker(ctx, username)
	if err != nil {
		return false, false, err
	}
	if exact {
		return true, false, nil
	}

	// Legacy fallback: marker keys that merely contain the username.
	names, err := a.rawLog.ScanVIPMarkerNames(ctx)
	if err != nil {
		return false, false, err
	}
	var hits int
	for _, name := range names {
		if strings.Contains(name, username) {
			hits++
		}
	}
	switch hits {
	case 0:
		return false, false, nil
	case 1:
		a.logger.WithField("username", username).Warn("vip marker matched by legacy substring join")
		return true, true, nil
	default:
		a.logger.WithFields(logrus.Fields{
			"username": username,
			"hits":     hits,
		}).Warn("multiple vip markers match by substring; not applying")
		return false, true, nil
	}
}

func (a *Enricher) legacyScore(ctx context.Context, user models.User) (score int, ambiguous bool, err error) {
	var rec models.ReputationScore

	// Exact joins first: uid, then username.
	for _, key := range []string{user.UID, user.Username} {
		if key == "" {
			continue
		}
		err := a.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
		if err == nil {
			return rec.Score, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, fmt.Errorf("failed to query reputation scores: %w", err)
		}
	}

	if user.Username == "" {
		return 0, false, nil
	}

	// Legacy containment fallback, same ambiguity rules as the vip join.
	var recs []models.ReputationScore
	if err := a.db.WithContext(ctx).
		Where("key LIKE ?", "%"+user.Username+"%").
		Find(&recs).Error; err != nil {
		return 0, false, fmt.Errorf("failed to query reputation scores: %w", err)
	}
	switch len(recs) {
	case 0:
		return 0, false, nil
	case 1:
		a.logger.WithField("username", user.Username).Warn("reputation score matched by legacy substring join")
		return recs[0].Score, true, nil
	default:
		a.logger.WithFields(logrus.Fields{
			"username": user.Username,
			"hits":     len(recs),
		}).Warn("multiple reputation keys match by substring; not applying")
		return 0, true, nil
	}
}
