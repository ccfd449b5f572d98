package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pi-pioneer-hub/models"
)

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("Exact vip marker", func(t *testing.T) {
		db := setupTestDB(t)
		store, mr := setupRawLog(t)
		mr.Set("vip_status:Alice", "true")

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{Username: "Alice"})
		require.NoError(t, err)
		assert.True(t, enriched.VIPMarker)
		assert.False(t, enriched.AmbiguousMatch)
	})

	t.Run("No marker at all", func(t *testing.T) {
		db := setupTestDB(t)
		store, _ := setupRawLog(t)

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{Username: "Alice"})
		require.NoError(t, err)
		assert.False(t, enriched.VIPMarker)
		assert.False(t, enriched.AmbiguousMatch)
	})

	t.Run("Single substring marker applies but is flagged", func(t *testing.T) {
		db := setupTestDB(t)
		store, mr := setupRawLog(t)
		mr.Set("vip_status:Alice_2021_export", "true")

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{Username: "Alice"})
		require.NoError(t, err)
		assert.True(t, enriched.VIPMarker)
		assert.True(t, enriched.AmbiguousMatch)
	})

	t.Run("Multiple substring markers are flagged and not applied", func(t *testing.T) {
		db := setupTestDB(t)
		store, mr := setupRawLog(t)
		mr.Set("vip_status:Alice_old", "true")
		mr.Set("vip_status:Alice_new", "true")

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{Username: "Alice"})
		require.NoError(t, err)
		assert.False(t, enriched.VIPMarker)
		assert.True(t, enriched.AmbiguousMatch)
	})

	t.Run("Reputation exact uid match wins", func(t *testing.T) {
		db := setupTestDB(t)
		store, _ := setupRawLog(t)
		require.NoError(t, db.Create(&models.ReputationScore{Key: "u1", Score: 42}).Error)
		require.NoError(t, db.Create(&models.ReputationScore{Key: "Alice", Score: 7}).Error)

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{UID: "u1", Username: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, 42, enriched.LegacyScore)
		assert.False(t, enriched.AmbiguousMatch)
	})

	t.Run("Reputation username match when uid misses", func(t *testing.T) {
		db := setupTestDB(t)
		store, _ := setupRawLog(t)
		require.NoError(t, db.Create(&models.ReputationScore{Key: "Alice", Score: 7}).Error)

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{UID: "u1", Username: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, 7, enriched.LegacyScore)
	})

	t.Run("Reputation legacy containment is flagged", func(t *testing.T) {
		db := setupTestDB(t)
		store, _ := setupRawLog(t)
		require.NoError(t, db.Create(&models.ReputationScore{Key: "score_Alice_v1", Score: 13}).Error)

		enricher := NewEnricher(db, store, nil)
		enriched, err := enricher.Enrich(ctx, models.User{Username: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, 13, enriched.LegacyScore)
		assert.True(t, enriched.AmbiguousMatch)
	})
}

func TestEnrichAll(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store, mr := setupRawLog(t)
	mr.Set("vip_status:Bob", "true")

	require.NoError(t, db.Create(&models.User{UID: "u1", Username: "Alice"}).Error)
	require.NoError(t, db.Create(&models.User{UID: "u2", Username: "Bob"}).Error)

	enricher := NewEnricher(db, store, nil)

	var seen []models.EnrichedUser
	err := enricher.EnrichAll(ctx, func(u models.EnrichedUser) error {
		seen = append(seen, u)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)

	byName := map[string]models.EnrichedUser{}
	for _, u := range seen {
		byName[u.Username] = u
	}
	assert.False(t, byName["Alice"].VIPMarker)
	assert.True(t, byName["Bob"].VIPMarker)

	t.Run("Callback error stops the walk", func(t *testing.T) {
		boom := errors.New("boom")
		err := enricher.EnrichAll(ctx, func(models.EnrichedUser) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
