package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("Plain object", func(t *testing.T) {
		rec, err := Normalize(`{"uid":"u1","username":"Alice","wallet":"GABC","timestamp":1700000000}`)
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.UID)
		assert.Equal(t, "Alice", rec.Username)
		assert.Equal(t, "GABC", rec.Wallet)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.Timestamp)
	})

	t.Run("Legacy field names", func(t *testing.T) {
		rec, err := Normalize(`{"id":"u2","name":"Bob","address":"GDEF"}`)
		require.NoError(t, err)
		assert.Equal(t, "u2", rec.UID)
		assert.Equal(t, "Bob", rec.Username)
		assert.Equal(t, "GDEF", rec.Wallet)
	})

	t.Run("Current names win over legacy", func(t *testing.T) {
		rec, err := Normalize(`{"uid":"u3","id":"legacy","username":"Carol","name":"old"}`)
		require.NoError(t, err)
		assert.Equal(t, "u3", rec.UID)
		assert.Equal(t, "Carol", rec.Username)
	})

	t.Run("Double-encoded string form", func(t *testing.T) {
		rec, err := Normalize(`"{\"uid\":\"u4\",\"username\":\"Dave\"}"`)
		require.NoError(t, err)
		assert.Equal(t, "u4", rec.UID)
		assert.Equal(t, "Dave", rec.Username)
	})

	t.Run("RFC3339 timestamp", func(t *testing.T) {
		rec, err := Normalize(`{"uid":"u5","timestamp":"2024-03-01T12:00:00Z"}`)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), rec.Timestamp)
	})

	t.Run("Millisecond timestamp", func(t *testing.T) {
		rec, err := Normalize(`{"uid":"u6","timestamp":1700000000000}`)
		require.NoError(t, err)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), rec.Timestamp)
	})

	t.Run("Unparsable record", func(t *testing.T) {
		_, err := Normalize(`not json at all {{`)
		assert.Error(t, err)
	})

	t.Run("Garbage timestamp is not fatal", func(t *testing.T) {
		rec, err := Normalize(`{"uid":"u7","timestamp":"yesterday"}`)
		require.NoError(t, err)
		assert.True(t, rec.Timestamp.IsZero())
	})
}

func TestRecordIdentityKey(t *testing.T) {
	assert.Equal(t, "u1", (&Record{UID: "u1", Username: "Alice"}).IdentityKey())
	assert.Equal(t, "Alice", (&Record{Username: "Alice"}).IdentityKey())
	assert.Equal(t, "", (&Record{Wallet: "GABC"}).IdentityKey())
}

func TestRecordMerge(t *testing.T) {
	t.Run("Later non-empty fills earlier empty", func(t *testing.T) {
		r := &Record{UID: "u1", Username: "Alice", Wallet: ""}
		r.merge(&Record{UID: "u1", Wallet: "GABC"})
		assert.Equal(t, "Alice", r.Username)
		assert.Equal(t, "GABC", r.Wallet)
	})

	t.Run("Empty never overwrites", func(t *testing.T) {
		r := &Record{UID: "u1", Username: "Alice", Wallet: "GABC"}
		r.merge(&Record{UID: "u1", Wallet: ""})
		assert.Equal(t, "GABC", r.Wallet)
	})

	t.Run("Placeholder never replaces a real address", func(t *testing.T) {
		r := &Record{UID: "u1", Wallet: "GABC"}
		r.merge(&Record{UID: "u1", Wallet: "Not Linked"})
		assert.Equal(t, "GABC", r.Wallet)

		r.merge(&Record{UID: "u1", Wallet: "Pending"})
		assert.Equal(t, "GABC", r.Wallet)
	})

	t.Run("Placeholder beats nothing", func(t *testing.T) {
		r := &Record{UID: "u1"}
		r.merge(&Record{UID: "u1", Wallet: "Pending"})
		assert.Equal(t, "Pending", r.Wallet)
	})

	t.Run("Real address replaces placeholder", func(t *testing.T) {
		r := &Record{UID: "u1", Wallet: "Not Linked"}
		r.merge(&Record{UID: "u1", Wallet: "GABC"})
		assert.Equal(t, "GABC", r.Wallet)
	})

	t.Run("Latest timestamp wins", func(t *testing.T) {
		early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		r := &Record{UID: "u1", Timestamp: late}
		r.merge(&Record{UID: "u1", Timestamp: early})
		assert.Equal(t, late, r.Timestamp)
	})
}
