// Package rawlog reads and appends the append-only pioneer record log kept
// in the key-value store, along with the legacy VIP marker keys.
package rawlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/redis/go-redis/v9"
)

// Two ingestion paths wrote pioneer records over time, each under its own
// list key. The union of both lists is authoritative; neither alone is.
const (
	KeyLegacyPioneers     = "pioneers"
	KeyRegisteredPioneers = "registered_pioneers"
)

// ListKeys in scan order: legacy first, so the current path wins merges.
var ListKeys = []string{KeyLegacyPioneers, KeyRegisteredPioneers}

const vipMarkerPrefix = "vip_status:"

const (
	fetchAttempts = 3
	fetchDelay    = 200 * time.Millisecond
)

// Store wraps the key-value client. Reads are retried with backoff because
// they are idempotent; appends are not retried.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Append marshals the record and pushes it onto the current ingestion list.
func (s *Store) Append(ctx context.Context, record interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode raw record: %w", err)
	}
	if err := s.rdb.RPush(ctx, KeyRegisteredPioneers, raw).Err(); err != nil {
		return fmt.Errorf("failed to append raw record: %w", err)
	}
	return nil
}

// RawList is the full contents of one ingestion list key.
type RawList struct {
	Key     string
	Entries []string
}

// FetchLists reads every ingestion list. An unreachable store after retries
// is fatal for the run; a missing key is just an empty list.
func (s *Store) FetchLists(ctx context.Context) ([]RawList, error) {
	lists := make([]RawList, 0, len(ListKeys))
	for _, key := range ListKeys {
		var entries []string
		err := retry.Call(retry.CallArgs{
			Func: func() error {
				var err error
				entries, err = s.rdb.LRange(ctx, key, 0, -1).Result()
				return err
			},
			IsFatalError: func(err error) bool { return ctx.Err() != nil },
			Attempts:     fetchAttempts,
			Delay:        fetchDelay,
			BackoffFunc:  retry.DoubleDelay,
			Clock:        clock.WallClock,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch raw record list %q: %w", key, err)
		}
		lists = append(lists, RawList{Key: key, Entries: entries})
	}
	return lists, nil
}

// HasVIPMarker checks the exact vip_status:<username> key.
func (s *Store) HasVIPMarker(ctx context.Context, username string) (bool, error) {
	n, err := s.rdb.Exists(ctx, vipMarkerPrefix+username).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check vip marker: %w", err)
	}
	return n > 0, nil
}

// SetVIPMarker writes the marker key. Settlement calls this when a VIP
// payment completes so legacy readers keep working.
func (s *Store) SetVIPMarker(ctx context.Context, username string) error {
	if err := s.rdb.Set(ctx, vipMarkerPrefix+username, "true", 0).Err(); err != nil {
		return fmt.Errorf("failed to set vip marker: %w", err)
	}
	return nil
}

// ScanVIPMarkerNames returns the name part of every vip_status:* key. Some
// historical writers embedded extra context in the name, so callers use
// this only for the substring fallback join.
func (s *Store) ScanVIPMarkerNames(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.rdb.Scan(ctx, 0, vipMarkerPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), vipMarkerPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan vip markers: %w", err)
	}
	return names, nil
}
