package reconcile

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a raw pioneer record after normalization. Every ingestion-path
// quirk (string-encoded JSON, uid/id and username/name and wallet/address
// field variants, numeric or string timestamps) is resolved here so the
// merge logic only ever sees this one shape.
type Record struct {
	UID       string
	Username  string
	Wallet    string
	Timestamp time.Time
}

// IdentityKey returns the merge key: uid when present, else username.
// Empty means the record identifies nobody and must be skipped.
func (r *Record) IdentityKey() string {
	if r.UID != "" {
		return r.UID
	}
	return r.Username
}

// rawEnvelope accepts every historical field spelling at once.
type rawEnvelope struct {
	UID       string          `json:"uid"`
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Name      string          `json:"name"`
	Wallet    string          `json:"wallet"`
	Address   string          `json:"address"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Normalize decodes one raw log entry. Entries are JSON objects, except for
// one ingestion path that JSON-encoded the object into a string before
// pushing it; both forms are accepted. A decode failure is the caller's cue
// to skip the record, not abort the batch.
func Normalize(entry string) (*Record, error) {
	payload := []byte(entry)

	// Double-encoded form: a JSON string whose contents are the object.
	var inner string
	if err := json.Unmarshal(payload, &inner); err == nil {
		payload = []byte(inner)
	}

	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unparsable raw record: %w", err)
	}

	return &Record{
		UID:       firstNonEmpty(env.UID, env.ID),
		Username:  firstNonEmpty(env.Username, env.Name),
		Wallet:    firstNonEmpty(env.Wallet, env.Address),
		Timestamp: parseTimestamp(env.Timestamp),
	}, nil
}

// merge folds a later record into r, most-informative-wins: a non-empty
// field overwrites an earlier empty one, never the reverse. Wallets keep
// the stronger linkage, so a real address survives a later placeholder.
func (r *Record) merge(later *Record) {
	if later.UID != "" {
		r.UID = later.UID
	}
	if later.Username != "" {
		r.Username = later.Username
	}
	if walletInformative(later.Wallet, r.Wallet) {
		r.Wallet = later.Wallet
	}
	if later.Timestamp.After(r.Timestamp) {
		r.Timestamp = later.Timestamp
	}
}

// walletInformative reports whether candidate carries more linkage than
// current. Real addresses beat placeholders beat empty.
func walletInformative(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}
	if isPlaceholderWallet(candidate) {
		return false
	}
	return true
}

func isPlaceholderWallet(w string) bool {
	return w == "Not Linked" || w == "Pending"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseTimestamp accepts unix seconds, unix milliseconds and RFC3339.
// Anything else is the zero time; the record is still usable.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		secs := int64(n)
		if secs > 1e12 { // milliseconds
			return time.UnixMilli(secs).UTC()
		}
		return time.Unix(secs, 0).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
