package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// Slowmode is one per-(channel, thread) cooldown configuration. ThreadTS
	// is the empty string for the channel-level row, so the natural key is
	// always (channel, thread_ts).
	Slowmode struct {
		Channel         string    `db:"channel"`
		ThreadTS        string    `db:"thread_ts"`
		Active          bool      `db:"active"`
		IntervalSeconds int       `db:"interval_seconds"`
		ExpiresAt       *int64    `db:"expires_at"`
		Reason          string    `db:"reason"`
		CreatedBy       string    `db:"created_by"`
		Whitelist       StringSet `db:"whitelist"`
		ApplyToThreads  bool      `db:"apply_to_threads"`
		UpdatedAt       int64     `db:"updated_at"`
	}

	// SlowmodeActivity tracks an actor's last accepted message under a
	// slowmode config. One row per (channel, thread_ts, user).
	SlowmodeActivity struct {
		Channel       string `db:"channel"`
		ThreadTS      string `db:"thread_ts"`
		UserID        string `db:"user_id"`
		LastMessageAt int64  `db:"last_message_at"`
		Whitelisted   bool   `db:"whitelisted"`
	}

	// Restriction is the generic time-bounded state record behind thread
	// locks, read-only channels, global mutes and channel bans. At most one
	// row exists per (kind, subject_id); re-enabling reuses the row and the
	// history lives in moderation_log.
	Restriction struct {
		Kind      string    `db:"kind"`
		SubjectID string    `db:"subject_id"`
		ChannelID string    `db:"channel_id"`
		Active    bool      `db:"active"`
		ExpiresAt *int64    `db:"expires_at"`
		Reason    string    `db:"reason"`
		CreatedBy string    `db:"created_by"`
		Allowlist StringSet `db:"allowlist"`
		UpdatedAt int64     `db:"updated_at"`
	}

	// ModerationLog is the append-only audit trail. Rows are never updated.
	ModerationLog struct {
		ID          int64  `db:"id"`
		Kind        string `db:"kind"`
		SubjectID   string `db:"subject_id"`
		ChannelID   string `db:"channel_id"`
		Action      string `db:"action"`
		PerformedBy string `db:"performed_by"`
		Reason      string `db:"reason"`
		At          int64  `db:"at"`
	}

	StringSet []string
)

const (
	KindThreadLock = "thread_lock"
	KindReadOnly   = "read_only"
	KindGlobalMute = "global_mute"
	KindChannelBan = "channel_ban"

	ActionLock   = "lock"
	ActionUnlock = "unlock"

	SystemActor = "system"
)

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		s = StringSet{}
	}
	return json.Marshal(s)
}

func (s *StringSet) Scan(v interface{}) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), s)
	case []byte:
		return json.Unmarshal(data, s)
	default:
		return fmt.Errorf("cannot scan type %T into StringSet", v)
	}
}

func (s StringSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Expired reports whether the config's expiry, if any, is at or before now.
func (s *Slowmode) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && *s.ExpiresAt <= now.Unix()
}

func (r *Restriction) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && *r.ExpiresAt <= now.Unix()
}

// ChannelBanSubject builds the composite subject ID for per-channel bans,
// which are keyed by both channel and actor unlike the other kinds.
func ChannelBanSubject(channel, userID string) string {
	return channel + "/" + userID
}
