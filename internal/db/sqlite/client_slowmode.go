package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/wavebreak/modbot/internal/db"
)

func (s *sqliteClient) GetSlowmode(ctx context.Context, channel, threadTS string) (*db.Slowmode, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var cfg db.Slowmode
	err := s.db.GetContext(ctx, &cfg, `
		SELECT * FROM slowmodes
		WHERE channel = ? AND thread_ts = ?
	`, channel, threadTS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *sqliteClient) UpsertSlowmode(ctx context.Context, cfg *db.Slowmode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO slowmodes (channel, thread_ts, active, interval_seconds, expires_at, reason, created_by, whitelist, apply_to_threads, updated_at)
		VALUES (:channel, :thread_ts, :active, :interval_seconds, :expires_at, :reason, :created_by, :whitelist, :apply_to_threads, :updated_at)
		ON CONFLICT(channel, thread_ts) DO UPDATE SET
		active=excluded.active,
		interval_seconds=excluded.interval_seconds,
		expires_at=excluded.expires_at,
		reason=excluded.reason,
		created_by=excluded.created_by,
		whitelist=excluded.whitelist,
		apply_to_threads=excluded.apply_to_threads,
		updated_at=excluded.updated_at;
	`
	return tool.Err(s.db.NamedExecContext(ctx, query, cfg))
}

func (s *sqliteClient) DeactivateSlowmode(ctx context.Context, channel, threadTS string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE slowmodes SET active = 0, updated_at = ?
		WHERE channel = ? AND thread_ts = ? AND active = 1
	`, time.Now().Unix(), channel, threadTS)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteClient) ListExpiredSlowmodes(ctx context.Context, asOf time.Time) ([]*db.Slowmode, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var configs []*db.Slowmode
	err := s.db.SelectContext(ctx, &configs, `
		SELECT * FROM slowmodes
		WHERE active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY updated_at ASC
	`, asOf.Unix())
	return configs, err
}

func (s *sqliteClient) GetSlowmodeActivity(ctx context.Context, channel, threadTS, userID string) (*db.SlowmodeActivity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var activity db.SlowmodeActivity
	err := s.db.GetContext(ctx, &activity, `
		SELECT * FROM slowmode_activity
		WHERE channel = ? AND thread_ts = ? AND user_id = ?
	`, channel, threadTS, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func (s *sqliteClient) RecordSlowmodeActivity(ctx context.Context, channel, threadTS, userID string, at int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO slowmode_activity (channel, thread_ts, user_id, last_message_at, whitelisted)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(channel, thread_ts, user_id) DO UPDATE SET
		last_message_at=excluded.last_message_at;
	`
	_, err := s.db.ExecContext(ctx, query, channel, threadTS, userID, at)
	return err
}

func (s *sqliteClient) ClearSlowmodeActivity(ctx context.Context, channel, threadTS string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM slowmode_activity WHERE channel = ? AND thread_ts = ?
	`, channel, threadTS)
	return err
}
