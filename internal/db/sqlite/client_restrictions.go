package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/wavebreak/modbot/internal/db"
)

func (s *sqliteClient) GetActiveRestriction(ctx context.Context, kind, subjectID string) (*db.Restriction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var r db.Restriction
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM restrictions
		WHERE kind = ? AND subject_id = ? AND active = 1
	`, kind, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *sqliteClient) UpsertRestriction(ctx context.Context, r *db.Restriction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO restrictions (kind, subject_id, channel_id, active, expires_at, reason, created_by, allowlist, updated_at)
		VALUES (:kind, :subject_id, :channel_id, :active, :expires_at, :reason, :created_by, :allowlist, :updated_at)
		ON CONFLICT(kind, subject_id) DO UPDATE SET
		channel_id=excluded.channel_id,
		active=excluded.active,
		expires_at=excluded.expires_at,
		reason=excluded.reason,
		created_by=excluded.created_by,
		allowlist=excluded.allowlist,
		updated_at=excluded.updated_at;
	`
	return tool.Err(s.db.NamedExecContext(ctx, query, r))
}

func (s *sqliteClient) DeactivateRestriction(ctx context.Context, kind, subjectID string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE restrictions SET active = 0, updated_at = ?
		WHERE kind = ? AND subject_id = ? AND active = 1
	`, time.Now().Unix(), kind, subjectID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteClient) ListExpiredRestrictions(ctx context.Context, asOf time.Time) ([]*db.Restriction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var rs []*db.Restriction
	err := s.db.SelectContext(ctx, &rs, `
		SELECT * FROM restrictions
		WHERE active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY updated_at ASC
	`, asOf.Unix())
	return rs, err
}

func (s *sqliteClient) AppendLog(ctx context.Context, entry *db.ModerationLog) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO moderation_log (kind, subject_id, channel_id, action, performed_by, reason, at)
		VALUES (:kind, :subject_id, :channel_id, :action, :performed_by, :reason, :at)
	`
	return tool.Err(s.db.NamedExecContext(ctx, query, entry))
}

func (s *sqliteClient) ListLogs(ctx context.Context, kind, subjectID string, limit int) ([]*db.ModerationLog, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []*db.ModerationLog
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM moderation_log
		WHERE kind = ? AND subject_id = ?
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, kind, subjectID, limit)
	return entries, err
}
