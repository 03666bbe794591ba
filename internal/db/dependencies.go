package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	GetSlowmode(ctx context.Context, channel, threadTS string) (*Slowmode, error)
	UpsertSlowmode(ctx context.Context, cfg *Slowmode) error
	DeactivateSlowmode(ctx context.Context, channel, threadTS string) (bool, error)
	ListExpiredSlowmodes(ctx context.Context, asOf time.Time) ([]*Slowmode, error)

	GetSlowmodeActivity(ctx context.Context, channel, threadTS, userID string) (*SlowmodeActivity, error)
	RecordSlowmodeActivity(ctx context.Context, channel, threadTS, userID string, at int64) error
	ClearSlowmodeActivity(ctx context.Context, channel, threadTS string) error

	GetActiveRestriction(ctx context.Context, kind, subjectID string) (*Restriction, error)
	UpsertRestriction(ctx context.Context, r *Restriction) error
	DeactivateRestriction(ctx context.Context, kind, subjectID string) (bool, error)
	ListExpiredRestrictions(ctx context.Context, asOf time.Time) ([]*Restriction, error)

	AppendLog(ctx context.Context, entry *ModerationLog) error
	ListLogs(ctx context.Context, kind, subjectID string, limit int) ([]*ModerationLog, error)
}
