package moderation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wavebreak/modbot/internal/db"
	"github.com/wavebreak/modbot/internal/templates"
)

// Restrictions runs the enable/disable/expire lifecycle shared by thread
// locks, read-only channels, global mutes and channel bans. A restriction is
// a single store row per (kind, subject); history goes to the append-only
// moderation log. Disable is idempotent whichever path triggers it: explicit
// command, lazy expiry on the next gated event, or the background sweep.
type Restrictions struct {
	store  db.Client
	notify *Notifier
	now    func() time.Time
}

type RestrictionParams struct {
	Kind      string
	SubjectID string
	ChannelID string
	ExpiresAt *time.Time
	Reason    string
	CreatedBy string
	Allowlist []string
}

func NewRestrictions(store db.Client, notify *Notifier, now func() time.Time) *Restrictions {
	if now == nil {
		now = time.Now
	}
	return &Restrictions{store: store, notify: notify, now: now}
}

func knownKind(kind string) bool {
	switch kind {
	case db.KindThreadLock, db.KindReadOnly, db.KindGlobalMute, db.KindChannelBan:
		return true
	}
	return false
}

// Enable activates a restriction, creating or reusing the row for its
// subject. Validation fails synchronously with the offending field named and
// nothing mutated.
func (r *Restrictions) Enable(ctx context.Context, p RestrictionParams) error {
	if !knownKind(p.Kind) {
		return errors.Wrap(ErrUnknownKind, p.Kind)
	}
	if p.SubjectID == "" {
		return errors.Wrap(ErrMissingSubject, "subject_id")
	}
	now := r.now()
	var expiresAt *int64
	if p.ExpiresAt != nil {
		if !p.ExpiresAt.After(now) {
			return errors.Wrap(ErrExpiryInPast, "expires_at")
		}
		unix := p.ExpiresAt.Unix()
		expiresAt = &unix
	}

	record := &db.Restriction{
		Kind:      p.Kind,
		SubjectID: p.SubjectID,
		ChannelID: p.ChannelID,
		Active:    true,
		ExpiresAt: expiresAt,
		Reason:    p.Reason,
		CreatedBy: p.CreatedBy,
		Allowlist: p.Allowlist,
		UpdatedAt: now.Unix(),
	}
	if err := r.store.UpsertRestriction(ctx, record); err != nil {
		return errors.Wrap(err, "upsert restriction")
	}
	r.appendLog(ctx, record, db.ActionLock, p.CreatedBy, p.Reason)
	r.notify.Mirror(ctx, templates.Render("restriction_enabled_mirror", map[string]any{
		"kind":    p.Kind,
		"subject": p.SubjectID,
		"actor":   p.CreatedBy,
	}))
	return nil
}

// Disable flips the restriction off on behalf of an actor. Reports whether
// anything actually changed; disabling an inactive restriction is a no-op.
func (r *Restrictions) Disable(ctx context.Context, kind, subjectID, actor, reason string) (bool, error) {
	if !knownKind(kind) {
		return false, errors.Wrap(ErrUnknownKind, kind)
	}
	flipped, err := r.store.DeactivateRestriction(ctx, kind, subjectID)
	if err != nil {
		return false, errors.Wrap(err, "deactivate restriction")
	}
	if !flipped {
		return false, nil
	}
	r.appendLog(ctx, &db.Restriction{Kind: kind, SubjectID: subjectID}, db.ActionUnlock, actor, reason)
	r.notify.Mirror(ctx, templates.Render("restriction_disabled_mirror", map[string]any{
		"kind":    kind,
		"subject": subjectID,
		"actor":   actor,
	}))
	return true, nil
}

// SetAllowlist replaces the allowlist on an active restriction, keeping the
// rest of the row intact.
func (r *Restrictions) SetAllowlist(ctx context.Context, kind, subjectID string, allowlist []string) error {
	record, err := r.store.GetActiveRestriction(ctx, kind, subjectID)
	if err != nil {
		return errors.Wrap(err, "get restriction")
	}
	if record == nil {
		return errors.Wrap(ErrMissingSubject, "no active restriction")
	}
	record.Allowlist = allowlist
	record.UpdatedAt = r.now().Unix()
	return errors.Wrap(r.store.UpsertRestriction(ctx, record), "upsert restriction")
}

// Active returns the live restriction for (kind, subject), applying lazy
// expiry on the way: an expired record is disabled as the system actor and
// reported as absent, so the triggering event passes through unpenalized.
func (r *Restrictions) Active(ctx context.Context, kind, subjectID string) (*db.Restriction, error) {
	record, err := r.store.GetActiveRestriction(ctx, kind, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "get restriction")
	}
	if record == nil {
		return nil, nil
	}
	if record.Expired(r.now()) {
		r.expire(ctx, record)
		return nil, nil
	}
	return record, nil
}

// SweepExpired disables every restriction whose expiry passed, independent
// of message traffic. Safe to race with lazy expiry.
func (r *Restrictions) SweepExpired(ctx context.Context) (int, error) {
	expired, err := r.store.ListExpiredRestrictions(ctx, r.now())
	if err != nil {
		return 0, errors.Wrap(err, "list expired restrictions")
	}
	disabled := 0
	for _, record := range expired {
		if r.expire(ctx, record) {
			disabled++
		}
	}
	return disabled, nil
}

func (r *Restrictions) expire(ctx context.Context, record *db.Restriction) bool {
	entry := r.getLogEntry().WithFields(log.Fields{
		"kind":    record.Kind,
		"subject": record.SubjectID,
	})
	flipped, err := r.store.DeactivateRestriction(ctx, record.Kind, record.SubjectID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to deactivate expired restriction")
		return false
	}
	if !flipped {
		return false
	}
	r.appendLog(ctx, record, db.ActionUnlock, db.SystemActor, "auto-expired")
	r.notifyExpired(ctx, record)
	entry.Info("restriction expired")
	return true
}

func (r *Restrictions) notifyExpired(ctx context.Context, record *db.Restriction) {
	switch record.Kind {
	case db.KindGlobalMute:
		r.notify.Mirror(ctx, templates.Render("global_mute_expired_mirror", map[string]any{"user": record.SubjectID}))
		r.notify.DM(ctx, record.SubjectID, templates.Render("global_mute_expired_dm", nil))
	case db.KindThreadLock:
		if record.ChannelID != "" {
			r.notify.Mirror(ctx, templates.Render("thread_unlock_mirror", map[string]any{"channel": record.ChannelID}))
		}
	default:
		r.notify.Mirror(ctx, templates.Render("restriction_expired_mirror", map[string]any{
			"kind":    record.Kind,
			"subject": record.SubjectID,
		}))
	}
}

func (r *Restrictions) appendLog(ctx context.Context, record *db.Restriction, action, actor, reason string) {
	if err := r.store.AppendLog(ctx, &db.ModerationLog{
		Kind:        record.Kind,
		SubjectID:   record.SubjectID,
		ChannelID:   record.ChannelID,
		Action:      action,
		PerformedBy: actor,
		Reason:      reason,
		At:          r.now().Unix(),
	}); err != nil {
		r.getLogEntry().WithFields(log.Fields{
			"kind":    record.Kind,
			"subject": record.SubjectID,
		}).WithField("error", err.Error()).Error("failed to append moderation log")
	}
}

func (r *Restrictions) getLogEntry() *log.Entry {
	return log.WithField("object", "Restrictions")
}
