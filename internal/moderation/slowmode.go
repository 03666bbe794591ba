package moderation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wavebreak/modbot/internal/db"
	"github.com/wavebreak/modbot/internal/platform"
	"github.com/wavebreak/modbot/internal/templates"
)

const slowmodeLogKind = "slowmode"

// Slowmode enforces a per-actor minimum interval between messages, scoped to
// a channel or a single thread. All state lives in the store; the engine
// holds nothing between invocations, so concurrent messages only contend on
// the store's row keys.
type Slowmode struct {
	store   db.Client
	exempts *Exemptions
	notify  *Notifier
	now     func() time.Time
}

type SlowmodeParams struct {
	Channel         string
	ThreadTS        string
	IntervalSeconds int
	ExpiresAt       *time.Time
	Reason          string
	CreatedBy       string
	Whitelist       []string
	ApplyToThreads  bool
}

func NewSlowmode(store db.Client, exempts *Exemptions, notify *Notifier, now func() time.Time) *Slowmode {
	if now == nil {
		now = time.Now
	}
	return &Slowmode{store: store, exempts: exempts, notify: notify, now: now}
}

// Enable creates or updates the config for (channel, thread). Validation is
// synchronous and mutates nothing on failure.
func (s *Slowmode) Enable(ctx context.Context, p SlowmodeParams) error {
	if p.Channel == "" {
		return ErrMissingSubject
	}
	if p.IntervalSeconds < 1 {
		return errors.Wrap(ErrInvalidInterval, "interval_seconds")
	}
	now := s.now()
	var expiresAt *int64
	if p.ExpiresAt != nil {
		if !p.ExpiresAt.After(now) {
			return errors.Wrap(ErrExpiryInPast, "expires_at")
		}
		unix := p.ExpiresAt.Unix()
		expiresAt = &unix
	}

	cfg := &db.Slowmode{
		Channel:         p.Channel,
		ThreadTS:        p.ThreadTS,
		Active:          true,
		IntervalSeconds: p.IntervalSeconds,
		ExpiresAt:       expiresAt,
		Reason:          p.Reason,
		CreatedBy:       p.CreatedBy,
		Whitelist:       p.Whitelist,
		ApplyToThreads:  p.ApplyToThreads,
		UpdatedAt:       now.Unix(),
	}
	if err := s.store.UpsertSlowmode(ctx, cfg); err != nil {
		return errors.Wrap(err, "upsert slowmode")
	}
	if err := s.store.AppendLog(ctx, &db.ModerationLog{
		Kind:        slowmodeLogKind,
		SubjectID:   slowmodeSubject(p.Channel, p.ThreadTS),
		ChannelID:   p.Channel,
		Action:      db.ActionLock,
		PerformedBy: p.CreatedBy,
		Reason:      p.Reason,
		At:          now.Unix(),
	}); err != nil {
		s.getLogEntry().WithField("error", err.Error()).Error("failed to append slowmode log")
	}
	s.notify.Mirror(ctx, templates.Render("slowmode_enabled_mirror", map[string]any{
		"location": slowmodeLocation(p.Channel, p.ThreadTS),
		"interval": p.IntervalSeconds,
		"actor":    p.CreatedBy,
	}))
	return nil
}

// Disable turns the config off explicitly. Disabling an already inactive or
// absent config is a no-op.
func (s *Slowmode) Disable(ctx context.Context, channel, threadTS, actor string) error {
	flipped, err := s.store.DeactivateSlowmode(ctx, channel, threadTS)
	if err != nil {
		return errors.Wrap(err, "deactivate slowmode")
	}
	if !flipped {
		return nil
	}
	if err := s.store.ClearSlowmodeActivity(ctx, channel, threadTS); err != nil {
		s.getLogEntry().WithField("error", err.Error()).Error("failed to clear slowmode activity")
	}
	if err := s.store.AppendLog(ctx, &db.ModerationLog{
		Kind:        slowmodeLogKind,
		SubjectID:   slowmodeSubject(channel, threadTS),
		ChannelID:   channel,
		Action:      db.ActionUnlock,
		PerformedBy: actor,
		At:          s.now().Unix(),
	}); err != nil {
		s.getLogEntry().WithField("error", err.Error()).Error("failed to append slowmode log")
	}
	s.notify.Mirror(ctx, templates.Render("slowmode_disabled_mirror", map[string]any{
		"location": slowmodeLocation(channel, threadTS),
		"actor":    actor,
	}))
	return nil
}

// Status returns the current config row for the exact (channel, thread)
// pair, active or not, nil when none was ever configured.
func (s *Slowmode) Status(ctx context.Context, channel, threadTS string) (*db.Slowmode, error) {
	return s.store.GetSlowmode(ctx, channel, threadTS)
}

// Check runs the cooldown decision for one inbound message. The most
// specific scope wins: a thread-scoped config always shadows the
// channel-scoped one regardless of their intervals.
func (s *Slowmode) Check(ctx context.Context, ev *platform.MessageEvent) (Decision, error) {
	cfg, err := s.applicableConfig(ctx, ev)
	if err != nil {
		return allowed(), err
	}
	if cfg == nil || !cfg.Active {
		return allowed(), nil
	}

	now := s.now()
	if cfg.Expired(now) {
		// The message that surfaces the expiry is never penalized.
		s.expireConfig(ctx, cfg)
		return allowed(), nil
	}

	if s.exempts.IsExempt(ctx, ev.UserID, ThreadScope(cfg.Channel, cfg.ThreadTS), cfg.Whitelist) {
		return allowed(), nil
	}

	activity, err := s.store.GetSlowmodeActivity(ctx, cfg.Channel, cfg.ThreadTS, ev.UserID)
	if err != nil {
		return allowed(), errors.Wrap(err, "get slowmode activity")
	}
	if activity == nil {
		// First message under an active config is always free.
		if err := s.store.RecordSlowmodeActivity(ctx, cfg.Channel, cfg.ThreadTS, ev.UserID, now.Unix()); err != nil {
			return allowed(), errors.Wrap(err, "record slowmode activity")
		}
		return allowed(), nil
	}

	elapsed := now.Unix() - activity.LastMessageAt
	if elapsed >= int64(cfg.IntervalSeconds) {
		if err := s.store.RecordSlowmodeActivity(ctx, cfg.Channel, cfg.ThreadTS, ev.UserID, now.Unix()); err != nil {
			return allowed(), errors.Wrap(err, "record slowmode activity")
		}
		return allowed(), nil
	}

	// Denials do not advance last_message_at: repeated attempts inside the
	// window keep being measured against the original timestamp.
	remaining := int64(cfg.IntervalSeconds) - elapsed
	warning := templates.Render("slowmode_warning", map[string]any{"seconds": remaining})
	if ev.Text != "" {
		warning = templates.Render("slowmode_warning_quote", map[string]any{
			"seconds": remaining,
			"text":    ev.Text,
		})
	}
	return Decision{
		Verdict: VerdictDeny,
		Source:  slowmodeLogKind,
		Warning: warning,
	}, nil
}

// applicableConfig implements the scope preference: exact thread config
// first, then the channel config, which only reaches into threads when
// apply_to_threads is set.
func (s *Slowmode) applicableConfig(ctx context.Context, ev *platform.MessageEvent) (*db.Slowmode, error) {
	if ev.InThread() {
		cfg, err := s.store.GetSlowmode(ctx, ev.Channel, ev.ThreadTS)
		if err != nil {
			return nil, errors.Wrap(err, "get thread slowmode")
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	cfg, err := s.store.GetSlowmode(ctx, ev.Channel, "")
	if err != nil {
		return nil, errors.Wrap(err, "get channel slowmode")
	}
	if cfg != nil && ev.InThread() && !cfg.ApplyToThreads {
		return nil, nil
	}
	return cfg, nil
}

// SweepExpired proactively deactivates configs whose expiry passed without
// any further traffic. Shares the disable path with lazy expiry, so racing
// the two is harmless.
func (s *Slowmode) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredSlowmodes(ctx, s.now())
	if err != nil {
		return 0, errors.Wrap(err, "list expired slowmodes")
	}
	disabled := 0
	for _, cfg := range expired {
		if s.expireConfig(ctx, cfg) {
			disabled++
		}
	}
	return disabled, nil
}

func (s *Slowmode) expireConfig(ctx context.Context, cfg *db.Slowmode) bool {
	entry := s.getLogEntry().WithFields(log.Fields{
		"channel":   cfg.Channel,
		"thread_ts": cfg.ThreadTS,
	})
	flipped, err := s.store.DeactivateSlowmode(ctx, cfg.Channel, cfg.ThreadTS)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to deactivate expired slowmode")
		return false
	}
	if !flipped {
		// Lazy expiry and the sweep raced; the other one won.
		return false
	}
	if err := s.store.ClearSlowmodeActivity(ctx, cfg.Channel, cfg.ThreadTS); err != nil {
		entry.WithField("error", err.Error()).Error("failed to clear slowmode activity")
	}
	if err := s.store.AppendLog(ctx, &db.ModerationLog{
		Kind:        slowmodeLogKind,
		SubjectID:   slowmodeSubject(cfg.Channel, cfg.ThreadTS),
		ChannelID:   cfg.Channel,
		Action:      db.ActionUnlock,
		PerformedBy: db.SystemActor,
		Reason:      "auto-expired",
		At:          s.now().Unix(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to append slowmode log")
	}

	s.notify.Mirror(ctx, templates.Render("slowmode_expired_mirror", map[string]any{
		"location": slowmodeLocation(cfg.Channel, cfg.ThreadTS),
	}))
	entry.Info("slowmode expired")
	return true
}

func slowmodeSubject(channel, threadTS string) string {
	if threadTS == "" {
		return channel
	}
	return channel + "/" + threadTS
}

func slowmodeLocation(channel, threadTS string) string {
	if threadTS == "" {
		return "<#" + channel + ">"
	}
	return "a thread in <#" + channel + ">"
}

func (s *Slowmode) getLogEntry() *log.Entry {
	return log.WithField("object", "Slowmode")
}
