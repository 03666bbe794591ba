package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/wavebreak/modbot/internal/db"
	"github.com/wavebreak/modbot/internal/observability"
	"github.com/wavebreak/modbot/internal/platform"
	"github.com/wavebreak/modbot/internal/templates"
)

// Gate is the single decision point for inbound messages. Checks run as an
// explicit ordered pipeline; the first applicable deny wins and global mutes
// outrank everything because no per-channel allowlist can override them.
// A store failure mid-pipeline fails open: the one message goes through
// unenforced rather than stalling the event path.
type Gate struct {
	chat         platform.Client
	exempts      *Exemptions
	restrictions *Restrictions
	slowmode     *Slowmode
}

func NewGate(chat platform.Client, exempts *Exemptions, restrictions *Restrictions, slowmode *Slowmode) *Gate {
	return &Gate{
		chat:         chat,
		exempts:      exempts,
		restrictions: restrictions,
		slowmode:     slowmode,
	}
}

// Process evaluates one message and carries out the resulting side effects.
func (g *Gate) Process(ctx context.Context, ev *platform.MessageEvent) (Decision, *EnforcementResult) {
	decision := g.Evaluate(ctx, ev)
	observability.RecordGateDecision(decision.Source, decision.Verdict.String())
	if decision.Verdict == VerdictAllow {
		return decision, nil
	}
	return decision, g.Enforce(ctx, ev, decision)
}

func (g *Gate) Evaluate(ctx context.Context, ev *platform.MessageEvent) Decision {
	ctx, span := otel.Tracer("moderation-gate").Start(ctx, "evaluate-message")
	defer span.End()

	done := observability.StartGateEvaluation()
	defer func() { done("completed") }()

	if ev.Kind == platform.Edited {
		// Edits are not new messages; none of the restrictions meter them.
		return allowed()
	}

	type check struct {
		name       string
		applicable bool
		run        func(context.Context, *platform.MessageEvent) (Decision, error)
	}
	checks := []check{
		{"global_mute", true, g.checkGlobalMute},
		{"channel_ban", true, g.checkChannelBan},
		{"read_only", ev.Kind != platform.ThreadReply, g.checkReadOnly},
		{"thread_lock", ev.Kind == platform.ThreadReply || ev.Kind == platform.ThreadBroadcast, g.checkThreadLock},
		{"slowmode", ev.Kind == platform.PlainMessage || ev.Kind == platform.ThreadReply, g.slowmode.Check},
	}

	for _, c := range checks {
		if !c.applicable {
			continue
		}
		decision, err := c.run(ctx, ev)
		if err != nil {
			g.getLogEntry().WithFields(log.Fields{
				"check":   c.name,
				"channel": ev.Channel,
				"user_id": ev.UserID,
			}).WithField("error", err.Error()).Error("check failed, failing open for this message")
			observability.RecordGateFailOpen(c.name)
			return allowed()
		}
		if decision.Verdict == VerdictDeny {
			return decision
		}
	}
	return allowed()
}

func (g *Gate) checkGlobalMute(ctx context.Context, ev *platform.MessageEvent) (Decision, error) {
	record, err := g.restrictions.Active(ctx, db.KindGlobalMute, ev.UserID)
	if err != nil || record == nil {
		return allowed(), err
	}
	if g.exempts.IsExempt(ctx, ev.UserID, GlobalScope(), record.Allowlist) {
		return allowed(), nil
	}
	return Decision{
		Verdict: VerdictDeny,
		Source:  db.KindGlobalMute,
		Warning: templates.Render("global_mute_warning", map[string]any{
			"reason": record.Reason,
			"text":   ev.Text,
		}),
		Kick:    true,
	}, nil
}

func (g *Gate) checkChannelBan(ctx context.Context, ev *platform.MessageEvent) (Decision, error) {
	record, err := g.restrictions.Active(ctx, db.KindChannelBan, db.ChannelBanSubject(ev.Channel, ev.UserID))
	if err != nil || record == nil {
		return allowed(), err
	}
	if g.exempts.IsExempt(ctx, ev.UserID, ChannelScope(ev.Channel), record.Allowlist) {
		return allowed(), nil
	}
	return Decision{
		Verdict: VerdictDeny,
		Source:  db.KindChannelBan,
		Warning: templates.Render("channel_ban_warning", map[string]any{
			"reason": record.Reason,
			"text":   ev.Text,
		}),
		Kick: true,
	}, nil
}

func (g *Gate) checkReadOnly(ctx context.Context, ev *platform.MessageEvent) (Decision, error) {
	record, err := g.restrictions.Active(ctx, db.KindReadOnly, ev.Channel)
	if err != nil || record == nil {
		return allowed(), err
	}
	if g.exempts.IsExempt(ctx, ev.UserID, ChannelScope(ev.Channel), record.Allowlist) {
		return allowed(), nil
	}
	return Decision{
		Verdict: VerdictDeny,
		Source:  db.KindReadOnly,
		Warning: templates.Render("readonly_warning", map[string]any{"text": ev.Text}),
	}, nil
}

func (g *Gate) checkThreadLock(ctx context.Context, ev *platform.MessageEvent) (Decision, error) {
	record, err := g.restrictions.Active(ctx, db.KindThreadLock, ev.ThreadTS)
	if err != nil || record == nil {
		return allowed(), err
	}
	if g.exempts.IsExempt(ctx, ev.UserID, ThreadScope(ev.Channel, ev.ThreadTS), record.Allowlist) {
		return allowed(), nil
	}
	warning := templates.Render("thread_lock_warning_indefinite", map[string]any{"text": ev.Text})
	if record.ExpiresAt != nil {
		warning = templates.Render("thread_lock_warning", map[string]any{
			"until": slackDateToken(*record.ExpiresAt),
			"text":  ev.Text,
		})
	}
	return Decision{
		Verdict: VerdictDeny,
		Source:  db.KindThreadLock,
		Warning: warning,
	}, nil
}

// slackDateToken renders an epoch as a date token Slack clients expand in the
// viewer's own timezone. The fallback text is UTC for surfaces that don't.
func slackDateToken(epoch int64) string {
	fallback := time.Unix(epoch, 0).UTC().Format("January 2, 2006 3:04 PM MST")
	return fmt.Sprintf("<!date^%d^{date_long} at {time}|%s>", epoch, fallback)
}

// Enforce carries out a deny. Each side effect is independent and
// best-effort: a failed kick never aborts the delete, and failures are
// recorded, not returned.
func (g *Gate) Enforce(ctx context.Context, ev *platform.MessageEvent, decision Decision) *EnforcementResult {
	entry := g.getLogEntry().WithFields(log.Fields{
		"source":  decision.Source,
		"channel": ev.Channel,
		"user_id": ev.UserID,
	})
	result := &EnforcementResult{}
	var failures []string

	if err := g.chat.DeleteMessage(ctx, ev.Channel, ev.TS); err != nil {
		entry.WithField("error", err.Error()).Error("failed to delete message")
		failures = append(failures, "delete: "+err.Error())
	} else {
		result.MessageDeleted = true
	}

	if decision.Warning != "" {
		if err := g.chat.PostEphemeral(ctx, ev.Channel, ev.UserID, ev.ThreadTS, decision.Warning); err != nil {
			entry.WithField("error", err.Error()).Error("failed to send warning")
			failures = append(failures, "warn: "+err.Error())
		} else {
			result.WarningSent = true
		}
	}

	if decision.Kick {
		if err := g.chat.KickFromChannel(ctx, ev.Channel, ev.UserID); err != nil {
			entry.WithField("error", err.Error()).Warn("failed to remove user from channel")
			failures = append(failures, "kick: "+err.Error())
		} else {
			result.Kicked = true
		}
	}

	result.Error = strings.Join(failures, "; ")
	observability.RecordEnforcement(decision.Source, result.MessageDeleted)
	return result
}

func (g *Gate) getLogEntry() *log.Entry {
	return log.WithField("object", "Gate")
}
