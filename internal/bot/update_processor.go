package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"github.com/wavebreak/modbot/internal/moderation"
	"github.com/wavebreak/modbot/internal/observability"
	"github.com/wavebreak/modbot/internal/platform"
)

const (
	UpdateTimeout = 5 * time.Minute
)

// UpdateProcessor normalizes raw Slack message events and feeds them through
// the moderation gate. It owns the drop rules: bot authors, unknown subtypes
// and stale events never reach the gate.
type UpdateProcessor struct {
	gate *moderation.Gate
}

func NewUpdateProcessor(gate *moderation.Gate) *UpdateProcessor {
	return &UpdateProcessor{
		gate: gate,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, raw *slackevents.MessageEvent) error {
	if raw == nil {
		return errors.New("message event is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ev, ok := up.normalize(raw)
	if !ok {
		return nil
	}

	if age := eventAge(ev.TS); age > UpdateTimeout {
		log.WithFields(log.Fields{
			"ts":  ev.TS,
			"age": age,
		}).Debug("Skipping outdated event")
		return nil
	}

	decision, result := up.gate.Process(ctx, ev)
	if decision.Verdict == moderation.VerdictDeny {
		fields := []zap.Field{
			zap.String("source", decision.Source),
			zap.String("channel", ev.Channel),
			zap.String("user_id", ev.UserID),
			zap.String("kind", string(ev.Kind)),
		}
		if result != nil {
			fields = append(fields,
				zap.Bool("deleted", result.MessageDeleted),
				zap.Bool("warned", result.WarningSent),
				zap.Bool("kicked", result.Kicked),
			)
			if result.Error != "" {
				fields = append(fields, zap.String("enforcement_error", result.Error))
			}
		}
		observability.Logger.Info("message denied", fields...)
	}
	return nil
}

// normalize maps the wire event onto the gate's input. Edits carry the
// original author inside the nested message, everything else reads off the
// top level.
func (up *UpdateProcessor) normalize(raw *slackevents.MessageEvent) (*platform.MessageEvent, bool) {
	if raw.BotID != "" {
		return nil, false
	}

	userID := raw.User
	text := raw.Text
	ts := raw.TimeStamp
	threadTS := raw.ThreadTimeStamp
	if raw.SubType == "message_changed" && raw.Message != nil {
		if raw.Message.BotID != "" {
			return nil, false
		}
		userID = raw.Message.User
		text = raw.Message.Text
		ts = raw.Message.TimeStamp
		threadTS = raw.Message.ThreadTimeStamp
	}
	if userID == "" {
		return nil, false
	}

	kind := platform.ResolveMessageKind(raw.SubType, threadTS)
	if kind == "" {
		log.WithField("subtype", raw.SubType).Debug("Skipping unhandled message subtype")
		return nil, false
	}

	return &platform.MessageEvent{
		Kind:     kind,
		Channel:  raw.Channel,
		ThreadTS: threadTS,
		UserID:   userID,
		TS:       ts,
		Text:     text,
	}, true
}

// eventAge reads the seconds part of a Slack "1700000000.000100" timestamp.
func eventAge(ts string) time.Duration {
	sec, err := strconv.ParseInt(strings.SplitN(ts, ".", 2)[0], 10, 64)
	if err != nil {
		return 0
	}
	return time.Since(time.Unix(sec, 0))
}
