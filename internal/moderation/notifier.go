package moderation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/wavebreak/modbot/internal/platform"
)

// Notifier posts moderation notices to the mirror channel and to affected
// users. All of it is best-effort: failures are logged and swallowed so a
// flaky notification can never block a state transition.
type Notifier struct {
	chat   platform.Client
	mirror string
}

func NewNotifier(chat platform.Client, mirrorChannel string) *Notifier {
	return &Notifier{chat: chat, mirror: mirrorChannel}
}

func (n *Notifier) Mirror(ctx context.Context, text string) {
	if n.mirror == "" {
		return
	}
	if err := n.chat.PostMessage(ctx, n.mirror, "", text); err != nil {
		n.getLogEntry().WithField("error", err.Error()).Error("failed to post mirror notice")
	}
}

func (n *Notifier) DM(ctx context.Context, userID, text string) {
	if err := n.chat.PostMessage(ctx, userID, "", text); err != nil {
		n.getLogEntry().WithField("user_id", userID).WithField("error", err.Error()).Error("failed to notify user")
	}
}

func (n *Notifier) getLogEntry() *log.Entry {
	return log.WithField("object", "Notifier")
}
