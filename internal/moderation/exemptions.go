package moderation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wavebreak/modbot/internal/cache"
	"github.com/wavebreak/modbot/internal/db"
	"github.com/wavebreak/modbot/internal/platform"
)

// Scope is where a restriction applies: a channel, a thread within a
// channel, or the whole workspace (zero value).
type Scope struct {
	Channel  string
	ThreadTS string
}

func GlobalScope() Scope {
	return Scope{}
}

func ChannelScope(channel string) Scope {
	return Scope{Channel: channel}
}

func ThreadScope(channel, threadTS string) Scope {
	return Scope{Channel: channel, ThreadTS: threadTS}
}

// Exemptions decides whether an actor is immune to restrictions. Admin and
// channel-manager answers come from the platform and are cached with a short
// TTL because every message event triggers a lookup; staleness up to the TTL
// is accepted over hammering the remote API. Lookup failures resolve to
// "not exempt" and are logged, matching how a missing manager list behaves.
type Exemptions struct {
	chat     platform.Client
	admins   *cache.TTL[string, bool]
	managers *cache.TTL[string, []string]
}

func NewExemptions(chat platform.Client, ttl time.Duration, now func() time.Time) *Exemptions {
	return &Exemptions{
		chat:     chat,
		admins:   cache.NewTTL[string, bool](ttl, now),
		managers: cache.NewTTL[string, []string](ttl, now),
	}
}

func (e *Exemptions) IsAdmin(ctx context.Context, userID string) bool {
	if isAdmin, ok := e.admins.Get(userID); ok {
		return isAdmin
	}
	isAdmin, err := e.chat.IsAdmin(ctx, userID)
	if err != nil {
		e.getLogEntry().WithField("user_id", userID).WithField("error", err.Error()).Warn("failed to resolve admin flag")
		return false
	}
	e.admins.Set(userID, isAdmin)
	return isAdmin
}

func (e *Exemptions) channelManagers(ctx context.Context, channel string) []string {
	if managers, ok := e.managers.Get(channel); ok {
		return managers
	}
	managers, err := e.chat.ChannelManagers(ctx, channel)
	if err != nil {
		e.getLogEntry().WithField("channel", channel).WithField("error", err.Error()).Warn("failed to resolve channel managers")
		return nil
	}
	e.managers.Set(channel, managers)
	return managers
}

// IsExempt short-circuits in precedence order: workspace admin, then manager
// of the channel in scope, then the restriction's own allowlist.
func (e *Exemptions) IsExempt(ctx context.Context, userID string, scope Scope, allowlist db.StringSet) bool {
	if e.IsAdmin(ctx, userID) {
		return true
	}
	if scope.Channel != "" {
		for _, manager := range e.channelManagers(ctx, scope.Channel) {
			if manager == userID {
				return true
			}
		}
	}
	return allowlist.Contains(userID)
}

// SweepCaches drops expired entries so the maps do not grow unbounded; the
// background sweeper calls this alongside restriction expiry.
func (e *Exemptions) SweepCaches() int {
	return e.admins.Sweep() + e.managers.Sweep()
}

func (e *Exemptions) getLogEntry() *log.Entry {
	return log.WithField("object", "Exemptions")
}
