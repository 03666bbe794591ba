package platform

import "context"

// Client is the moderation core's view of the chat platform. Every call is a
// remote operation owned by the adapter, including its timeout policy; the
// engines treat delete/notify/kick as best-effort side effects.
type Client interface {
	DeleteMessage(ctx context.Context, channel, ts string) error
	PostEphemeral(ctx context.Context, channel, user, threadTS, text string) error
	PostMessage(ctx context.Context, channel, threadTS, text string) error
	KickFromChannel(ctx context.Context, channel, user string) error
	IsAdmin(ctx context.Context, user string) (bool, error)
	ChannelManagers(ctx context.Context, channel string) ([]string, error)
}
