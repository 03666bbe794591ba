package platform

// MessageKind discriminates the payload shapes a message event can arrive in.
// The kind is resolved once at ingestion; the moderation gate never inspects
// raw subtypes.
type MessageKind string

const (
	PlainMessage    MessageKind = "plain"
	ThreadReply     MessageKind = "thread_reply"
	ThreadBroadcast MessageKind = "thread_broadcast"
	Edited          MessageKind = "edited"
	FileShare       MessageKind = "file_share"
)

// MessageEvent is a user-authored message normalized for the gate. Bot
// messages never become events; ingestion drops them.
type MessageEvent struct {
	Kind     MessageKind
	Channel  string
	ThreadTS string
	UserID   string
	TS       string
	Text     string
}

// InThread reports whether the event is part of a thread. Broadcasts count:
// they surface in the channel but still carry their thread's timestamp.
func (e *MessageEvent) InThread() bool {
	return e.ThreadTS != ""
}

// ResolveMessageKind maps a raw (subtype, thread_ts) pair onto the tagged
// union. Unknown subtypes resolve to an empty kind and are dropped upstream.
func ResolveMessageKind(subtype, threadTS string) MessageKind {
	switch subtype {
	case "":
		if threadTS != "" {
			return ThreadReply
		}
		return PlainMessage
	case "thread_broadcast":
		return ThreadBroadcast
	case "message_changed":
		return Edited
	case "file_share":
		return FileShare
	}
	return ""
}
