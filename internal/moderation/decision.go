package moderation

// Verdict is the authoritative outcome of the gate for one message. It is
// separate from the side effects that carry it out: the verdict must never
// fail silently, while delete/warn/kick are best-effort.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeny
)

func (v Verdict) String() string {
	if v == VerdictDeny {
		return "deny"
	}
	return "allow"
}

type Decision struct {
	Verdict Verdict
	// Source names the restriction that produced a deny, e.g. "global_mute"
	// or "slowmode". Empty for allows.
	Source  string
	Warning string
	Kick    bool
}

func allowed() Decision {
	return Decision{Verdict: VerdictAllow}
}

// EnforcementResult records what actually happened when a deny was carried
// out. Collaborator failures land in Error and are already logged; they never
// invalidate the decision itself.
type EnforcementResult struct {
	MessageDeleted bool
	WarningSent    bool
	Kicked         bool
	Error          string
}
