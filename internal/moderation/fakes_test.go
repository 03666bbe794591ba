package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/wavebreak/modbot/internal/db"
)

// fakeStore is an in-memory db.Client with per-method error injection.
type fakeStore struct {
	mu           sync.Mutex
	slowmodes    map[string]*db.Slowmode
	activity     map[string]*db.SlowmodeActivity
	restrictions map[string]*db.Restriction
	logs         []*db.ModerationLog

	getSlowmodeErr    error
	getActivityErr    error
	getRestrictionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slowmodes:    map[string]*db.Slowmode{},
		activity:     map[string]*db.SlowmodeActivity{},
		restrictions: map[string]*db.Restriction{},
	}
}

func slowmodeKey(channel, threadTS string) string { return channel + "|" + threadTS }

func activityKey(channel, threadTS, userID string) string {
	return channel + "|" + threadTS + "|" + userID
}

func restrictionKey(kind, subjectID string) string { return kind + "|" + subjectID }

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetSlowmode(_ context.Context, channel, threadTS string) (*db.Slowmode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getSlowmodeErr != nil {
		return nil, f.getSlowmodeErr
	}
	cfg, ok := f.slowmodes[slowmodeKey(channel, threadTS)]
	if !ok {
		return nil, nil
	}
	copied := *cfg
	return &copied, nil
}

func (f *fakeStore) UpsertSlowmode(_ context.Context, cfg *db.Slowmode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *cfg
	f.slowmodes[slowmodeKey(cfg.Channel, cfg.ThreadTS)] = &copied
	return nil
}

func (f *fakeStore) DeactivateSlowmode(_ context.Context, channel, threadTS string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.slowmodes[slowmodeKey(channel, threadTS)]
	if !ok || !cfg.Active {
		return false, nil
	}
	cfg.Active = false
	return true, nil
}

func (f *fakeStore) ListExpiredSlowmodes(_ context.Context, asOf time.Time) ([]*db.Slowmode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.Slowmode
	for _, cfg := range f.slowmodes {
		if cfg.Active && cfg.Expired(asOf) {
			copied := *cfg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSlowmodeActivity(_ context.Context, channel, threadTS, userID string) (*db.SlowmodeActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getActivityErr != nil {
		return nil, f.getActivityErr
	}
	row, ok := f.activity[activityKey(channel, threadTS, userID)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeStore) RecordSlowmodeActivity(_ context.Context, channel, threadTS, userID string, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity[activityKey(channel, threadTS, userID)] = &db.SlowmodeActivity{
		Channel:       channel,
		ThreadTS:      threadTS,
		UserID:        userID,
		LastMessageAt: at,
	}
	return nil
}

func (f *fakeStore) ClearSlowmodeActivity(_ context.Context, channel, threadTS string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.activity {
		if row.Channel == channel && row.ThreadTS == threadTS {
			delete(f.activity, key)
		}
	}
	return nil
}

func (f *fakeStore) GetActiveRestriction(_ context.Context, kind, subjectID string) (*db.Restriction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRestrictionErr != nil {
		return nil, f.getRestrictionErr
	}
	record, ok := f.restrictions[restrictionKey(kind, subjectID)]
	if !ok || !record.Active {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) UpsertRestriction(_ context.Context, r *db.Restriction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *r
	f.restrictions[restrictionKey(r.Kind, r.SubjectID)] = &copied
	return nil
}

func (f *fakeStore) DeactivateRestriction(_ context.Context, kind, subjectID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.restrictions[restrictionKey(kind, subjectID)]
	if !ok || !record.Active {
		return false, nil
	}
	record.Active = false
	return true, nil
}

func (f *fakeStore) ListExpiredRestrictions(_ context.Context, asOf time.Time) ([]*db.Restriction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.Restriction
	for _, record := range f.restrictions {
		if record.Active && record.Expired(asOf) {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendLog(_ context.Context, entry *db.ModerationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *entry
	f.logs = append(f.logs, &copied)
	return nil
}

func (f *fakeStore) ListLogs(_ context.Context, kind, subjectID string, limit int) ([]*db.ModerationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.ModerationLog
	for i := len(f.logs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		entry := f.logs[i]
		if entry.Kind == kind && entry.SubjectID == subjectID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) lastLog() *db.ModerationLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return nil
	}
	return f.logs[len(f.logs)-1]
}

func (f *fakeStore) restriction(kind, subjectID string) *db.Restriction {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.restrictions[restrictionKey(kind, subjectID)]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (f *fakeStore) slowmode(channel, threadTS string) *db.Slowmode {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.slowmodes[slowmodeKey(channel, threadTS)]
	if !ok {
		return nil
	}
	copied := *cfg
	return &copied
}

func (f *fakeStore) activityCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.activity)
}

// fakeChat is an in-memory platform.Client recording every side effect.
type fakeChat struct {
	mu        sync.Mutex
	deleted   []string
	ephemeral []string
	posted    []string
	kicked    []string
	admins    map[string]bool
	managers  map[string][]string

	deleteErr  error
	kickErr    error
	isAdminErr error

	adminCalls   int
	managerCalls int
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		admins:   map[string]bool{},
		managers: map[string][]string{},
	}
}

func (f *fakeChat) DeleteMessage(_ context.Context, channel, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, channel+"|"+ts)
	return nil
}

func (f *fakeChat) PostEphemeral(_ context.Context, channel, user, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, channel+"|"+user+"|"+text)
	return nil
}

func (f *fakeChat) PostMessage(_ context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, channel+"|"+text)
	return nil
}

func (f *fakeChat) KickFromChannel(_ context.Context, channel, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicked = append(f.kicked, channel+"|"+user)
	return nil
}

func (f *fakeChat) IsAdmin(_ context.Context, user string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminCalls++
	if f.isAdminErr != nil {
		return false, f.isAdminErr
	}
	return f.admins[user], nil
}

func (f *fakeChat) ChannelManagers(_ context.Context, channel string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.managerCalls++
	return f.managers[channel], nil
}

// clock is a manually advanced time source for the engines under test.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func newClock(start time.Time) *clock { return &clock{cur: start} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}
