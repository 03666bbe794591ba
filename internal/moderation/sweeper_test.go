package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/wavebreak/modbot/internal/db"
)

func TestSweeperRetiresExpiredState(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	chat := newFakeChat()
	clk := newClock(time.Unix(1700000000, 0))
	exempts := NewExemptions(chat, time.Minute, clk.Now)
	notify := NewNotifier(chat, "C_MIRROR")
	restrictions := NewRestrictions(store, notify, clk.Now)
	slowmode := NewSlowmode(store, exempts, notify, clk.Now)
	ctx := context.Background()

	expiry := clk.Now().Add(time.Second)
	if err := restrictions.Enable(ctx, RestrictionParams{Kind: db.KindGlobalMute, SubjectID: "U1", ExpiresAt: &expiry}); err != nil {
		t.Fatalf("enable restriction: %v", err)
	}
	if err := slowmode.Enable(ctx, SlowmodeParams{Channel: "C1", IntervalSeconds: 5, ExpiresAt: &expiry}); err != nil {
		t.Fatalf("enable slowmode: %v", err)
	}
	clk.Advance(2 * time.Second)

	s := NewSweeper(restrictions, slowmode, exempts, 5*time.Millisecond)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("second start must fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mute := store.restriction(db.KindGlobalMute, "U1")
		cfg := store.slowmode("C1", "")
		if mute != nil && !mute.Active && cfg != nil && !cfg.Active {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if mute := store.restriction(db.KindGlobalMute, "U1"); mute == nil || mute.Active {
		t.Fatal("expected the mute retired by the sweeper")
	}
	if cfg := store.slowmode("C1", ""); cfg == nil || cfg.Active {
		t.Fatal("expected the slowmode retired by the sweeper")
	}
}

func TestSweeperStopWithoutStart(t *testing.T) {
	t.Parallel()
	s := NewSweeper(nil, nil, nil, time.Minute)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop without start must be a no-op, got %v", err)
	}
}

func TestSweeperRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()
	s := NewSweeper(nil, nil, nil, 0)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
