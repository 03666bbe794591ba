package templates

import (
	"strings"
	"testing"
)

func TestRenderSubstitutes(t *testing.T) {
	t.Parallel()

	got := Render("slowmode_warning", map[string]any{"seconds": int64(7)})
	if !strings.Contains(got, "7 seconds") {
		t.Fatalf("expected interpolated seconds, got %q", got)
	}

	got = Render("global_mute_expired_mirror", map[string]any{"user": "U123"})
	if !strings.Contains(got, "<@U123>") {
		t.Fatalf("expected user mention, got %q", got)
	}
}

func TestRenderWithoutData(t *testing.T) {
	t.Parallel()

	got := Render("global_mute_expired_dm", nil)
	if !strings.Contains(got, "unmuted") {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderMissingKeyFallsBackToKey(t *testing.T) {
	t.Parallel()

	if got := Render("no_such_key", nil); got != "no_such_key" {
		t.Fatalf("expected key passthrough, got %q", got)
	}
}
