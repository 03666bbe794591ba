package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
	stops    int
}

func (c *fakeComponent) Start(_ context.Context) error {
	if c.events != nil {
		*c.events = append(*c.events, "start:"+c.name)
	}
	return c.startErr
}

func (c *fakeComponent) Stop(_ context.Context) error {
	c.stops++
	if c.events != nil {
		*c.events = append(*c.events, "stop:"+c.name)
	}
	return c.stopErr
}

func TestRuntimeStopsInReverseOrder(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 6)
	first := &fakeComponent{name: "store", events: &events}
	second := &fakeComponent{name: "sweeper", events: &events}

	runtime := NewRuntime(first, second)
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop runtime: %v", err)
	}

	expected := []string{"start:store", "start:sweeper", "stop:sweeper", "stop:store"}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("unexpected order: got %v want %v", events, expected)
	}
}

func TestRuntimeStartFailureRollsBack(t *testing.T) {
	t.Parallel()

	startErr := errors.New("boom")
	first := &fakeComponent{name: "store"}
	second := &fakeComponent{name: "sweeper", startErr: startErr}

	runtime := NewRuntime(first, second)
	err := runtime.Start(context.Background())
	if !errors.Is(err, startErr) {
		t.Fatalf("unexpected start error: %v", err)
	}
	if first.stops != 1 {
		t.Fatalf("expected started component to be stopped once, got %d", first.stops)
	}
	if second.stops != 0 {
		t.Fatalf("failed component must not be stopped, got %d", second.stops)
	}

	// Stop after a failed start must be a no-op.
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop after failed start: %v", err)
	}
	if first.stops != 1 {
		t.Fatalf("stop after failed start must not double-stop, got %d", first.stops)
	}
}
