package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// Component is a long-running part of the process with explicit start and
// stop phases, e.g. the expiry sweeper.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Runtime struct {
	components []Component
	started    []Component
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{components: components}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start brings components up in registration order. On failure the already
// started ones are stopped in reverse before the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			_ = stopInReverse(ctx, r.started)
			r.started = nil
			return fmt.Errorf("start component: %w", err)
		}
		r.started = append(r.started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	err := stopInReverse(ctx, r.started)
	r.started = nil
	return err
}

func stopInReverse(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		if components[i] == nil {
			continue
		}
		if err := components[i].Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop component: %w", err))
		}
	}
	return stopErr
}
