package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wavebreak/modbot/internal/infra"
	"github.com/wavebreak/modbot/internal/observability"
)

// Sweeper periodically retires expired slowmodes and restrictions so that
// cleanup does not depend on a message arriving in the affected scope. Lazy
// expiry in the engines still covers the window between ticks.
type Sweeper struct {
	restrictions *Restrictions
	slowmode     *Slowmode
	exempts      *Exemptions
	interval     time.Duration

	mu         sync.Mutex
	started    bool
	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewSweeper(restrictions *Restrictions, slowmode *Slowmode, exempts *Exemptions, interval time.Duration) *Sweeper {
	return &Sweeper{
		restrictions: restrictions,
		slowmode:     slowmode,
		exempts:      exempts,
		interval:     interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("sweeper already started")
	}
	if s.interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	s.runtimeCtx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		infra.GoRecoverable(2, "sweeper loop", func() {
			s.loop(s.runtimeCtx)
		})
	}()
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sweeper did not stop in time")
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	runID := uuid.New()
	entry := s.getLogEntry().WithField("run_id", runID)
	started := time.Now()

	restrictionsRetired, err := s.restrictions.SweepExpired(ctx)
	if err != nil {
		entry.WithField("error", err.Error()).Error("restriction sweep failed")
	}
	slowmodesRetired, err := s.slowmode.SweepExpired(ctx)
	if err != nil {
		entry.WithField("error", err.Error()).Error("slowmode sweep failed")
	}
	s.exempts.SweepCaches()

	observability.RecordSweep(restrictionsRetired + slowmodesRetired)
	if restrictionsRetired+slowmodesRetired > 0 {
		entry.WithFields(log.Fields{
			"restrictions": restrictionsRetired,
			"slowmodes":    slowmodesRetired,
			"took":         time.Since(started).String(),
		}).Info("retired expired moderation state")
	}
}

func (s *Sweeper) getLogEntry() *log.Entry {
	return log.WithField("object", "Sweeper")
}
