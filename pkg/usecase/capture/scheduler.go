package capture

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
)

// Start runs CaptureAll once after Warmup and then every CaptureInterval
func (s *Service) Start(ctx context.Context) {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done)
	logging.From(ctx).Debug("auto capture started", "interval", s.cfg.CaptureInterval)
}

// Stop cancels auto capture. Tracked sessions are kept.
func (s *Service) Stop() {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	s.stopLocked()
}

func (s *Service) Running() bool {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.cancel != nil
}

func (s *Service) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	warmup := time.NewTimer(s.cfg.Warmup)
	defer warmup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-warmup.C:
	}
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.cfg.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if n := s.CaptureAll(ctx); n > 0 {
		logging.From(ctx).Info("auto capture done", "captured", n)
	}
}
