package booking

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// Sweeper periodically marks confirmed reservations whose end passed more
// than the grace period ago as no_show. Each transition goes through the
// conditional update, so a concurrent operator action (say completing the
// reservation) simply makes the sweep skip it; re-running the sweep over the
// same rows is a no-op.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper creates the no-show sweep. interval defaults to 5 minutes.
func NewSweeper(svc *Service, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (w *Sweeper) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop()

	w.logger.Info().Dur("interval", w.interval).Msg("no-show sweep started")
}

// Stop gracefully stops the sweep.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()

	w.logger.Info().Msg("no-show sweep stopped")
}

func (w *Sweeper) loop() {
	defer w.wg.Done()

	// Run immediately on start, then on every tick.
	w.runOnce()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runOnce()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := w.svc.SweepNoShows(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("no-show sweep failed")
		return
	}
	if swept > 0 {
		w.logger.Info().Int("count", swept).Msg("no-show sweep marked reservations")
	}
}

// SweepNoShows marks overdue confirmed reservations as no_show and returns
// how many it changed. Losing the conditional update to a concurrent
// transition is not an error; the row is just skipped.
func (s *Service) SweepNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.rules.NoShowGrace)
	overdue, err := s.store.ListOverdueConfirmed(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	system := Actor{Role: RoleSystem}
	swept := 0
	for _, r := range overdue {
		if _, err := s.Transition(ctx, system, r.ID, models.StatusNoShow, "missed without cancellation"); err != nil {
			if CodeOf(err) == CodeInvalidTransition || CodeOf(err) == CodeNotFound {
				continue
			}
			return swept, err
		}
		swept++
		metrics.IncNoShowSwept()
	}
	return swept, nil
}
