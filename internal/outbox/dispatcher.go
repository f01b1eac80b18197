// Package outbox delivers the domain events persisted alongside reservation
// writes. Delivery is strictly after commit, so a notification failure can
// never undo a reservation; failures are recorded and retried on later polls.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// EventStore is the outbox persistence surface. *database.DB satisfies it.
type EventStore interface {
	ListPendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkEventDelivered(ctx context.Context, id int64) error
	MarkEventFailed(ctx context.Context, id int64, deliveryErr error) error
}

// Notifier receives delivered events. Implementations must tolerate duplicate
// deliveries; EventID is stable across retries for dedup.
type Notifier interface {
	Notify(ctx context.Context, evt models.OutboxEvent) error
}

// Config holds the dispatcher tunables.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RatePerSec   float64
	Burst        int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
		RatePerSec:   25,
		Burst:        30,
	}
}

// Dispatcher polls the outbox and fans events out to the notifiers.
type Dispatcher struct {
	store     EventStore
	notifiers []Notifier
	cfg       Config
	limiter   *rate.Limiter
	logger    *zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(store EventStore, notifiers []Notifier, cfg Config, logger *zerolog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}
	return &Dispatcher{
		store:     store,
		notifiers: notifiers,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the delivery loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop()

	d.logger.Info().Dur("poll_interval", d.cfg.PollInterval).Msg("outbox dispatcher started")
}

// Stop gracefully stops the dispatcher.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	d.logger.Info().Msg("outbox dispatcher stopped")
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PollInterval)
			if err := d.DeliverPending(ctx); err != nil {
				d.logger.Error().Err(err).Msg("outbox poll failed")
			}
			cancel()
		case <-d.stopCh:
			return
		}
	}
}

// DeliverPending drains one batch of undelivered events. An event counts as
// delivered only when every notifier accepted it; a partial failure is
// retried to all notifiers, so notifiers dedup on EventID.
func (d *Dispatcher) DeliverPending(ctx context.Context) error {
	events, err := d.store.ListPendingEvents(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := d.deliver(ctx, evt); err != nil {
			metrics.IncOutboxDelivered("failed")
			d.logger.Warn().
				Err(err).
				Int64("event_id", evt.ID).
				Str("type", evt.Type).
				Int("attempts", evt.Attempts+1).
				Msg("event delivery failed")
			if markErr := d.store.MarkEventFailed(ctx, evt.ID, err); markErr != nil {
				return markErr
			}
			continue
		}

		metrics.IncOutboxDelivered("delivered")
		if err := d.store.MarkEventDelivered(ctx, evt.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, evt models.OutboxEvent) error {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}
