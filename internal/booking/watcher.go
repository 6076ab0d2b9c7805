package booking

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/websocket"
)

// AvailabilitySource fetches the reserved intervals of a space on a date.
type AvailabilitySource interface {
	ReservedTimes(ctx context.Context, spaceID int64, date string) ([]models.ReservedTime, error)
}

// Watcher keeps open forms in step with the service's reservations and
// forgets forms nobody touches any more.
type Watcher struct {
	cron        *cron.Cron
	registry    *Registry
	source      AvailabilitySource
	broadcaster *websocket.EventBroadcaster
	logger      *zap.Logger

	interval time.Duration
	timeout  time.Duration

	// serializes refresh passes when a manual run overlaps a scheduled one
	refreshMu sync.Mutex
}

// NewWatcher creates a watcher that reloads availability every interval.
// hub may be nil, in which case changes are applied but not announced.
func NewWatcher(registry *Registry, source AvailabilitySource, hub *websocket.Hub, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &Watcher{
		cron:        cron.New(cron.WithSeconds()),
		registry:    registry,
		source:      source,
		broadcaster: broadcaster,
		logger:      logger.Named("watcher"),
		interval:    interval,
		timeout:     10 * time.Second,
	}
}

// Start schedules the refresh and sweep jobs.
func (w *Watcher) Start() error {
	if _, err := w.cron.AddFunc("@every "+w.interval.String(), func() {
		w.Refresh(context.Background())
	}); err != nil {
		return err
	}
	if _, err := w.cron.AddFunc("@every 1m", w.sweep); err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("availability watcher started", zap.Duration("interval", w.interval))
	return nil
}

// Stop waits for running jobs to finish.
func (w *Watcher) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("availability watcher stopped")
}

// Refresh reloads the reserved intervals of every dated form and announces
// the forms whose interval set changed. It returns the number of such forms.
func (w *Watcher) Refresh(ctx context.Context) int {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	type key struct {
		spaceID int64
		date    string
	}
	cache := make(map[key][]models.ReservedTime)
	failed := make(map[key]bool)

	changedForms := 0
	for _, form := range w.registry.Forms() {
		date := form.Date()
		if date == "" {
			continue
		}
		switch form.State() {
		case StateSubmitting, StateConfirmed:
			continue
		}

		k := key{spaceID: form.Space().ID, date: date}
		if failed[k] {
			continue
		}
		reserved, ok := cache[k]
		if !ok {
			var err error
			reserved, err = w.fetch(ctx, k.spaceID, k.date)
			if err != nil {
				failed[k] = true
				w.logger.Warn("reloading reserved times",
					zap.Int64("space_id", k.spaceID),
					zap.String("date", k.date),
					zap.Error(err),
				)
				continue
			}
			cache[k] = reserved
		}

		changed, cleared := form.LoadReserved(date, reserved)
		if !changed && !cleared {
			continue
		}
		changedForms++
		w.logger.Debug("availability changed",
			zap.String("form_id", form.ID()),
			zap.Bool("selection_cleared", cleared),
		)
		if w.broadcaster != nil {
			w.broadcaster.BroadcastAvailabilityChanged(form.ID(), k.spaceID, date, reserved, cleared)
		}
	}
	return changedForms
}

func (w *Watcher) fetch(ctx context.Context, spaceID int64, date string) ([]models.ReservedTime, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.source.ReservedTimes(ctx, spaceID, date)
}

func (w *Watcher) sweep() {
	if removed := w.registry.Sweep(); removed > 0 {
		w.logger.Info("discarded idle booking forms", zap.Int("count", removed))
	}
}
