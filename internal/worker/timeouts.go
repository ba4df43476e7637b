package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/metrics"
	"cashdesk-bot/internal/models"
)

type Lister interface {
	ListByStatus(ctx context.Context, status models.Status) ([]models.Deposit, error)
}

type Expirer interface {
	Expire(ctx context.Context, id int64) (*models.Deposit, error)
}

// Timeouts cancels PAID deposits whose payment window elapsed without a
// receipt. At most one timer is armed per deposit. Expiry itself is a
// compare-and-swap, so a timer firing after the receipt arrived is harmless.
type Timeouts struct {
	store      Lister
	window     time.Duration
	sweepEvery time.Duration
	log        *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	expirer Expirer
	ctx     context.Context
}

func NewTimeouts(store Lister, window time.Duration, log *zap.Logger) *Timeouts {
	return &Timeouts{
		store:      store,
		window:     window,
		sweepEvery: time.Minute,
		log:        log.Named("timeouts"),
		now:        func() time.Time { return time.Now().UTC() },
		timers:     make(map[int64]*time.Timer),
	}
}

// Arm schedules the expiry of a deposit that entered PAID at paidAt.
func (t *Timeouts) Arm(depositID int64, paidAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.timers[depositID]; ok {
		return
	}
	delay := paidAt.Add(t.window).Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	t.timers[depositID] = time.AfterFunc(delay, func() { t.fire(depositID) })
	metrics.ArmedTimers.Inc()
	t.log.Debug("payment timeout armed", zap.Int64("deposit_id", depositID), zap.Duration("in", delay))
}

// Armed reports how many timers are pending.
func (t *Timeouts) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Start recovers the timers of deposits left PAID by a previous run and
// then sweeps periodically until ctx is done. Timers that fire before Start
// are left to the first sweep.
func (t *Timeouts) Start(ctx context.Context, expirer Expirer) error {
	t.mu.Lock()
	t.expirer = expirer
	t.ctx = ctx
	t.mu.Unlock()

	t.log.Info("payment timeout worker started", zap.Duration("window", t.window))
	t.reportProcessing(ctx)
	t.sweep(ctx)

	ticker := time.NewTicker(t.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.stopAll()
			t.log.Info("payment timeout worker stopped")
			return nil
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Timeouts) sweep(ctx context.Context) {
	paid, err := t.store.ListByStatus(ctx, models.StatusPaid)
	if err != nil {
		t.log.Error("failed to list paid deposits", zap.Error(err))
		return
	}
	for _, d := range paid {
		paidAt := d.CreatedAt
		if d.PaidAt != nil {
			paidAt = *d.PaidAt
		}
		t.Arm(d.ID, paidAt)
	}
}

func (t *Timeouts) reportProcessing(ctx context.Context) {
	processing, err := t.store.ListByStatus(ctx, models.StatusProcessing)
	if err != nil {
		t.log.Error("failed to list processing deposits", zap.Error(err))
		return
	}
	for _, d := range processing {
		t.log.Warn("deposit awaiting admin decision",
			zap.Int64("deposit_id", d.ID),
			zap.Int64("user_id", d.UserID),
			zap.String("amount", d.Amount.String()),
		)
	}
}

func (t *Timeouts) fire(depositID int64) {
	t.mu.Lock()
	delete(t.timers, depositID)
	expirer, ctx := t.expirer, t.ctx
	t.mu.Unlock()
	metrics.ArmedTimers.Dec()

	if expirer == nil || ctx.Err() != nil {
		return
	}

	d, err := expirer.Expire(ctx, depositID)
	switch {
	case err == nil:
		t.log.Info("deposit expired", zap.Int64("deposit_id", depositID), zap.Int64("user_id", d.UserID))
	case errors.Is(err, deposit.ErrNotDue):
		// clock moved; try again at the next sweep
		t.log.Debug("deposit not due yet", zap.Int64("deposit_id", depositID))
	case errors.Is(err, deposit.ErrInvalidTransition), errors.Is(err, deposit.ErrNotFound):
		t.log.Debug("deposit left PAID before expiry", zap.Int64("deposit_id", depositID))
	default:
		t.log.Error("failed to expire deposit", zap.Int64("deposit_id", depositID), zap.Error(err))
	}
}

func (t *Timeouts) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		if timer.Stop() {
			metrics.ArmedTimers.Dec()
		}
		delete(t.timers, id)
	}
}
