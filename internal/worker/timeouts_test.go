package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/models"
)

type fakeStore struct {
	byStatus map[models.Status][]models.Deposit
}

func (f *fakeStore) ListByStatus(_ context.Context, status models.Status) ([]models.Deposit, error) {
	return f.byStatus[status], nil
}

type fakeExpirer struct {
	mu      sync.Mutex
	expired []int64
	err     error
}

func (f *fakeExpirer) Expire(_ context.Context, id int64) (*models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.expired = append(f.expired, id)
	return &models.Deposit{ID: id, Status: models.StatusCancelled}, nil
}

func (f *fakeExpirer) Expired() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.expired...)
}

func startTimeouts(t *testing.T, store *fakeStore, window time.Duration, expirer Expirer) *Timeouts {
	t.Helper()
	timeouts := NewTimeouts(store, window, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, timeouts.Start(ctx, expirer))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return timeouts
}

func TestArmFiresAfterWindow(t *testing.T) {
	expirer := &fakeExpirer{}
	timeouts := startTimeouts(t, &fakeStore{}, 80*time.Millisecond, expirer)

	timeouts.Arm(7, time.Now().UTC())
	timeouts.Arm(7, time.Now().UTC())
	assert.Equal(t, 1, timeouts.Armed())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, expirer.Expired(), "expired before the window elapsed")

	require.Eventually(t, func() bool { return len(expirer.Expired()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{7}, expirer.Expired())
	assert.Zero(t, timeouts.Armed())

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, expirer.Expired(), 1)
}

func TestStartRecoversPaidDeposits(t *testing.T) {
	now := time.Now().UTC()
	overdue := now.Add(-time.Hour)
	fresh := now
	store := &fakeStore{byStatus: map[models.Status][]models.Deposit{
		models.StatusPaid: {
			{ID: 1, Status: models.StatusPaid, PaidAt: &overdue},
			{ID: 2, Status: models.StatusPaid, PaidAt: &fresh},
		},
		models.StatusProcessing: {
			{ID: 3, Status: models.StatusProcessing, Amount: decimal.NewFromInt(500)},
		},
	}}
	expirer := &fakeExpirer{}
	timeouts := startTimeouts(t, store, time.Minute, expirer)

	require.Eventually(t, func() bool { return len(expirer.Expired()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1}, expirer.Expired())
	assert.Equal(t, 1, timeouts.Armed())
}

func TestSweepRearmsAfterFailure(t *testing.T) {
	paidAt := time.Now().UTC().Add(-time.Hour)
	store := &fakeStore{byStatus: map[models.Status][]models.Deposit{
		models.StatusPaid: {{ID: 5, Status: models.StatusPaid, PaidAt: &paidAt}},
	}}
	expirer := &fakeExpirer{err: deposit.ErrNotDue}

	timeouts := NewTimeouts(store, time.Minute, zap.NewNop())
	timeouts.sweepEvery = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = timeouts.Start(ctx, expirer) }()

	time.Sleep(30 * time.Millisecond)
	expirer.mu.Lock()
	expirer.err = nil
	expirer.mu.Unlock()

	require.Eventually(t, func() bool { return len(expirer.Expired()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(5), expirer.Expired()[0])
}

func TestFireBeforeStartIsDeferred(t *testing.T) {
	timeouts := NewTimeouts(&fakeStore{}, time.Millisecond, zap.NewNop())
	timeouts.Arm(9, time.Now().UTC().Add(-time.Hour))

	require.Eventually(t, func() bool { return timeouts.Armed() == 0 }, time.Second, 5*time.Millisecond)
}
