package store_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashdesk-bot/internal/database"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")))
	require.NoError(t, err)
	return store.New(db)
}

func TestCreateDeposit(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	first, err := st.CreateDeposit(ctx, 42, "alice", decimal.NewFromInt(500), models.MethodCard)
	require.NoError(t, err)
	second, err := st.CreateDeposit(ctx, 42, "alice", decimal.NewFromInt(700), models.MethodQiwi)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	deposit, err := st.GetDeposit(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, deposit.Status)
	assert.Equal(t, int64(42), deposit.UserID)
	assert.True(t, deposit.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, models.MethodCard, deposit.Method)
	assert.Nil(t, deposit.PaymentDetails)
	assert.Nil(t, deposit.AdminID)
}

func TestCreateDepositRejectsNonPositive(t *testing.T) {
	st := newStore(t)

	_, err := st.CreateDeposit(context.Background(), 1, "bob", decimal.Zero, models.MethodCard)
	require.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = st.CreateDeposit(context.Background(), 1, "bob", decimal.NewFromInt(-5), models.MethodCard)
	require.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestGetDepositNotFound(t *testing.T) {
	_, err := newStore(t).GetDeposit(context.Background(), 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(100), models.MethodCard)
	require.NoError(t, err)

	admin := int64(7)
	details := "card 1234"
	require.NoError(t, st.UpdateStatus(ctx, id, models.StatusPaid, &admin, &details))

	deposit, err := st.GetDeposit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, deposit.Status)
	require.NotNil(t, deposit.PaymentDetails)
	assert.Equal(t, details, *deposit.PaymentDetails)
	require.NotNil(t, deposit.AdminID)
	assert.Equal(t, admin, *deposit.AdminID)

	require.ErrorIs(t, st.UpdateStatus(ctx, 12345, models.StatusPaid, nil, nil), store.ErrNotFound)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(100), models.MethodCard)
	require.NoError(t, err)

	t.Run("matching status", func(t *testing.T) {
		admin := int64(7)
		details := "card 1234"
		paidAt := time.Now().UTC().Truncate(time.Second)
		deposit, err := st.Transition(ctx, id, models.StatusPending, models.StatusPaid, store.Patch{
			AdminID:        &admin,
			PaymentDetails: &details,
			PaidAt:         &paidAt,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, deposit.Status)
		require.NotNil(t, deposit.PaidAt)
		assert.WithinDuration(t, paidAt, *deposit.PaidAt, time.Second)
	})

	t.Run("stale status", func(t *testing.T) {
		_, err := st.Transition(ctx, id, models.StatusPending, models.StatusCancelled, store.Patch{})
		require.ErrorIs(t, err, store.ErrStatusMismatch)

		deposit, err := st.GetDeposit(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaid, deposit.Status)
	})

	t.Run("first admin is retained", func(t *testing.T) {
		other := int64(8)
		receipt := "file-1"
		deposit, err := st.Transition(ctx, id, models.StatusPaid, models.StatusProcessing, store.Patch{
			AdminID:       &other,
			ReceiptFileID: &receipt,
			ReceiptKind:   "photo",
		})
		require.NoError(t, err)
		require.NotNil(t, deposit.AdminID)
		assert.Equal(t, int64(7), *deposit.AdminID)
		require.NotNil(t, deposit.ReceiptFileID)
		assert.Equal(t, receipt, *deposit.ReceiptFileID)
		assert.Equal(t, "photo", deposit.ReceiptKind)
	})

	t.Run("unknown deposit", func(t *testing.T) {
		_, err := st.Transition(ctx, 777, models.StatusPending, models.StatusPaid, store.Patch{})
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTransitionConcurrent(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(100), models.MethodCard)
	require.NoError(t, err)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Transition(ctx, id, models.StatusPending, models.StatusCancelled, store.Patch{})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrStatusMismatch)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestCompleteCreditsOnce(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.UpsertUser(ctx, 1, "bob", "Bob Smith"))

	id, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(500), models.MethodCard)
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, id, models.StatusProcessing, nil, nil))

	deposit, err := st.Complete(ctx, id, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, deposit.Status)
	assert.NotNil(t, deposit.ProcessedAt)

	_, err = st.Complete(ctx, id, 7)
	require.ErrorIs(t, err, store.ErrStatusMismatch)

	account, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(500)), "balance %s", account.Balance)
	assert.Equal(t, 1, account.DepositsCount)
}

func TestCompleteCreatesMissingAccount(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.CreateDeposit(ctx, 5, "carol", decimal.NewFromInt(250), models.MethodCrypto)
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, id, models.StatusProcessing, nil, nil))

	_, err = st.Complete(ctx, id, 7)
	require.NoError(t, err)

	account, err := st.GetUser(ctx, 5)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(250)))
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	a, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(100), models.MethodCard)
	require.NoError(t, err)
	b, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(200), models.MethodCard)
	require.NoError(t, err)
	c, err := st.CreateDeposit(ctx, 2, "eve", decimal.NewFromInt(300), models.MethodCard)
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, b, models.StatusProcessing, nil, nil))

	pending, err := st.ListByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, c, pending[1].ID)

	mine, err := st.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b, mine[0].ID)
	assert.Equal(t, a, mine[1].ID)
}

func TestUsersAndStats(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	require.NoError(t, st.UpsertUser(ctx, 1, "bob", "Bob"))
	require.NoError(t, st.UpsertUser(ctx, 2, "eve", "Eve"))
	require.NoError(t, st.UpsertUser(ctx, 1, "bobby", "Bob B"))

	account, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "bobby", account.Username)
	assert.Equal(t, "Bob B", account.FullName)

	_, err = st.GetUser(ctx, 3)
	require.ErrorIs(t, err, store.ErrNotFound)

	ids, err := st.UserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	id, err := st.CreateDeposit(ctx, 1, "bob", decimal.NewFromInt(400), models.MethodCard)
	require.NoError(t, err)
	_, err = st.CreateDeposit(ctx, 2, "eve", decimal.NewFromInt(150), models.MethodCard)
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, id, models.StatusProcessing, nil, nil))
	_, err = st.Complete(ctx, id, 9)
	require.NoError(t, err)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusPending])
	assert.True(t, stats.CompletedTotal.Equal(decimal.NewFromInt(400)))
}

func TestCreditUser(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	require.NoError(t, st.CreditUser(ctx, 8, decimal.RequireFromString("120.50")))
	require.NoError(t, st.UpsertUser(ctx, 8, "dan", "Dan"))
	require.NoError(t, st.CreditUser(ctx, 8, decimal.RequireFromString("79.50")))

	account, err := st.GetUser(ctx, 8)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(200)), "balance %s", account.Balance)
	assert.Equal(t, 2, account.DepositsCount)
	assert.Equal(t, "dan", account.Username)
}
