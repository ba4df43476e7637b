// Package deposit implements the deposit lifecycle:
//
//	PENDING -> PAID -> PROCESSING -> COMPLETED
//
// with CANCELLED reachable from every non-terminal state. Every transition
// is a compare-and-swap on the stored status, so user actions, admin actions
// and the payment timer may race freely on the same deposit.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk-bot/internal/cashdesk"
	"cashdesk-bot/internal/metrics"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/store"
)

type Store interface {
	CreateDeposit(ctx context.Context, userID int64, username string, amount decimal.Decimal, method models.PaymentMethod) (int64, error)
	GetDeposit(ctx context.Context, id int64) (*models.Deposit, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Deposit, error)
	Transition(ctx context.Context, id int64, from, to models.Status, patch store.Patch) (*models.Deposit, error)
	Complete(ctx context.Context, id int64, adminID int64) (*models.Deposit, error)
}

type Ledger interface {
	DepositToUser(ctx context.Context, userID int64, amount decimal.Decimal) (*cashdesk.OperationResult, error)
}

type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Scheduler arms the payment timeout of a deposit that entered PAID.
type Scheduler interface {
	Arm(depositID int64, paidAt time.Time)
}

type Config struct {
	Store         Store
	Ledger        Ledger
	Guard         Guard
	Notifier      Notifier
	Scheduler     Scheduler
	Admins        []int64
	MinAmount     decimal.Decimal
	PaymentWindow time.Duration
	LedgerTimeout time.Duration
	Log           *zap.Logger
}

type Machine struct {
	store         Store
	ledger        Ledger
	guard         Guard
	notifier      Notifier
	scheduler     Scheduler
	admins        map[int64]struct{}
	minAmount     decimal.Decimal
	paymentWindow time.Duration
	ledgerTimeout time.Duration
	log           *zap.Logger
	now           func() time.Time
}

func NewMachine(cfg Config) *Machine {
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &Machine{
		store:         cfg.Store,
		ledger:        cfg.Ledger,
		guard:         cfg.Guard,
		notifier:      cfg.Notifier,
		scheduler:     cfg.Scheduler,
		admins:        admins,
		minAmount:     cfg.MinAmount,
		paymentWindow: cfg.PaymentWindow,
		ledgerTimeout: cfg.LedgerTimeout,
		log:           cfg.Log.Named("deposit"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Machine) IsAdmin(id int64) bool {
	_, ok := m.admins[id]
	return ok
}

func (m *Machine) MinAmount() decimal.Decimal {
	return m.minAmount
}

// CheckAmount validates a requested amount before a method is chosen.
func (m *Machine) CheckAmount(amount decimal.Decimal) error {
	if amount.LessThan(m.minAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Create opens a PENDING deposit for the user and alerts the admins.
func (m *Machine) Create(ctx context.Context, userID int64, username string, amount decimal.Decimal, method models.PaymentMethod) (*models.Deposit, error) {
	if err := m.CheckAmount(amount); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	id, err := m.store.CreateDeposit(ctx, userID, username, amount, method)
	if err != nil {
		return nil, translate(err)
	}
	deposit, err := m.store.GetDeposit(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	metrics.Transitions.WithLabelValues(string(models.StatusPending), "ok").Inc()
	m.log.Info("deposit created",
		zap.Int64("deposit_id", id),
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("method", string(method)),
	)
	m.emit(ctx, EventCreated, deposit, userID, "")
	return deposit, nil
}

// BeginAccept checks that the admin may issue payment instructions for the
// deposit right now. It performs no mutation.
func (m *Machine) BeginAccept(ctx context.Context, adminID, id int64) (*models.Deposit, error) {
	return m.expect(ctx, adminID, id, true, models.StatusPending)
}

// Accept records the payment instructions, moves PENDING to PAID and arms
// the payment timeout.
func (m *Machine) Accept(ctx context.Context, adminID, id int64, instructions string) (*models.Deposit, error) {
	if !m.IsAdmin(adminID) {
		return nil, m.unauthorized(id, adminID, models.StatusPaid)
	}
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return nil, ErrInvalidInstructions
	}

	paidAt := m.now()
	deposit, err := m.transition(ctx, id, models.StatusPending, models.StatusPaid, store.Patch{
		AdminID:        &adminID,
		PaymentDetails: &instructions,
		PaidAt:         &paidAt,
	})
	if err != nil {
		return nil, err
	}

	m.scheduler.Arm(deposit.ID, paidAt)
	m.emit(ctx, EventInstructions, deposit, adminID, "")
	return deposit, nil
}

// Reject cancels a PENDING or PROCESSING deposit on behalf of an admin.
func (m *Machine) Reject(ctx context.Context, adminID, id int64) (*models.Deposit, error) {
	current, err := m.expect(ctx, adminID, id, true, models.StatusPending, models.StatusProcessing)
	if err != nil {
		return nil, err
	}

	var deposit *models.Deposit
	cancel := func() error {
		var err error
		deposit, err = m.transition(ctx, id, current.Status, models.StatusCancelled, store.Patch{AdminID: &adminID})
		return err
	}
	// a PROCESSING deposit may be on its way to the cash desk
	if current.Status == models.StatusProcessing {
		err = m.guarded(ctx, id, cancel)
	} else {
		err = cancel()
	}
	if err != nil {
		return nil, err
	}
	m.emit(ctx, EventRejected, deposit, adminID, "")
	return deposit, nil
}

// Cancel lets the owner withdraw a deposit nobody has accepted yet.
func (m *Machine) Cancel(ctx context.Context, userID, id int64) (*models.Deposit, error) {
	if _, err := m.owned(ctx, userID, id, models.StatusPending); err != nil {
		return nil, err
	}

	deposit, err := m.transition(ctx, id, models.StatusPending, models.StatusCancelled, store.Patch{})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, EventCancelled, deposit, userID, "")
	return deposit, nil
}

// BeginConfirm checks that the owner may upload a receipt for the deposit.
func (m *Machine) BeginConfirm(ctx context.Context, userID, id int64) (*models.Deposit, error) {
	return m.owned(ctx, userID, id, models.StatusPaid)
}

// Receipt references an uploaded payment proof.
type Receipt struct {
	FileID string
	Kind   string
}

// SubmitReceipt moves a PAID deposit to PROCESSING. It loses to an expiry
// that was committed first.
func (m *Machine) SubmitReceipt(ctx context.Context, userID, id int64, receipt Receipt) (*models.Deposit, error) {
	if _, err := m.owned(ctx, userID, id, models.StatusPaid); err != nil {
		return nil, err
	}

	deposit, err := m.transition(ctx, id, models.StatusPaid, models.StatusProcessing, store.Patch{
		ReceiptFileID: &receipt.FileID,
		ReceiptKind:   receipt.Kind,
	})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, EventReceipt, deposit, userID, "")
	return deposit, nil
}

// Expire cancels a deposit whose payment window has elapsed without a receipt.
// Deposits that already left PAID yield ErrInvalidTransition.
func (m *Machine) Expire(ctx context.Context, id int64) (*models.Deposit, error) {
	current, err := m.store.GetDeposit(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if current.Status != models.StatusPaid {
		return nil, ErrInvalidTransition
	}
	if current.PaidAt != nil && m.now().Before(current.PaidAt.Add(m.paymentWindow)) {
		return nil, ErrNotDue
	}

	deposit, err := m.transition(ctx, id, models.StatusPaid, models.StatusCancelled, store.Patch{})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, EventExpired, deposit, 0, "")
	return deposit, nil
}

// Complete asks the cash desk to credit the player and, once it confirms,
// marks the deposit COMPLETED and credits the local balance. A refusal or
// an unreachable cash desk leaves the deposit PROCESSING for a later retry.
func (m *Machine) Complete(ctx context.Context, adminID, id int64) (*models.Deposit, error) {
	if _, err := m.expect(ctx, adminID, id, true, models.StatusProcessing); err != nil {
		return nil, err
	}

	var (
		current *models.Deposit
		deposit *models.Deposit
		gwErr   *GatewayError
	)
	err := m.guarded(ctx, id, func() error {
		// the previous guard holder may have finished in the meantime
		var err error
		current, err = m.expect(ctx, adminID, id, true, models.StatusProcessing)
		if err != nil {
			return err
		}
		deposit, gwErr, err = m.credit(ctx, adminID, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	if gwErr != nil {
		return nil, m.completionFailed(ctx, current, adminID, gwErr)
	}

	metrics.Transitions.WithLabelValues(string(models.StatusCompleted), "ok").Inc()
	m.log.Info("deposit completed",
		zap.Int64("deposit_id", id),
		zap.Int64("admin_id", adminID),
		zap.String("amount", deposit.Amount.String()),
	)
	m.emit(ctx, EventCompleted, deposit, adminID, "")
	return deposit, nil
}

// credit calls the cash desk and commits the completion locally. A cash desk
// that refuses or cannot be reached is reported as a GatewayError.
func (m *Machine) credit(ctx context.Context, adminID int64, current *models.Deposit) (*models.Deposit, *GatewayError, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.ledgerTimeout)
	result, err := m.ledger.DepositToUser(callCtx, current.UserID, current.Amount)
	cancel()

	if err != nil {
		return nil, &GatewayError{Reason: "cashdesk unavailable", Err: err}, nil
	}
	if !result.Success {
		return nil, &GatewayError{Reason: result.Message}, nil
	}

	deposit, err := m.store.Complete(ctx, current.ID, adminID)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(models.StatusCompleted), "error").Inc()
		m.log.Error("cashdesk credited but local commit failed, manual reconciliation required",
			zap.Int64("deposit_id", current.ID),
			zap.Int64("user_id", current.UserID),
			zap.String("amount", current.Amount.String()),
			zap.Error(err),
		)
		return nil, nil, translate(err)
	}
	return deposit, nil, nil
}

// guarded runs fn while holding the completion guard of the deposit. A guard
// held by someone else yields ErrInvalidTransition.
func (m *Machine) guarded(ctx context.Context, id int64, fn func() error) error {
	release, ok, err := m.guard.Acquire(ctx, "deposit:complete:"+strconv.FormatInt(id, 10), 3*m.ledgerTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire completion guard for deposit %d: %w", id, err)
	}
	if !ok {
		return ErrInvalidTransition
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("failed to release completion guard", zap.Int64("deposit_id", id), zap.Error(err))
		}
	}()
	return fn()
}

func (m *Machine) completionFailed(ctx context.Context, deposit *models.Deposit, adminID int64, gwErr *GatewayError) error {
	metrics.Transitions.WithLabelValues(string(models.StatusCompleted), "gateway_failure").Inc()
	m.log.Warn("cashdesk did not confirm deposit",
		zap.Int64("deposit_id", deposit.ID),
		zap.Int64("admin_id", adminID),
		zap.Error(gwErr),
	)
	m.emit(ctx, EventCompletionFailed, deposit, adminID, gwErr.Reason)
	return gwErr
}

// View returns the deposit to an admin.
func (m *Machine) View(ctx context.Context, adminID, id int64) (*models.Deposit, error) {
	return m.expect(ctx, adminID, id, true)
}

// Queue lists deposits in the given status for an admin.
func (m *Machine) Queue(ctx context.Context, adminID int64, status models.Status) ([]models.Deposit, error) {
	if !m.IsAdmin(adminID) {
		return nil, ErrUnauthorized
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown deposit status %q", status)
	}
	deposits, err := m.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s deposits: %w", status, err)
	}
	return deposits, nil
}

// expect loads the deposit and checks authority and that its status is one of want.
// An empty want accepts any status.
func (m *Machine) expect(ctx context.Context, actorID, id int64, adminOnly bool, want ...models.Status) (*models.Deposit, error) {
	if adminOnly && !m.IsAdmin(actorID) {
		target := models.Status("")
		if len(want) > 0 {
			target = want[0]
		}
		return nil, m.unauthorized(id, actorID, target)
	}

	deposit, err := m.store.GetDeposit(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Warn("action on unknown deposit", zap.Int64("deposit_id", id), zap.Int64("actor_id", actorID))
		}
		return nil, translate(err)
	}
	if len(want) == 0 {
		return deposit, nil
	}
	for _, status := range want {
		if deposit.Status == status {
			return deposit, nil
		}
	}
	return nil, ErrInvalidTransition
}

func (m *Machine) owned(ctx context.Context, userID, id int64, want models.Status) (*models.Deposit, error) {
	deposit, err := m.expect(ctx, userID, id, false)
	if err != nil {
		return nil, err
	}
	if deposit.UserID != userID {
		return nil, m.unauthorized(id, userID, want)
	}
	if deposit.Status != want {
		return nil, ErrInvalidTransition
	}
	return deposit, nil
}

func (m *Machine) unauthorized(id, actorID int64, to models.Status) error {
	metrics.Transitions.WithLabelValues(string(to), "unauthorized").Inc()
	m.log.Warn("unauthorized deposit action", zap.Int64("deposit_id", id), zap.Int64("actor_id", actorID))
	return ErrUnauthorized
}

func (m *Machine) transition(ctx context.Context, id int64, from, to models.Status, patch store.Patch) (*models.Deposit, error) {
	if !from.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}
	deposit, err := m.store.Transition(ctx, id, from, to, patch)
	if err != nil {
		err = translate(err)
		outcome := "error"
		if errors.Is(err, ErrInvalidTransition) {
			outcome = "stale"
		}
		metrics.Transitions.WithLabelValues(string(to), outcome).Inc()
		m.log.Info("transition refused",
			zap.Int64("deposit_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(to), "ok").Inc()
	m.log.Info("deposit transitioned",
		zap.Int64("deposit_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return deposit, nil
}

func (m *Machine) emit(ctx context.Context, kind EventKind, deposit *models.Deposit, actorID int64, reason string) {
	m.notifier.Notify(context.WithoutCancel(ctx), Event{
		Kind:    kind,
		Deposit: *deposit,
		ActorID: actorID,
		Reason:  reason,
	})
}
