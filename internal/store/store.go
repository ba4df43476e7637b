// Package store persists deposits and user accounts. It performs no
// lifecycle legality checks beyond the compare-and-swap on status.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cashdesk-bot/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStatusMismatch = errors.New("deposit status changed concurrently")
	ErrInvalidAmount  = errors.New("amount must be positive")
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Patch carries the optional columns written together with a status change.
type Patch struct {
	AdminID        *int64
	PaymentDetails *string
	ReceiptFileID  *string
	ReceiptKind    string
	PaidAt         *time.Time
	Processed      bool
}

func (s *Store) CreateDeposit(ctx context.Context, userID int64, username string, amount decimal.Decimal, method models.PaymentMethod) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}

	deposit := models.Deposit{
		UserID:    userID,
		Username:  username,
		Amount:    amount,
		Method:    method,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&deposit).Error; err != nil {
		return 0, fmt.Errorf("failed to create deposit: %w", err)
	}
	return deposit.ID, nil
}

func (s *Store) GetDeposit(ctx context.Context, id int64) (*models.Deposit, error) {
	return getDeposit(s.db.WithContext(ctx), id)
}

func getDeposit(db *gorm.DB, id int64) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := db.First(&deposit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deposit %d: %w", id, err)
	}
	return &deposit, nil
}

// UpdateStatus overwrites the status unconditionally.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status models.Status, adminID *int64, paymentDetails *string) error {
	updates := s.updates(status, Patch{AdminID: adminID, PaymentDetails: paymentDetails, Processed: status == models.StatusCompleted})
	res := s.db.WithContext(ctx).Model(&models.Deposit{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update deposit %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves the deposit from one status to another only if it is
// still in from at write time. The updated record is returned.
func (s *Store) Transition(ctx context.Context, id int64, from, to models.Status, patch Patch) (*models.Deposit, error) {
	db := s.db.WithContext(ctx)
	if err := s.swap(db, id, from, to, patch); err != nil {
		return nil, err
	}
	return getDeposit(db, id)
}

// Complete marks a PROCESSING deposit COMPLETED and credits the owner in
// the same transaction, so the balance is credited at most once.
func (s *Store) Complete(ctx context.Context, id int64, adminID int64) (*models.Deposit, error) {
	var completed *models.Deposit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.swap(tx, id, models.StatusProcessing, models.StatusCompleted, Patch{AdminID: &adminID, Processed: true}); err != nil {
			return err
		}
		deposit, err := getDeposit(tx, id)
		if err != nil {
			return err
		}
		if err := s.credit(tx, deposit.UserID, deposit.Amount); err != nil {
			return err
		}
		completed = deposit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *Store) swap(db *gorm.DB, id int64, from, to models.Status, patch Patch) error {
	res := db.Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, from).
		Updates(s.updates(to, patch))
	if res.Error != nil {
		return fmt.Errorf("failed to transition deposit %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := getDeposit(db, id); err != nil {
		return err
	}
	return ErrStatusMismatch
}

func (s *Store) updates(status models.Status, patch Patch) map[string]any {
	updates := map[string]any{"status": status}
	if patch.AdminID != nil {
		// first acting admin wins
		updates["admin_id"] = gorm.Expr("COALESCE(admin_id, ?)", *patch.AdminID)
	}
	if patch.PaymentDetails != nil {
		updates["payment_details"] = *patch.PaymentDetails
	}
	if patch.ReceiptFileID != nil {
		updates["receipt_file_id"] = *patch.ReceiptFileID
		updates["receipt_kind"] = patch.ReceiptKind
	}
	if patch.PaidAt != nil {
		updates["paid_at"] = *patch.PaidAt
	}
	if patch.Processed {
		updates["processed_at"] = s.now()
	}
	return updates
}

func (s *Store) ListByStatus(ctx context.Context, status models.Status) ([]models.Deposit, error) {
	var deposits []models.Deposit
	if err := s.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&deposits).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s deposits: %w", status, err)
	}
	return deposits, nil
}

// ListByUser returns the user's deposits, newest first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]models.Deposit, error) {
	var deposits []models.Deposit
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&deposits).Error; err != nil {
		return nil, fmt.Errorf("failed to list deposits of user %d: %w", userID, err)
	}
	return deposits, nil
}

// CreditUser increments the balance and the completed deposits counter.
func (s *Store) CreditUser(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return s.credit(s.db.WithContext(ctx), userID, amount)
}

func (s *Store) credit(db *gorm.DB, userID int64, amount decimal.Decimal) error {
	account := models.User{ID: userID, LastActivity: s.now(), RegisteredAt: s.now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&account).Error; err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}

	res := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"balance":        gorm.Expr("balance + ?", amount),
		"deposits_count": gorm.Expr("deposits_count + 1"),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, res.Error)
	}
	return nil
}

// UpsertUser registers the account on first contact and refreshes it afterwards.
func (s *Store) UpsertUser(ctx context.Context, userID int64, username, fullName string) error {
	now := s.now()
	account := models.User{ID: userID, Username: username, FullName: fullName, LastActivity: now, RegisteredAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "last_activity"}),
	}).Create(&account).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", userID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var account models.User
	if err := s.db.WithContext(ctx).First(&account, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &account, nil
}

func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

type Stats struct {
	Users          int64
	ByStatus       map[models.Status]int64
	CompletedTotal decimal.Decimal
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{ByStatus: make(map[models.Status]int64)}

	if err := db.Model(&models.User{}).Count(&stats.Users).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var rows []struct {
		Status models.Status
		Count  int64
	}
	if err := db.Model(&models.Deposit{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count deposits: %w", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
	}

	var amounts []decimal.Decimal
	if err := db.Model(&models.Deposit{}).Where("status = ?", models.StatusCompleted).Pluck("amount", &amounts).Error; err != nil {
		return nil, fmt.Errorf("failed to sum completed deposits: %w", err)
	}
	stats.CompletedTotal = decimal.Sum(decimal.Zero, amounts...)

	return stats, nil
}
