package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists every legal edge of the deposit lifecycle.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodYooMoney PaymentMethod = "yoomoney"
	MethodQiwi     PaymentMethod = "qiwi"
	MethodCrypto   PaymentMethod = "crypto"
)

var PaymentMethods = []PaymentMethod{MethodCard, MethodYooMoney, MethodQiwi, MethodCrypto}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Deposit is a single monetary request moving through the lifecycle.
// Amount is fixed at creation. PaymentDetails and PaidAt are set once on entering PAID.
type Deposit struct {
	ID             int64           `gorm:"primaryKey"`
	UserID         int64           `gorm:"not null;index"`
	Username       string          `gorm:"size:255"`
	Amount         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Method         PaymentMethod   `gorm:"size:32"`
	Status         Status          `gorm:"size:16;not null;default:'PENDING';index"`
	PaymentDetails *string
	ReceiptFileID  *string `gorm:"size:255"`
	ReceiptKind    string  `gorm:"size:16"`
	AdminID        *int64
	PaidAt         *time.Time
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}
