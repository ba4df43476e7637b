package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the per chat identity account. ID equals the Telegram user id.
type User struct {
	ID            int64           `gorm:"primaryKey;autoIncrement:false"`
	Username      string          `gorm:"size:255"`
	FullName      string          `gorm:"size:255"`
	Balance       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	DepositsCount int             `gorm:"not null;default:0"`
	LastActivity  time.Time
	RegisteredAt  time.Time `gorm:"autoCreateTime"`
}
