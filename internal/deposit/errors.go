package deposit

import (
	"errors"
	"fmt"

	"cashdesk-bot/internal/store"
)

var (
	ErrInvalidAmount       = errors.New("amount below minimum")
	ErrInvalidMethod       = errors.New("unknown payment method")
	ErrInvalidInstructions = errors.New("payment instructions are empty")
	ErrInvalidTransition   = errors.New("deposit already processed")
	ErrUnauthorized        = errors.New("not permitted")
	ErrNotFound            = errors.New("deposit not found")
	ErrNotDue              = errors.New("payment window still open")
)

// GatewayError reports a completion the cash desk did not confirm.
// The deposit stays PROCESSING and the admin may retry.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cashdesk deposit failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cashdesk deposit failed: %s", e.Reason)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrStatusMismatch):
		return ErrInvalidTransition
	case errors.Is(err, store.ErrInvalidAmount):
		return ErrInvalidAmount
	default:
		return err
	}
}
