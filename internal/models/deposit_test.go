package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending:    {StatusPaid, StatusCancelled},
		StatusPaid:       {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusCompleted, StatusCancelled},
	}
	all := []Status{StatusPending, StatusPaid, StatusProcessing, StatusCompleted, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range legal[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())

	assert.True(t, StatusPaid.Valid())
	assert.False(t, Status("REFUNDED").Valid())
}

func TestPaymentMethods(t *testing.T) {
	for _, m := range PaymentMethods {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, PaymentMethod("paypal").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
