package callback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashdesk-bot/internal/callback"
	"cashdesk-bot/internal/models"
)

func TestDataParsesBack(t *testing.T) {
	actions := []callback.Action{
		callback.AcceptDeposit(12),
		callback.RejectDeposit(12),
		callback.ContactOwner(3),
		callback.ViewDeposit(9000000000),
		callback.ConfirmPaid(1),
		callback.CancelDeposit(1),
		callback.ChooseMethod(models.MethodCrypto),
		callback.OpenMenu(callback.MenuStats),
		{Kind: callback.BroadcastConfirm},
		{Kind: callback.BroadcastCancel},
	}
	for _, want := range actions {
		data := want.Data()
		assert.LessOrEqual(t, len(data), 64)

		got, err := callback.Parse(data)
		require.NoError(t, err, data)
		assert.Equal(t, want, got)
	}
}

func TestDataFormat(t *testing.T) {
	assert.Equal(t, "accept:12", callback.AcceptDeposit(12).Data())
	assert.Equal(t, "method:yoomoney", callback.ChooseMethod(models.MethodYooMoney).Data())
	assert.Equal(t, "broadcast_confirm", callback.Action{Kind: callback.BroadcastConfirm}.Data())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"accept",
		"accept:",
		"accept:abc",
		"accept:-4",
		"reject:0",
		"method:paypal",
		"menu:",
		"broadcast_confirm:1",
		"launch:12",
	} {
		_, err := callback.Parse(data)
		assert.ErrorIs(t, err, callback.ErrMalformed, data)
	}
}
