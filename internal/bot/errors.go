package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cashdesk-bot/internal/deposit"
)

const (
	textInternal     = "❌ Внутренняя ошибка, попробуйте позже."
	textProcessed    = "⚠️ Заявка уже обработана."
	textUnauthorized = "⛔ Недостаточно прав."
	textNotFound     = "❌ Заявка не найдена."
)

// explain turns a flow error into the reply for the acting party. The
// second result is false when the party was already told by a notification.
func (b *Bot) explain(err error) (string, bool) {
	var gwErr *deposit.GatewayError
	switch {
	case errors.Is(err, deposit.ErrInvalidAmount):
		return fmt.Sprintf("❌ Минимальная сумма пополнения: %s ₽", b.machine.MinAmount().StringFixed(2)), true
	case errors.Is(err, deposit.ErrInvalidMethod):
		return "❌ Неизвестный способ оплаты.", true
	case errors.Is(err, deposit.ErrInvalidInstructions):
		return "❌ Реквизиты не могут быть пустыми.", true
	case errors.Is(err, deposit.ErrInvalidTransition):
		return textProcessed, true
	case errors.Is(err, deposit.ErrUnauthorized):
		return textUnauthorized, true
	case errors.Is(err, deposit.ErrNotFound):
		return textNotFound, true
	case errors.As(err, &gwErr):
		return "⚠️ Касса не подтвердила зачисление: " + gwErr.Reason, false
	default:
		return textInternal, true
	}
}

// fail reports err to the actor and returns the callback toast.
func (b *Bot) fail(ctx context.Context, in Inbound, err error) string {
	text, reply := b.explain(err)
	if text == textInternal {
		b.log.Error("flow failed", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
	if reply {
		b.say(ctx, in, text, nil)
	}
	return text
}
