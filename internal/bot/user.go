package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cashdesk-bot/internal/callback"
	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/notify"
	"cashdesk-bot/internal/session"
	"cashdesk-bot/internal/store"
	"cashdesk-bot/internal/telegram"
)

// dispatch runs the action behind a button and returns the callback toast.
func (b *Bot) dispatch(ctx context.Context, in Inbound) string {
	action, err := callback.Parse(in.Data)
	if err != nil {
		b.log.Warn("unknown callback", zap.Int64("user_id", in.UserID), zap.String("data", in.Data))
		return "Неизвестное действие"
	}

	switch action.Kind {
	case callback.Menu:
		return b.openMenu(ctx, in, action.Menu)
	case callback.Method:
		return b.chooseMethod(ctx, in, action.Method)
	case callback.Paid:
		return b.confirmPaid(ctx, in, action.DepositID)
	case callback.Cancel:
		return b.cancelDeposit(ctx, in, action.DepositID)
	case callback.Accept:
		return b.accept(ctx, in, action.DepositID)
	case callback.Reject:
		return b.reject(ctx, in, action.DepositID)
	case callback.Contact:
		return b.contact(ctx, in, action.DepositID)
	case callback.View:
		return b.view(ctx, in, action.DepositID)
	case callback.BroadcastConfirm:
		return b.confirmBroadcast(ctx, in)
	case callback.BroadcastCancel:
		b.clear(ctx, in.UserID)
		b.say(ctx, in, "📢 Рассылка отменена.", adminMenu())
		return ""
	}
	return ""
}

func (b *Bot) openMenu(ctx context.Context, in Inbound, entry string) string {
	switch entry {
	case callback.MenuHome:
		b.clear(ctx, in.UserID)
		b.say(ctx, in, "Главное меню", b.menuFor(in.UserID))
	case callback.MenuDeposit:
		if b.save(ctx, in, &session.Session{Step: session.StepAmount}) {
			b.say(ctx, in, fmt.Sprintf("💰 Введите сумму пополнения (минимум %s ₽):", b.machine.MinAmount().StringFixed(2)), nil)
		}
	case callback.MenuWithdraw:
		if b.save(ctx, in, &session.Session{Step: session.StepPayoutCode}) {
			b.say(ctx, in, "💸 Введите код на вывод, полученный в личном кабинете:", nil)
		}
	case callback.MenuBalance:
		b.showBalance(ctx, in)
	case callback.MenuDeposits:
		b.showDeposits(ctx, in)
	case callback.MenuSupport:
		b.showSupport(ctx, in)
	default:
		return b.openAdminMenu(ctx, in, entry)
	}
	return ""
}

func (b *Bot) onAmount(ctx context.Context, in Inbound) {
	amount, err := parseAmount(in.Text)
	if err != nil {
		b.say(ctx, in, "❌ Некорректная сумма. Введите число, например 500.", nil)
		return
	}
	if err := b.machine.CheckAmount(amount); err != nil {
		b.fail(ctx, in, err)
		return
	}
	if b.save(ctx, in, &session.Session{Step: session.StepMethod, Amount: amount}) {
		b.say(ctx, in, fmt.Sprintf("💰 Сумма: %s ₽\n\nВыберите способ оплаты:", amount.StringFixed(2)), methodMenu())
	}
}

func (b *Bot) chooseMethod(ctx context.Context, in Inbound, method models.PaymentMethod) string {
	sess, err := b.sessions.Get(ctx, in.UserID)
	if err != nil {
		return b.fail(ctx, in, err)
	}
	if sess.Step != session.StepMethod {
		b.say(ctx, in, "⌛ Сессия устарела, начните пополнение заново.", userMenu())
		return ""
	}

	if _, err := b.machine.Create(ctx, in.UserID, in.Username, sess.Amount, method); err != nil {
		return b.fail(ctx, in, err)
	}
	b.clear(ctx, in.UserID)
	return "✅ Заявка создана"
}

func (b *Bot) confirmPaid(ctx context.Context, in Inbound, id int64) string {
	if _, err := b.machine.BeginConfirm(ctx, in.UserID, id); err != nil {
		return b.fail(ctx, in, err)
	}
	if b.save(ctx, in, &session.Session{Step: session.StepReceipt, DepositID: id}) {
		b.say(ctx, in, fmt.Sprintf("📎 Отправьте чек об оплате депозита #%d: фото или PDF-файл.", id), nil)
	}
	return ""
}

func (b *Bot) onReceipt(ctx context.Context, in Inbound, sess *session.Session) {
	if !in.Attachment.Receipt() {
		b.say(ctx, in, "📎 Нужен чек: отправьте фото или PDF-документ.", nil)
		return
	}

	receipt := deposit.Receipt{FileID: in.Attachment.FileID, Kind: string(in.Attachment.Kind)}
	_, err := b.machine.SubmitReceipt(ctx, in.UserID, sess.DepositID, receipt)
	b.clear(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, deposit.ErrInvalidTransition) {
			b.say(ctx, in, "⚠️ Заявка больше не ожидает оплаты.", userMenu())
			return
		}
		b.fail(ctx, in, err)
	}
}

func (b *Bot) cancelDeposit(ctx context.Context, in Inbound, id int64) string {
	if _, err := b.machine.Cancel(ctx, in.UserID, id); err != nil {
		return b.fail(ctx, in, err)
	}
	return "Заявка отменена"
}

func (b *Bot) onPayoutCode(ctx context.Context, in Inbound) {
	code := strings.TrimSpace(in.Text)
	if code == "" {
		b.say(ctx, in, "Введите код на вывод или /cancel.", nil)
		return
	}
	b.clear(ctx, in.UserID)

	result, err := b.cashier.PayoutFromUser(ctx, in.UserID, code)
	if err != nil {
		b.log.Warn("payout failed", zap.Int64("user_id", in.UserID), zap.Error(err))
		b.say(ctx, in, "⚠️ Касса временно недоступна, попробуйте позже.", userMenu())
		return
	}
	if !result.Success {
		b.say(ctx, in, "❌ Вывод не выполнен: "+result.Message, userMenu())
		return
	}
	b.log.Info("payout completed", zap.Int64("user_id", in.UserID), zap.String("summa", result.Summa.String()))
	b.say(ctx, in, fmt.Sprintf("✅ Вывод выполнен: %s ₽", result.Summa.StringFixed(2)), userMenu())
}

func (b *Bot) showBalance(ctx context.Context, in Inbound) {
	account, err := b.accounts.GetUser(ctx, in.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		b.fail(ctx, in, err)
		return
	}
	if account == nil {
		account = &models.User{ID: in.UserID}
	}
	b.say(ctx, in, fmt.Sprintf(
		"👛 Ваш баланс\n\n🆔 ID: %d\n💰 Зачислено: %s ₽\n📊 Депозитов: %d",
		account.ID, account.Balance.StringFixed(2), account.DepositsCount,
	), userMenu())
}

const depositsShown = 10

func (b *Bot) showDeposits(ctx context.Context, in Inbound) {
	deposits, err := b.accounts.ListByUser(ctx, in.UserID)
	if err != nil {
		b.fail(ctx, in, err)
		return
	}
	if len(deposits) == 0 {
		b.say(ctx, in, "📋 У вас пока нет депозитов.", userMenu())
		return
	}

	lines := []string{"📋 Ваши депозиты:", ""}
	for i := range deposits {
		if i == depositsShown {
			lines = append(lines, fmt.Sprintf("… и еще %d", len(deposits)-depositsShown))
			break
		}
		lines = append(lines, notify.DepositLine(&deposits[i]))
	}
	b.say(ctx, in, strings.Join(lines, "\n"), userMenu())
}

func (b *Bot) supportLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=user%d", b.support, userID)
}

func (b *Bot) showSupport(ctx context.Context, in Inbound) {
	b.say(ctx, in, fmt.Sprintf(
		"📞 Связь с поддержкой\n\n👤 Ваш ID: %d\n📛 Имя: %s\n\nНажмите кнопку ниже, чтобы написать в поддержку:",
		in.UserID, in.FullName,
	), telegram.Keyboard{
		telegram.Row(telegram.LinkButton("💬 Написать в поддержку", b.supportLink(in.UserID))),
		telegram.Row(telegram.ActionButton("« Назад", callback.OpenMenu(callback.MenuHome))),
	})
}
