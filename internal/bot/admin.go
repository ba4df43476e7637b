package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cashdesk-bot/internal/callback"
	"cashdesk-bot/internal/cashdesk"
	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/notify"
	"cashdesk-bot/internal/session"
	"cashdesk-bot/internal/store"
	"cashdesk-bot/internal/telegram"
)

const queueShown = 20

func (b *Bot) openAdminMenu(ctx context.Context, in Inbound, entry string) string {
	if !b.machine.IsAdmin(in.UserID) {
		b.log.Warn("admin menu requested by non-admin", zap.Int64("user_id", in.UserID), zap.String("entry", entry))
		return b.fail(ctx, in, deposit.ErrUnauthorized)
	}

	switch entry {
	case callback.MenuStats:
		b.showStats(ctx, in)
	case callback.MenuPending:
		b.showQueue(ctx, in, models.StatusPending)
	case callback.MenuProcessing:
		b.showQueue(ctx, in, models.StatusProcessing)
	case callback.MenuCashier:
		b.showCashier(ctx, in)
	case callback.MenuBroadcast:
		if b.save(ctx, in, &session.Session{Step: session.StepBroadcast}) {
			b.say(ctx, in, "📢 Введите текст рассылки или /cancel:", nil)
		}
	case callback.MenuSearch:
		if b.save(ctx, in, &session.Session{Step: session.StepPlayerSearch}) {
			b.say(ctx, in, "🔍 Введите ID игрока:", nil)
		}
	default:
		b.log.Warn("unknown menu entry", zap.String("entry", entry))
		return "Неизвестное действие"
	}
	return ""
}

// accept is context sensitive: a PENDING deposit asks for payment
// instructions, a PROCESSING one is approved and sent to the cash desk.
func (b *Bot) accept(ctx context.Context, in Inbound, id int64) string {
	current, err := b.machine.View(ctx, in.UserID, id)
	if err != nil {
		return b.fail(ctx, in, err)
	}

	switch current.Status {
	case models.StatusPending:
		if _, err := b.machine.BeginAccept(ctx, in.UserID, id); err != nil {
			return b.fail(ctx, in, err)
		}
		if !b.save(ctx, in, &session.Session{Step: session.StepInstructions, DepositID: id, MessageID: in.MessageID}) {
			return ""
		}
		prompt := fmt.Sprintf(
			"✅ Вы принимаете депозит #%d\n💰 Сумма: %s ₽\n💳 Метод: %s\n\nВведите реквизиты для оплаты или /cancel:",
			id, current.Amount.StringFixed(2), notify.MethodTitle(current.Method),
		)
		if !b.rewrite(ctx, in, prompt, nil) {
			b.say(ctx, in, prompt, nil)
		}
		return ""
	case models.StatusProcessing:
		d, err := b.machine.Complete(ctx, in.UserID, id)
		if err != nil {
			return b.stale(ctx, in, id, err)
		}
		b.rewrite(ctx, in, notify.DepositCard("✅ Депозит зачислен", d), depositActions(d))
		return "✅ Зачислено"
	default:
		return b.stale(ctx, in, id, deposit.ErrInvalidTransition)
	}
}

// stale reports err and, when the deposit moved on, redraws the pressed card
// with the actions that still apply.
func (b *Bot) stale(ctx context.Context, in Inbound, id int64, err error) string {
	toast := b.fail(ctx, in, err)
	if !errors.Is(err, deposit.ErrInvalidTransition) {
		return toast
	}
	if d, viewErr := b.machine.View(ctx, in.UserID, id); viewErr == nil {
		b.rewrite(ctx, in, notify.DepositCard(cardTitle(d), d), depositActions(d))
	}
	return toast
}

func (b *Bot) onInstructions(ctx context.Context, in Inbound, sess *session.Session) {
	d, err := b.machine.Accept(ctx, in.UserID, sess.DepositID, in.Text)
	if errors.Is(err, deposit.ErrInvalidInstructions) {
		b.fail(ctx, in, err)
		return
	}
	b.clear(ctx, in.UserID)

	card := in
	card.MessageID = sess.MessageID
	card.Media = false
	if err != nil {
		b.stale(ctx, card, sess.DepositID, err)
		return
	}
	b.rewrite(ctx, card, notify.DepositCard("💳 Реквизиты отправлены", d), depositActions(d))
}

func (b *Bot) reject(ctx context.Context, in Inbound, id int64) string {
	d, err := b.machine.Reject(ctx, in.UserID, id)
	if err != nil {
		return b.stale(ctx, in, id, err)
	}
	b.rewrite(ctx, in, notify.DepositCard("❌ Депозит отклонен", d), depositActions(d))
	return "Отклонено"
}

func (b *Bot) contact(ctx context.Context, in Inbound, id int64) string {
	d, err := b.machine.View(ctx, in.UserID, id)
	if err != nil {
		return b.fail(ctx, in, err)
	}

	link := fmt.Sprintf("tg://user?id=%d", d.UserID)
	if d.Username != "" {
		link = "https://t.me/" + d.Username
	}
	b.say(ctx, in, fmt.Sprintf("💬 Игрок депозита #%d\n🆔 TG ID: %d\n👤 Username: %s", d.ID, d.UserID, usernameOrDash(d.Username)),
		telegram.Keyboard{telegram.Row(telegram.LinkButton("💬 Написать игроку", link))})
	return ""
}

func (b *Bot) view(ctx context.Context, in Inbound, id int64) string {
	d, err := b.machine.View(ctx, in.UserID, id)
	if err != nil {
		return b.fail(ctx, in, err)
	}
	b.say(ctx, in, notify.DepositCard(cardTitle(d), d), depositActions(d))
	return ""
}

func (b *Bot) showQueue(ctx context.Context, in Inbound, status models.Status) {
	deposits, err := b.machine.Queue(ctx, in.UserID, status)
	if err != nil {
		b.fail(ctx, in, err)
		return
	}
	if len(deposits) == 0 {
		b.say(ctx, in, fmt.Sprintf("%s: очередь пуста.", notify.StatusTitle(status)), adminMenu())
		return
	}

	b.say(ctx, in, fmt.Sprintf("%s: %d", notify.StatusTitle(status), len(deposits)), nil)
	for i := range deposits {
		if i == queueShown {
			b.say(ctx, in, fmt.Sprintf("… и еще %d", len(deposits)-queueShown), nil)
			break
		}
		b.say(ctx, in, notify.DepositCard(cardTitle(&deposits[i]), &deposits[i]), depositActions(&deposits[i]))
	}
}

func (b *Bot) showStats(ctx context.Context, in Inbound) {
	stats, err := b.accounts.Stats(ctx)
	if err != nil {
		b.fail(ctx, in, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Статистика\n\n👥 Пользователей: %d\n", stats.Users)
	for _, status := range []models.Status{
		models.StatusPending,
		models.StatusPaid,
		models.StatusProcessing,
		models.StatusCompleted,
		models.StatusCancelled,
	} {
		fmt.Fprintf(&sb, "%s: %d\n", notify.StatusTitle(status), stats.ByStatus[status])
	}
	fmt.Fprintf(&sb, "\n💰 Зачислено всего: %s ₽", stats.CompletedTotal.StringFixed(2))
	b.say(ctx, in, sb.String(), adminMenu())
}

func (b *Bot) showCashier(ctx context.Context, in Inbound) {
	balance, err := b.cashier.GetBalance(ctx)
	if err != nil {
		b.log.Warn("cash desk balance unavailable", zap.Error(err))
		b.say(ctx, in, "⚠️ Не удалось получить баланс кассы.", adminMenu())
		return
	}
	b.say(ctx, in, fmt.Sprintf(
		"🏦 Баланс кассы\n\n💵 Доступно: %s ₽\n📊 Лимит: %s ₽\n📈 Свободно: %s ₽\n\n🔄 Обновлено: %s UTC",
		balance.Balance.StringFixed(2), balance.Limit.StringFixed(2), balance.Free().StringFixed(2),
		time.Now().UTC().Format("15:04:05"),
	), adminMenu())
}

func (b *Bot) onPlayerSearch(ctx context.Context, in Inbound) {
	playerID, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	if err != nil || playerID <= 0 {
		b.say(ctx, in, "❌ ID игрока должен быть числом.", nil)
		return
	}
	b.clear(ctx, in.UserID)

	profile, err := b.cashier.FindUser(ctx, playerID)
	switch {
	case errors.Is(err, cashdesk.ErrUserNotFound):
		b.say(ctx, in, fmt.Sprintf("🔍 Игрок %d не найден.", playerID), adminMenu())
		return
	case err != nil:
		b.log.Warn("player search failed", zap.Int64("player_id", playerID), zap.Error(err))
		b.say(ctx, in, "⚠️ Касса временно недоступна.", adminMenu())
		return
	}

	text := fmt.Sprintf("🔍 Игрок найден\n\n🆔 ID: %d\n📛 Имя: %s\n💱 Валюта: %d", profile.UserID, profile.Name, profile.CurrencyID)
	if account, err := b.accounts.GetUser(ctx, playerID); err == nil {
		text += fmt.Sprintf("\n\n👛 В боте: %s ₽, депозитов %d", account.Balance.StringFixed(2), account.DepositsCount)
	} else if !errors.Is(err, store.ErrNotFound) {
		b.log.Warn("failed to load local account", zap.Int64("player_id", playerID), zap.Error(err))
	}
	b.say(ctx, in, text, adminMenu())
}

func (b *Bot) onBroadcastText(ctx context.Context, in Inbound) {
	if !b.machine.IsAdmin(in.UserID) {
		b.clear(ctx, in.UserID)
		b.fail(ctx, in, deposit.ErrUnauthorized)
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		b.say(ctx, in, "Текст рассылки не может быть пустым.", nil)
		return
	}
	if b.save(ctx, in, &session.Session{Step: session.StepBroadcastConfirm, Text: text}) {
		b.say(ctx, in, "📢 Предпросмотр рассылки:\n\n"+text+"\n\n✅ Отправить это сообщение всем пользователям?", telegram.Keyboard{
			telegram.Row(
				telegram.ActionButton("✅ Отправить", callback.Action{Kind: callback.BroadcastConfirm}),
				telegram.ActionButton("❌ Отмена", callback.Action{Kind: callback.BroadcastCancel}),
			),
		})
	}
}

func (b *Bot) confirmBroadcast(ctx context.Context, in Inbound) string {
	if !b.machine.IsAdmin(in.UserID) {
		return b.fail(ctx, in, deposit.ErrUnauthorized)
	}
	sess, err := b.sessions.Get(ctx, in.UserID)
	if err != nil {
		return b.fail(ctx, in, err)
	}
	if sess.Step != session.StepBroadcastConfirm || sess.Text == "" {
		b.say(ctx, in, "⌛ Рассылка устарела, начните заново.", adminMenu())
		return ""
	}
	b.clear(ctx, in.UserID)

	recipients, err := b.accounts.UserIDs(ctx)
	if err != nil {
		return b.fail(ctx, in, err)
	}
	started := fmt.Sprintf("⏳ Отправка рассылки: %d получателей", len(recipients))
	if !b.rewrite(ctx, in, started, nil) {
		b.say(ctx, in, started, nil)
	}

	text := sess.Text
	b.spawn(func(ctx context.Context) {
		tally := b.broadcaster.Broadcast(ctx, recipients, text)
		b.log.Info("broadcast finished",
			zap.Int64("admin_id", in.UserID),
			zap.Int("sent", tally.Sent),
			zap.Int("failed", tally.Failed),
		)
		b.say(context.WithoutCancel(ctx), in, fmt.Sprintf(
			"✅ Рассылка завершена!\n\n✅ Успешно: %d\n❌ Не удалось: %d\n👥 Всего: %d",
			tally.Sent, tally.Failed, tally.Total,
		), adminMenu())
	})
	return "📢 Рассылка запущена"
}

func usernameOrDash(username string) string {
	if username == "" {
		return "нет"
	}
	return "@" + username
}
