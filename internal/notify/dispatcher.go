// Package notify delivers deposit events over the chat transport.
// Delivery is best effort: failures are logged and counted, never returned.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cashdesk-bot/internal/callback"
	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/metrics"
	"cashdesk-bot/internal/telegram"
)

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) error
	SendFile(ctx context.Context, chatID int64, file telegram.File, caption string, kb telegram.Keyboard) error
}

type Config struct {
	Admins        []int64
	Channel       int64
	PaymentWindow time.Duration
	Log           *zap.Logger
}

type Dispatcher struct {
	messenger Messenger
	admins    []int64
	channel   int64
	window    time.Duration
	log       *zap.Logger
}

func NewDispatcher(messenger Messenger, cfg Config) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		admins:    cfg.Admins,
		channel:   cfg.Channel,
		window:    cfg.PaymentWindow,
		log:       cfg.Log.Named("notify"),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, ev deposit.Event) {
	dep := &ev.Deposit

	switch ev.Kind {
	case deposit.EventCreated:
		d.user(ctx, ev, fmt.Sprintf(
			"📋 Заявка на депозит #%d создана\n\n💵 Сумма: %s ₽\n💳 Метод: %s\n\n⏳ Ожидайте реквизиты от администратора.",
			dep.ID, dep.Amount.StringFixed(2), MethodTitle(dep.Method),
		), telegram.Keyboard{
			telegram.Row(telegram.ActionButton("❌ Отменить заявку", callback.CancelDeposit(dep.ID))),
		})
		d.admin(ctx, ev, DepositCard("🆕 Новый депозит", dep), adminKeyboard(dep.ID))

	case deposit.EventInstructions:
		details := ""
		if dep.PaymentDetails != nil {
			details = *dep.PaymentDetails
		}
		d.user(ctx, ev, fmt.Sprintf(
			"💳 Реквизиты для оплаты\n\n📋 Депозит #%d\n💰 Сумма: %s ₽\n\n🔗 Реквизиты:\n%s\n\n⏳ Время на оплату: %d мин.\nПосле оплаты нажмите кнопку «Я оплатил».",
			dep.ID, dep.Amount.StringFixed(2), details, minutes(d.window),
		), telegram.Keyboard{
			telegram.Row(telegram.ActionButton("✅ Я оплатил", callback.ConfirmPaid(dep.ID))),
		})
		d.actor(ctx, ev, fmt.Sprintf("✅ Реквизиты отправлены игроку\nДепозит #%d\n⏰ Таймер: %d мин.", dep.ID, minutes(d.window)))

	case deposit.EventReceipt:
		d.user(ctx, ev, "✅ Чек получен и отправлен администратору\nОжидайте подтверждения платежа.", nil)
		d.receipt(ctx, ev)

	case deposit.EventRejected:
		d.user(ctx, ev, fmt.Sprintf(
			"❌ Депозит #%d отклонен\n💰 Сумма: %s ₽\n\nЕсли у вас есть вопросы, обратитесь в поддержку.",
			dep.ID, dep.Amount.StringFixed(2),
		), nil)
		d.actor(ctx, ev, fmt.Sprintf("❌ Депозит #%d отклонен\nИгрок уведомлен", dep.ID))

	case deposit.EventCancelled:
		d.user(ctx, ev, fmt.Sprintf("❌ Заявка #%d отменена", dep.ID), nil)
		d.admin(ctx, ev, fmt.Sprintf("ℹ️ Игрок %d отменил депозит #%d", dep.UserID, dep.ID), nil)

	case deposit.EventExpired:
		d.user(ctx, ev, fmt.Sprintf("❌ Депозит #%d отменен\nПричина: истекло время оплаты", dep.ID), nil)
		d.admin(ctx, ev, fmt.Sprintf("⌛ Депозит #%d отменен: игрок не оплатил вовремя", dep.ID), nil)

	case deposit.EventCompleted:
		d.user(ctx, ev, fmt.Sprintf(
			"✅ Депозит успешно зачислен!\n\n📋 Номер: #%d\n💵 Сумма: %s ₽\n💰 Ваш счет пополнен\n🎰 Удачной игры!",
			dep.ID, dep.Amount.StringFixed(2),
		), nil)
		d.actor(ctx, ev, fmt.Sprintf("✅ Депозит #%d зачислен игроку %d", dep.ID, dep.UserID))
		d.echo(ctx, ev)

	case deposit.EventCompletionFailed:
		d.user(ctx, ev, fmt.Sprintf(
			"⚠️ Ошибка зачисления депозита\n\n📋 Номер: #%d\n💵 Сумма: %s ₽\n❌ Ошибка: %s\n📞 Свяжитесь с поддержкой",
			dep.ID, dep.Amount.StringFixed(2), ev.Reason,
		), nil)
		d.send(ctx, ev, ev.ActorID, fmt.Sprintf("⚠️ Касса не подтвердила депозит #%d: %s\nДепозит остается на проверке, можно повторить.", dep.ID, ev.Reason), telegram.Keyboard{
			telegram.Row(
				telegram.ActionButton("🔁 Повторить", callback.AcceptDeposit(dep.ID)),
				telegram.ActionButton("❌ Отклонить", callback.RejectDeposit(dep.ID)),
			),
		})

	default:
		d.log.Warn("unknown event kind", zap.String("kind", string(ev.Kind)), zap.Int64("deposit_id", dep.ID))
	}
}

func adminKeyboard(id int64) telegram.Keyboard {
	return telegram.Keyboard{
		telegram.Row(
			telegram.ActionButton("✅ Принять", callback.AcceptDeposit(id)),
			telegram.ActionButton("❌ Отклонить", callback.RejectDeposit(id)),
		),
		telegram.Row(
			telegram.ActionButton("💬 Связаться", callback.ContactOwner(id)),
			telegram.ActionButton("👁 Подробнее", callback.ViewDeposit(id)),
		),
	}
}

func (d *Dispatcher) user(ctx context.Context, ev deposit.Event, text string, kb telegram.Keyboard) {
	d.send(ctx, ev, ev.Deposit.UserID, text, kb)
}

// actor confirms the outcome to the admin who triggered the event.
func (d *Dispatcher) actor(ctx context.Context, ev deposit.Event, text string) {
	if ev.ActorID == 0 || ev.ActorID == ev.Deposit.UserID {
		return
	}
	d.send(ctx, ev, ev.ActorID, text, nil)
}

// admin fans the message out to every admin; one failing chat does not
// hold back the others.
func (d *Dispatcher) admin(ctx context.Context, ev deposit.Event, text string, kb telegram.Keyboard) {
	d.fanOut(ev, func(id int64) error {
		return d.messenger.SendText(ctx, id, text, kb)
	})
}

func (d *Dispatcher) receipt(ctx context.Context, ev deposit.Event) {
	dep := &ev.Deposit
	caption := DepositCard("📎 Чек для депозита", dep)
	kb := telegram.Keyboard{
		telegram.Row(
			telegram.ActionButton("✅ Подтвердить и зачислить", callback.AcceptDeposit(dep.ID)),
			telegram.ActionButton("❌ Отклонить", callback.RejectDeposit(dep.ID)),
		),
		telegram.Row(telegram.ActionButton("💬 Связаться", callback.ContactOwner(dep.ID))),
	}

	if dep.ReceiptFileID == nil {
		d.admin(ctx, ev, caption, kb)
		return
	}
	file := telegram.File{ID: *dep.ReceiptFileID, Kind: telegram.FileKind(dep.ReceiptKind)}
	d.fanOut(ev, func(id int64) error {
		return d.messenger.SendFile(ctx, id, file, caption, kb)
	})
}

func (d *Dispatcher) echo(ctx context.Context, ev deposit.Event) {
	if d.channel == 0 {
		return
	}
	dep := &ev.Deposit
	text := fmt.Sprintf("💰 Депозит #%d зачислен: %s ₽ (%s)", dep.ID, dep.Amount.StringFixed(2), MethodTitle(dep.Method))
	d.send(ctx, ev, d.channel, text, nil)
}

func (d *Dispatcher) fanOut(ev deposit.Event, deliver func(id int64) error) {
	var g errgroup.Group
	g.SetLimit(8)
	for _, id := range d.admins {
		g.Go(func() error {
			d.record(ev, id, deliver(id))
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) send(ctx context.Context, ev deposit.Event, chatID int64, text string, kb telegram.Keyboard) {
	d.record(ev, chatID, d.messenger.SendText(ctx, chatID, text, kb))
}

func (d *Dispatcher) record(ev deposit.Event, chatID int64, err error) {
	metrics.Notifications.WithLabelValues(string(ev.Kind), metrics.Outcome(err)).Inc()
	if err != nil {
		d.log.Warn("notification not delivered",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("deposit_id", ev.Deposit.ID),
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
