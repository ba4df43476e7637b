package bot

import (
	"cashdesk-bot/internal/callback"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/notify"
	"cashdesk-bot/internal/telegram"
)

func userMenu() telegram.Keyboard {
	return telegram.Keyboard{
		telegram.Row(
			telegram.ActionButton("💰 Пополнить", callback.OpenMenu(callback.MenuDeposit)),
			telegram.ActionButton("💸 Вывести", callback.OpenMenu(callback.MenuWithdraw)),
		),
		telegram.Row(
			telegram.ActionButton("👛 Мой баланс", callback.OpenMenu(callback.MenuBalance)),
			telegram.ActionButton("📋 Мои депозиты", callback.OpenMenu(callback.MenuDeposits)),
		),
		telegram.Row(telegram.ActionButton("📞 Поддержка", callback.OpenMenu(callback.MenuSupport))),
	}
}

func adminMenu() telegram.Keyboard {
	return telegram.Keyboard{
		telegram.Row(
			telegram.ActionButton("📊 Статистика", callback.OpenMenu(callback.MenuStats)),
			telegram.ActionButton("🏦 Баланс кассы", callback.OpenMenu(callback.MenuCashier)),
		),
		telegram.Row(
			telegram.ActionButton("⏳ Ожидают", callback.OpenMenu(callback.MenuPending)),
			telegram.ActionButton("🔎 На проверке", callback.OpenMenu(callback.MenuProcessing)),
		),
		telegram.Row(
			telegram.ActionButton("📢 Рассылка", callback.OpenMenu(callback.MenuBroadcast)),
			telegram.ActionButton("🔍 Найти игрока", callback.OpenMenu(callback.MenuSearch)),
		),
	}
}

func (b *Bot) menuFor(userID int64) telegram.Keyboard {
	if b.machine.IsAdmin(userID) {
		return adminMenu()
	}
	return userMenu()
}

func methodMenu() telegram.Keyboard {
	kb := make(telegram.Keyboard, 0, len(models.PaymentMethods)+1)
	for _, m := range models.PaymentMethods {
		kb = append(kb, telegram.Row(telegram.ActionButton(notify.MethodTitle(m), callback.ChooseMethod(m))))
	}
	return append(kb, telegram.Row(telegram.ActionButton("« Назад", callback.OpenMenu(callback.MenuHome))))
}

func cardTitle(d *models.Deposit) string {
	if d.Status.IsTerminal() {
		return "🔒 Заявка закрыта"
	}
	return "📋 Депозит"
}

// depositActions offers the admin actions that still apply to the deposit.
func depositActions(d *models.Deposit) telegram.Keyboard {
	switch d.Status {
	case models.StatusPending:
		return telegram.Keyboard{
			telegram.Row(
				telegram.ActionButton("✅ Принять", callback.AcceptDeposit(d.ID)),
				telegram.ActionButton("❌ Отклонить", callback.RejectDeposit(d.ID)),
			),
			telegram.Row(telegram.ActionButton("💬 Связаться", callback.ContactOwner(d.ID))),
		}
	case models.StatusProcessing:
		return telegram.Keyboard{
			telegram.Row(
				telegram.ActionButton("✅ Подтвердить и зачислить", callback.AcceptDeposit(d.ID)),
				telegram.ActionButton("❌ Отклонить", callback.RejectDeposit(d.ID)),
			),
			telegram.Row(telegram.ActionButton("💬 Связаться", callback.ContactOwner(d.ID))),
		}
	default:
		return telegram.Keyboard{
			telegram.Row(telegram.ActionButton("💬 Связаться", callback.ContactOwner(d.ID))),
		}
	}
}
