package notify

import (
	"fmt"
	"strings"
	"time"

	"cashdesk-bot/internal/models"
)

var methodTitles = map[models.PaymentMethod]string{
	models.MethodCard:     "💳 Банковская карта",
	models.MethodYooMoney: "🟡 ЮMoney",
	models.MethodQiwi:     "🥝 QIWI",
	models.MethodCrypto:   "₿ Криптовалюта",
}

var statusTitles = map[models.Status]string{
	models.StatusPending:    "⏳ Ожидает реквизитов",
	models.StatusPaid:       "💳 Ожидает оплаты",
	models.StatusProcessing: "🔎 На проверке",
	models.StatusCompleted:  "✅ Зачислен",
	models.StatusCancelled:  "❌ Отменен",
}

func MethodTitle(m models.PaymentMethod) string {
	if title, ok := methodTitles[m]; ok {
		return title
	}
	return string(m)
}

func StatusTitle(s models.Status) string {
	if title, ok := statusTitles[s]; ok {
		return title
	}
	return string(s)
}

func handle(username string) string {
	if username == "" {
		return "нет"
	}
	return "@" + username
}

// DepositCard renders the full deposit context shown to admins.
func DepositCard(title string, d *models.Deposit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d\n\n", title, d.ID)
	fmt.Fprintf(&b, "🆔 TG ID: %d\n", d.UserID)
	fmt.Fprintf(&b, "👤 Username: %s\n", handle(d.Username))
	fmt.Fprintf(&b, "💰 Сумма: %s ₽\n", d.Amount.StringFixed(2))
	fmt.Fprintf(&b, "💳 Метод: %s\n", MethodTitle(d.Method))
	fmt.Fprintf(&b, "📌 Статус: %s\n", StatusTitle(d.Status))
	fmt.Fprintf(&b, "⏰ Создан: %s UTC", d.CreatedAt.UTC().Format("02.01.2006 15:04:05"))
	if d.PaymentDetails != nil {
		fmt.Fprintf(&b, "\n🔗 Реквизиты: %s", *d.PaymentDetails)
	}
	if d.AdminID != nil {
		fmt.Fprintf(&b, "\n👮 Администратор: %d", *d.AdminID)
	}
	return b.String()
}

// DepositLine is the one-line summary used in listings.
func DepositLine(d *models.Deposit) string {
	return fmt.Sprintf("#%d · %s ₽ · %s · %s", d.ID, d.Amount.StringFixed(2), MethodTitle(d.Method), StatusTitle(d.Status))
}

func minutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}
