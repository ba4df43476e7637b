package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk-bot/internal/cashdesk"
	"cashdesk-bot/internal/deposit"
	"cashdesk-bot/internal/models"
	"cashdesk-bot/internal/notify"
	"cashdesk-bot/internal/session"
	"cashdesk-bot/internal/store"
	"cashdesk-bot/internal/telegram"
)

type Accounts interface {
	UpsertUser(ctx context.Context, userID int64, username, fullName string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Deposit, error)
	UserIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

type Cashier interface {
	GetBalance(ctx context.Context) (*cashdesk.Balance, error)
	FindUser(ctx context.Context, userID int64) (*cashdesk.Profile, error)
	PayoutFromUser(ctx context.Context, userID int64, code string) (*cashdesk.OperationResult, error)
}

type Sessions interface {
	Get(ctx context.Context, userID int64) (*session.Session, error)
	Save(ctx context.Context, userID int64, sess *session.Session) error
	Clear(ctx context.Context, userID int64) error
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb telegram.Keyboard) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb telegram.Keyboard) error
	Answer(ctx context.Context, queryID, text string) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, recipients []int64, text string) notify.Tally
}

type Config struct {
	Machine         *deposit.Machine
	Accounts        Accounts
	Cashier         Cashier
	Sessions        Sessions
	Messenger       Messenger
	Broadcaster     Broadcaster
	SupportUsername string
	Log             *zap.Logger
}

// Bot routes chat updates to the deposit flows. Conversation state lives in
// Sessions, keyed by the chat identity.
type Bot struct {
	machine     *deposit.Machine
	accounts    Accounts
	cashier     Cashier
	sessions    Sessions
	out         Messenger
	broadcaster Broadcaster
	support     string
	log         *zap.Logger

	// life bounds jobs that outlive a single update, such as broadcasts.
	life context.Context
	jobs sync.WaitGroup
}

func New(cfg Config) *Bot {
	return &Bot{
		machine:     cfg.Machine,
		accounts:    cfg.Accounts,
		cashier:     cfg.Cashier,
		sessions:    cfg.Sessions,
		out:         cfg.Messenger,
		broadcaster: cfg.Broadcaster,
		support:     strings.TrimPrefix(cfg.SupportUsername, "@"),
		log:         cfg.Log.Named("bot"),
		life:        context.Background(),
	}
}

// Run long-polls Telegram until ctx is done, then waits for background jobs.
func (b *Bot) Run(ctx context.Context, api *telego.Bot) error {
	b.life = ctx
	defer b.jobs.Wait()

	updates, err := api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(api, updates)
	if err != nil {
		return fmt.Errorf("failed to create update handler: %w", err)
	}

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.OnStart(ctx.Context(), fromMessage(update.Message))
		return nil
	}, th.CommandEqual("start"))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.OnCancel(ctx.Context(), fromMessage(update.Message))
		return nil
	}, th.CommandEqual("cancel"))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.OnCallback(ctx.Context(), fromCallback(update.CallbackQuery))
		return nil
	}, th.AnyCallbackQuery())

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.OnMessage(ctx.Context(), fromMessage(update.Message))
		return nil
	}, th.AnyMessage())

	b.log.Info("bot started")
	return handler.Start()
}

// OnStart registers the user and shows the menu matching their role.
func (b *Bot) OnStart(ctx context.Context, in Inbound) {
	b.touch(ctx, in)
	b.clear(ctx, in.UserID)

	if b.machine.IsAdmin(in.UserID) {
		b.say(ctx, in, fmt.Sprintf("👮 Панель администратора\n\nПривет, %s!", in.FullName), adminMenu())
		return
	}
	b.say(ctx, in, fmt.Sprintf(
		"Привет, %s! 👋\n\nЗдесь можно пополнить игровой счет и вывести средства.\nМинимальная сумма пополнения: %s ₽",
		in.FullName, b.machine.MinAmount().StringFixed(2),
	), userMenu())
}

func (b *Bot) OnCancel(ctx context.Context, in Inbound) {
	b.clear(ctx, in.UserID)
	b.say(ctx, in, "Действие отменено.", b.menuFor(in.UserID))
}

// OnCallback handles an inline button press.
func (b *Bot) OnCallback(ctx context.Context, in Inbound) {
	b.touch(ctx, in)
	toast := b.dispatch(ctx, in)
	if in.QueryID == "" {
		return
	}
	if err := b.out.Answer(ctx, in.QueryID, toast); err != nil {
		b.log.Debug("failed to answer callback", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}

// OnMessage advances the conversation step stored for the sender.
func (b *Bot) OnMessage(ctx context.Context, in Inbound) {
	b.touch(ctx, in)

	sess, err := b.sessions.Get(ctx, in.UserID)
	if err != nil {
		b.log.Error("failed to load session", zap.Int64("user_id", in.UserID), zap.Error(err))
		b.say(ctx, in, textInternal, nil)
		return
	}

	switch sess.Step {
	case session.StepAmount:
		b.onAmount(ctx, in)
	case session.StepMethod:
		b.say(ctx, in, "Выберите способ оплаты кнопкой выше или /cancel.", nil)
	case session.StepInstructions:
		b.onInstructions(ctx, in, sess)
	case session.StepReceipt:
		b.onReceipt(ctx, in, sess)
	case session.StepPayoutCode:
		b.onPayoutCode(ctx, in)
	case session.StepBroadcast:
		b.onBroadcastText(ctx, in)
	case session.StepBroadcastConfirm:
		b.say(ctx, in, "Подтвердите или отмените рассылку кнопками выше.", nil)
	case session.StepPlayerSearch:
		b.onPlayerSearch(ctx, in)
	default:
		b.say(ctx, in, "Выберите действие в меню.", b.menuFor(in.UserID))
	}
}

func (b *Bot) touch(ctx context.Context, in Inbound) {
	if err := b.accounts.UpsertUser(ctx, in.UserID, in.Username, in.FullName); err != nil {
		b.log.Warn("failed to upsert user", zap.Int64("user_id", in.UserID), zap.Error(err))
	}
}

func (b *Bot) say(ctx context.Context, in Inbound, text string, kb telegram.Keyboard) {
	if err := b.out.SendText(ctx, in.ChatID, text, kb); err != nil {
		b.log.Warn("failed to reply", zap.Int64("chat_id", in.ChatID), zap.Error(err))
	}
}

// rewrite replaces the message that carried the pressed button. It reports
// false when there is no such message or the edit failed.
func (b *Bot) rewrite(ctx context.Context, in Inbound, text string, kb telegram.Keyboard) bool {
	if in.MessageID == 0 {
		return false
	}
	edit := b.out.EditText
	if in.Media {
		edit = b.out.EditCaption
	}
	if err := edit(ctx, in.ChatID, in.MessageID, text, kb); err != nil {
		b.log.Debug("failed to edit message", zap.Int64("chat_id", in.ChatID), zap.Int("message_id", in.MessageID), zap.Error(err))
		return false
	}
	return true
}

// spawn runs job outside the update handler. Run waits for it on shutdown.
func (b *Bot) spawn(job func(ctx context.Context)) {
	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		job(b.life)
	}()
}

func (b *Bot) save(ctx context.Context, in Inbound, sess *session.Session) bool {
	if err := b.sessions.Save(ctx, in.UserID, sess); err != nil {
		b.log.Error("failed to save session", zap.Int64("user_id", in.UserID), zap.Error(err))
		b.say(ctx, in, textInternal, nil)
		return false
	}
	return true
}

func (b *Bot) clear(ctx context.Context, userID int64) {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		b.log.Warn("failed to clear session", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// parseAmount accepts both decimal separators and at most two fraction digits.
func parseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "₽"))
	amount, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil {
		return decimal.Zero, err
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("too many fraction digits in %q", text)
	}
	return amount, nil
}
