// Package telegram sends chat messages through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"cashdesk-bot/internal/callback"
)

// Button is an inline button that either triggers an action or opens a URL.
type Button struct {
	Text   string
	Action callback.Action
	URL    string
}

type Keyboard [][]Button

func Row(buttons ...Button) []Button {
	return buttons
}

func ActionButton(text string, action callback.Action) Button {
	return Button{Text: text, Action: action}
}

func LinkButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

type FileKind string

const (
	FilePhoto    FileKind = "photo"
	FileDocument FileKind = "document"
)

// File references an already uploaded file by its Telegram file id.
type File struct {
	ID   string
	Kind FileKind
}

type Messenger struct {
	bot *telego.Bot
}

func NewMessenger(bot *telego.Bot) *Messenger {
	return &Messenger{bot: bot}
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	params := tu.Message(tu.ID(chatID), text)
	if markup := kb.markup(); markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := m.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

func (m *Messenger) SendFile(ctx context.Context, chatID int64, file File, caption string, kb Keyboard) error {
	markup := kb.markup()
	var err error

	switch file.Kind {
	case FilePhoto:
		params := tu.Photo(tu.ID(chatID), tu.FileFromID(file.ID)).WithCaption(caption)
		if markup != nil {
			params = params.WithReplyMarkup(markup)
		}
		_, err = m.bot.SendPhoto(ctx, params)
	case FileDocument:
		params := tu.Document(tu.ID(chatID), tu.FileFromID(file.ID)).WithCaption(caption)
		if markup != nil {
			params = params.WithReplyMarkup(markup)
		}
		_, err = m.bot.SendDocument(ctx, params)
	default:
		return fmt.Errorf("unsupported file kind %q", file.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to send %s to %d: %w", file.Kind, chatID, err)
	}
	return nil
}

// EditText rewrites a text message sent earlier. An empty keyboard removes
// the buttons of the message.
func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	params := tu.EditMessageText(tu.ID(chatID), messageID, text)
	if markup := kb.markup(); markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := m.bot.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("failed to edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// EditCaption is EditText for photo and document messages.
func (m *Messenger) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb Keyboard) error {
	params := tu.EditMessageCaption(tu.ID(chatID), messageID, caption)
	if markup := kb.markup(); markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := m.bot.EditMessageCaption(ctx, params); err != nil {
		return fmt.Errorf("failed to edit caption of %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// Answer acknowledges a callback query, optionally with a toast.
func (m *Messenger) Answer(ctx context.Context, queryID, text string) error {
	params := tu.CallbackQuery(queryID)
	if text != "" {
		params = params.WithText(text)
	}
	return m.bot.AnswerCallbackQuery(ctx, params)
}

func (kb Keyboard) markup() *telego.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			button := tu.InlineKeyboardButton(b.Text)
			if b.URL != "" {
				button = button.WithURL(b.URL)
			} else {
				button = button.WithCallbackData(b.Action.Data())
			}
			buttons = append(buttons, button)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons...))
	}
	return tu.InlineKeyboard(rows...)
}
