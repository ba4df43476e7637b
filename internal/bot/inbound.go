package bot

import (
	"strings"

	"github.com/mymmrac/telego"

	"cashdesk-bot/internal/telegram"
)

// Inbound is a chat event reduced to what the flows need.
type Inbound struct {
	UserID   int64
	ChatID   int64
	Username string
	FullName string

	Text       string
	Attachment *Attachment

	QueryID string
	Data    string

	// MessageID is the message carrying the pressed button; Media is set
	// when that message is a photo or document with a caption.
	MessageID int
	Media     bool
}

type Attachment struct {
	FileID   string
	Kind     telegram.FileKind
	MimeType string
	FileName string
}

// Receipt reports whether the attachment is an accepted payment proof:
// a photo or a PDF document.
func (a *Attachment) Receipt() bool {
	if a == nil {
		return false
	}
	switch a.Kind {
	case telegram.FilePhoto:
		return true
	case telegram.FileDocument:
		return a.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(a.FileName), ".pdf")
	}
	return false
}

func fullName(u telego.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func fromMessage(msg *telego.Message) Inbound {
	in := Inbound{ChatID: msg.Chat.ID, Text: msg.Text}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Username = msg.From.Username
		in.FullName = fullName(*msg.From)
	}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		in.Attachment = &Attachment{FileID: largest.FileID, Kind: telegram.FilePhoto}
	case msg.Document != nil:
		in.Attachment = &Attachment{
			FileID:   msg.Document.FileID,
			Kind:     telegram.FileDocument,
			MimeType: msg.Document.MimeType,
			FileName: msg.Document.FileName,
		}
	}
	return in
}

func fromCallback(query *telego.CallbackQuery) Inbound {
	in := Inbound{
		UserID:   query.From.ID,
		ChatID:   query.From.ID,
		Username: query.From.Username,
		FullName: fullName(query.From),
		QueryID:  query.ID,
		Data:     query.Data,
	}
	if query.Message != nil && query.Message.IsAccessible() {
		msg := query.Message.Message()
		in.ChatID = msg.Chat.ID
		in.MessageID = msg.MessageID
		in.Media = len(msg.Photo) > 0 || msg.Document != nil
	}
	return in
}
