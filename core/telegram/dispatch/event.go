package dispatch

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/telegram/callbacks"
)

// Event is an inbound update the bot acts on: TextCommand or ButtonPress.
type Event interface {
	Chat() int64
	event()
}

// TextCommand is a text message, command or free text.
type TextCommand struct {
	ChatID   int64
	UserName string
	Text     string
}

// ButtonPress is an inline button press on one of the bot's messages.
type ButtonPress struct {
	ChatID          int64
	UserName        string
	SourceMessageID int
	CallbackToken   string
	Data            string
}

func (e TextCommand) Chat() int64 { return e.ChatID }
func (e ButtonPress) Chat() int64 { return e.ChatID }
func (TextCommand) event()        {}
func (ButtonPress) event()        {}

// FromUpdate classifies upd. It reports false for update kinds the bot
// ignores and for updates missing the fields it needs.
func FromUpdate(upd tele.Update) (Event, bool) {
	switch {
	case upd.Callback != nil:
		cb := upd.Callback
		if cb.Message == nil || cb.Message.Chat == nil || cb.ID == "" {
			return nil, false
		}
		key := callbacks.Key(cb)
		return ButtonPress{
			ChatID:          cb.Message.Chat.ID,
			UserName:        displayName(cb.Sender),
			SourceMessageID: cb.Message.ID,
			CallbackToken:   cb.ID,
			Data:            key,
		}, true
	case upd.Message != nil:
		msg := upd.Message
		if msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
			return nil, false
		}
		return TextCommand{
			ChatID:   msg.Chat.ID,
			UserName: displayName(msg.Sender),
			Text:     msg.Text,
		}, true
	}
	return nil, false
}

// UpdateMeta extracts ids for logging from any update kind.
func UpdateMeta(upd tele.Update) (chatID, userID int64) {
	switch {
	case upd.Callback != nil:
		if upd.Callback.Sender != nil {
			userID = upd.Callback.Sender.ID
		}
		if upd.Callback.Message != nil && upd.Callback.Message.Chat != nil {
			chatID = upd.Callback.Message.Chat.ID
		}
	case upd.Message != nil:
		if upd.Message.Sender != nil {
			userID = upd.Message.Sender.ID
		}
		if upd.Message.Chat != nil {
			chatID = upd.Message.Chat.ID
		}
	}
	return chatID, userID
}

// UpdateKind names the update type: message, callback or other.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	return strings.TrimSpace(u.Username)
}
