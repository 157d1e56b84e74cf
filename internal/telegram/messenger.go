package telegram

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/Frenkcardi87/saldo-bot/internal/flow"
)

// Messenger adapts the telebot API to the flow.Messenger contract.
type Messenger struct {
	bot *tele.Bot
}

// NewMessenger wraps a bot instance.
func NewMessenger(bot *tele.Bot) *Messenger {
	return &Messenger{bot: bot}
}

// SendText sends plain text, with an optional inline keyboard.
func (m *Messenger) SendText(_ context.Context, chatID int64, text string, keyboard ...[]flow.Button) error {
	var err error
	if mk := markup(keyboard); mk != nil {
		_, err = m.bot.Send(tele.ChatID(chatID), text, mk)
	} else {
		_, err = m.bot.Send(tele.ChatID(chatID), text)
	}
	if err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto sends a photo by file id with a caption and returns a reference
// usable for later caption edits.
func (m *Messenger) SendPhoto(_ context.Context, chatID int64, photoFileID, caption string, keyboard ...[]flow.Button) (flow.MessageRef, error) {
	photo := &tele.Photo{File: tele.File{FileID: photoFileID}, Caption: caption}

	var (
		msg *tele.Message
		err error
	)
	if mk := markup(keyboard); mk != nil {
		msg, err = m.bot.Send(tele.ChatID(chatID), photo, mk)
	} else {
		msg, err = m.bot.Send(tele.ChatID(chatID), photo)
	}
	if err != nil {
		return flow.MessageRef{}, fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return flow.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(msg.ID)}, nil
}

// EditCaption rewrites a sent photo's caption. An empty keyboard strips the
// existing controls.
func (m *Messenger) EditCaption(_ context.Context, ref flow.MessageRef, caption string, keyboard ...[]flow.Button) error {
	stored := tele.StoredMessage{ChatID: ref.ChatID, MessageID: ref.MessageID}

	var err error
	if mk := markup(keyboard); mk != nil {
		_, err = m.bot.EditCaption(stored, caption, mk)
	} else {
		_, err = m.bot.EditCaption(stored, caption, &tele.ReplyMarkup{})
	}
	if err != nil {
		return fmt.Errorf("edit caption %s@%d: %w", ref.MessageID, ref.ChatID, err)
	}
	return nil
}
