package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"printrelay/internal/chat"
)

// Messenger adapts the bot API to chat.Messenger.
type Messenger struct {
	api botAPI
}

// NewMessenger constructs a Messenger over api.
func NewMessenger(api botAPI) *Messenger {
	return &Messenger{api: api}
}

// Send posts a text message.
func (m *Messenger) Send(ctx context.Context, msg chat.Message) (chat.Sent, error) {
	params := &bot.SendMessageParams{
		ChatID:          msg.ChatID,
		Text:            msg.Text,
		ReplyParameters: replyTo(msg.ReplyTo),
	}
	if len(msg.Keyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard(msg.Keyboard)
	}

	sent, err := m.api.SendMessage(ctx, params)
	if err != nil {
		return chat.Sent{}, fmt.Errorf("send message: %w", err)
	}
	return sentFrom(sent, msg.ChatID), nil
}

// Edit replaces the text of target. A nil keyboard removes the buttons.
func (m *Messenger) Edit(ctx context.Context, target chat.Sent, text string, keyboard chat.Keyboard) error {
	params := &bot.EditMessageTextParams{
		ChatID:    target.ChatID,
		MessageID: target.MessageID,
		Text:      text,
	}
	if len(keyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard(keyboard)
	}

	if _, err := m.api.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Delete removes target.
func (m *Messenger) Delete(ctx context.Context, target chat.Sent) error {
	if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    target.ChatID,
		MessageID: target.MessageID,
	}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendDocument uploads doc.
func (m *Messenger) SendDocument(ctx context.Context, doc chat.Document) (chat.Sent, error) {
	if doc.Data == nil {
		return chat.Sent{}, errors.New("document data is required")
	}

	sent, err := m.api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:          doc.ChatID,
		Document:        &models.InputFileUpload{Filename: doc.Filename, Data: doc.Data},
		Caption:         doc.Caption,
		ReplyParameters: replyTo(doc.ReplyTo),
	})
	if err != nil {
		return chat.Sent{}, fmt.Errorf("send document: %w", err)
	}
	return sentFrom(sent, doc.ChatID), nil
}

// FileURL resolves the download link of an uploaded file.
func (m *Messenger) FileURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", errors.New("file id is required")
	}

	file, err := m.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	if file == nil || file.FilePath == "" {
		return "", errors.New("get file: no file path returned")
	}
	return m.api.FileDownloadLink(file), nil
}

// AnswerCallback acknowledges a callback query, optionally with a notice.
func (m *Messenger) AnswerCallback(ctx context.Context, queryID, text string) error {
	if _, err := m.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func replyTo(messageID int) *models.ReplyParameters {
	if messageID == 0 {
		return nil
	}
	return &models.ReplyParameters{MessageID: messageID, AllowSendingWithoutReply: true}
}

func inlineKeyboard(keyboard chat.Keyboard) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func sentFrom(msg *models.Message, fallbackChat int64) chat.Sent {
	if msg == nil {
		return chat.Sent{ChatID: fallbackChat}
	}
	id := msg.Chat.ID
	if id == 0 {
		id = fallbackChat
	}
	return chat.Sent{ChatID: id, MessageID: msg.ID}
}

var _ chat.Messenger = (*Messenger)(nil)
