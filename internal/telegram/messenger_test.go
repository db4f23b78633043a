package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"printrelay/internal/chat"
)

type fakeBot struct {
	startedWith context.Context

	sent      []*bot.SendMessageParams
	edits     []*bot.EditMessageTextParams
	deletes   []*bot.DeleteMessageParams
	documents []*bot.SendDocumentParams
	answers   []*bot.AnswerCallbackQueryParams

	err error
}

func (f *fakeBot) Start(ctx context.Context) {
	f.startedWith = ctx
}

func (f *fakeBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: 10 + len(f.sent), Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.edits = append(f.edits, params)
	return &models.Message{}, nil
}

func (f *fakeBot) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.deletes = append(f.deletes, params)
	return true, nil
}

func (f *fakeBot) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.documents = append(f.documents, params)
	return &models.Message{ID: 20, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeBot) GetFile(_ context.Context, params *bot.GetFileParams) (*models.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.File{FileID: params.FileID, FilePath: "photos/" + params.FileID + ".jpg"}, nil
}

func (f *fakeBot) FileDownloadLink(file *models.File) string {
	return "https://api.telegram.org/file/bottoken/" + file.FilePath
}

func (f *fakeBot) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.answers = append(f.answers, params)
	return true, nil
}

func TestMessengerSendWithKeyboard(t *testing.T) {
	fb := &fakeBot{}
	m := NewMessenger(fb)

	sent, err := m.Send(context.Background(), chat.Message{
		ChatID:   -100123,
		ReplyTo:  55,
		Text:     chat.TextPrintPrompt,
		Keyboard: chat.Keyboard{{{Text: "Imprimir", Data: "print-x"}, {Text: "Não", Data: "cancel-x"}}},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if sent != (chat.Sent{ChatID: -100123, MessageID: 11}) {
		t.Fatalf("unexpected sent %+v", sent)
	}

	params := fb.sent[0]
	if params.ReplyParameters == nil || params.ReplyParameters.MessageID != 55 {
		t.Fatalf("expected reply to message 55, got %+v", params.ReplyParameters)
	}

	markup, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard markup, got %T", params.ReplyMarkup)
	}
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard layout %+v", markup.InlineKeyboard)
	}
	if markup.InlineKeyboard[0][1].CallbackData != "cancel-x" {
		t.Fatalf("unexpected callback data %q", markup.InlineKeyboard[0][1].CallbackData)
	}
}

func TestMessengerSendWithoutReplyOrKeyboard(t *testing.T) {
	fb := &fakeBot{}
	if _, err := NewMessenger(fb).Send(context.Background(), chat.Message{ChatID: 1, Text: "hi"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if fb.sent[0].ReplyParameters != nil || fb.sent[0].ReplyMarkup != nil {
		t.Fatalf("expected no reply parameters and no markup")
	}
}

func TestMessengerEditWithoutKeyboardClearsButtons(t *testing.T) {
	fb := &fakeBot{}
	err := NewMessenger(fb).Edit(context.Background(), chat.Sent{ChatID: 1, MessageID: 2}, "done", nil)
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if fb.edits[0].ReplyMarkup != nil {
		t.Fatalf("expected nil markup, got %#v", fb.edits[0].ReplyMarkup)
	}
	if fb.edits[0].MessageID != 2 || fb.edits[0].Text != "done" {
		t.Fatalf("unexpected edit params %+v", fb.edits[0])
	}
}

func TestMessengerSendDocument(t *testing.T) {
	fb := &fakeBot{}
	sent, err := NewMessenger(fb).SendDocument(context.Background(), chat.Document{
		ChatID:   -100123,
		ReplyTo:  55,
		Filename: "print.pdf",
		Data:     strings.NewReader("%PDF"),
		Caption:  "ID: 2024-3-1-G100123-55",
	})
	if err != nil {
		t.Fatalf("SendDocument returned error: %v", err)
	}
	if sent.MessageID != 20 {
		t.Fatalf("unexpected sent %+v", sent)
	}

	upload, ok := fb.documents[0].Document.(*models.InputFileUpload)
	if !ok {
		t.Fatalf("expected upload, got %T", fb.documents[0].Document)
	}
	body, _ := io.ReadAll(upload.Data)
	if upload.Filename != "print.pdf" || string(body) != "%PDF" {
		t.Fatalf("unexpected upload %q %q", upload.Filename, body)
	}
	if fb.documents[0].Caption != "ID: 2024-3-1-G100123-55" {
		t.Fatalf("unexpected caption %q", fb.documents[0].Caption)
	}
}

func TestMessengerFileURL(t *testing.T) {
	url, err := NewMessenger(&fakeBot{}).FileURL(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FileURL returned error: %v", err)
	}
	if url != "https://api.telegram.org/file/bottoken/photos/abc.jpg" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestMessengerWrapsErrors(t *testing.T) {
	boom := errors.New("telegram down")
	m := NewMessenger(&fakeBot{err: boom})
	ctx := context.Background()

	if _, err := m.Send(ctx, chat.Message{ChatID: 1}); !errors.Is(err, boom) {
		t.Fatalf("Send: expected wrapped error, got %v", err)
	}
	if err := m.Edit(ctx, chat.Sent{}, "x", nil); !errors.Is(err, boom) {
		t.Fatalf("Edit: expected wrapped error, got %v", err)
	}
	if err := m.Delete(ctx, chat.Sent{}); !errors.Is(err, boom) {
		t.Fatalf("Delete: expected wrapped error, got %v", err)
	}
	if _, err := m.FileURL(ctx, "abc"); !errors.Is(err, boom) {
		t.Fatalf("FileURL: expected wrapped error, got %v", err)
	}
	if err := m.AnswerCallback(ctx, "q", ""); !errors.Is(err, boom) {
		t.Fatalf("AnswerCallback: expected wrapped error, got %v", err)
	}
	if _, err := m.SendDocument(ctx, chat.Document{ChatID: 1}); err == nil {
		t.Fatalf("SendDocument: expected error for missing data")
	}
}
