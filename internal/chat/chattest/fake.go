// Package chattest provides an in-memory chat.Messenger for tests.
package chattest

import (
	"context"
	"io"
	"sync"

	"printrelay/internal/chat"
)

// Document is an uploaded document as captured by Messenger.
type Document struct {
	chat.Document
	Body []byte
	Sent chat.Sent
}

// Edit is a captured message edit.
type Edit struct {
	Target   chat.Sent
	Text     string
	Keyboard chat.Keyboard
}

// Answer is a captured callback answer.
type Answer struct {
	QueryID string
	Text    string
}

// Messenger records every call. Errors set on the exported fields are
// returned by the matching method.
type Messenger struct {
	mu sync.Mutex

	Sent      []chat.Message
	Edits     []Edit
	Deleted   []chat.Sent
	Documents []Document
	Answers   []Answer

	// Files maps file ids to download URLs.
	Files map[string]string

	SendErr     error
	EditErr     error
	DocumentErr error
	FileErr     error

	nextID int
}

// New returns an empty Messenger; message ids start at 1000.
func New() *Messenger {
	return &Messenger{Files: map[string]string{}, nextID: 1000}
}

func (m *Messenger) id() int {
	m.nextID++
	return m.nextID
}

// Send implements chat.Messenger.
func (m *Messenger) Send(_ context.Context, msg chat.Message) (chat.Sent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return chat.Sent{}, m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return chat.Sent{ChatID: msg.ChatID, MessageID: m.id()}, nil
}

// Edit implements chat.Messenger.
func (m *Messenger) Edit(_ context.Context, target chat.Sent, text string, keyboard chat.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EditErr != nil {
		return m.EditErr
	}
	m.Edits = append(m.Edits, Edit{Target: target, Text: text, Keyboard: keyboard})
	return nil
}

// Delete implements chat.Messenger.
func (m *Messenger) Delete(_ context.Context, target chat.Sent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deleted = append(m.Deleted, target)
	return nil
}

// SendDocument implements chat.Messenger.
func (m *Messenger) SendDocument(_ context.Context, doc chat.Document) (chat.Sent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DocumentErr != nil {
		return chat.Sent{}, m.DocumentErr
	}

	var body []byte
	if doc.Data != nil {
		data, err := io.ReadAll(doc.Data)
		if err != nil {
			return chat.Sent{}, err
		}
		body = data
	}

	sent := chat.Sent{ChatID: doc.ChatID, MessageID: m.id()}
	m.Documents = append(m.Documents, Document{Document: doc, Body: body, Sent: sent})
	return sent, nil
}

// FileURL implements chat.Messenger.
func (m *Messenger) FileURL(_ context.Context, fileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FileErr != nil {
		return "", m.FileErr
	}
	if url, ok := m.Files[fileID]; ok {
		return url, nil
	}
	return "https://files.example/" + fileID, nil
}

// AnswerCallback implements chat.Messenger.
func (m *Messenger) AnswerCallback(_ context.Context, queryID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Answers = append(m.Answers, Answer{QueryID: queryID, Text: text})
	return nil
}

// LastEdit returns the most recent edit.
func (m *Messenger) LastEdit() (Edit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Edits) == 0 {
		return Edit{}, false
	}
	return m.Edits[len(m.Edits)-1], true
}

// SentTexts lists the texts of all sent messages in order.
func (m *Messenger) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	texts := make([]string, 0, len(m.Sent))
	for _, msg := range m.Sent {
		texts = append(texts, msg.Text)
	}
	return texts
}

var _ chat.Messenger = (*Messenger)(nil)
