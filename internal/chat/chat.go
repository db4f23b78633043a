// Package chat defines the narrow messaging surface the features use to talk
// to users, independent of the chat platform client.
package chat

import (
	"context"
	"io"
)

// Button is an inline button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons.
type Keyboard [][]Button

// Message is an outbound text message.
type Message struct {
	ChatID   int64
	ReplyTo  int
	Text     string
	Keyboard Keyboard
}

// Document is an outbound file upload.
type Document struct {
	ChatID   int64
	ReplyTo  int
	Filename string
	Data     io.Reader
	Caption  string
}

// Sent identifies a delivered message.
type Sent struct {
	ChatID    int64
	MessageID int
}

// Messenger delivers messages and resolves uploaded files.
type Messenger interface {
	Send(ctx context.Context, msg Message) (Sent, error)
	Edit(ctx context.Context, target Sent, text string, keyboard Keyboard) error
	Delete(ctx context.Context, target Sent) error
	SendDocument(ctx context.Context, doc Document) (Sent, error)
	FileURL(ctx context.Context, fileID string) (string, error)
	AnswerCallback(ctx context.Context, queryID, text string) error
}
