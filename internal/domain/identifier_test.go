package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveEncodesNegativeChat(t *testing.T) {
	at := time.Date(2024, time.March, 1, 10, 30, 0, 0, time.Local)

	id := Derive(at, -100123, 55)

	assert.Equal(t, "2024-3-1-G100123-55", id.String())
	assert.Equal(t, []string{"2024", "3", "1", "G100123", "55"}, id.Segments())
}

func TestDerivePositiveChatUnchanged(t *testing.T) {
	id := Derive(time.Date(2023, time.December, 31, 23, 59, 0, 0, time.Local), 42, 7)

	assert.Equal(t, "2023-12-31-42-7", id.String())
}

func TestIdentifierRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Time
		chatID int64
		msgID  int
	}{
		{name: "group", at: time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), chatID: -100123, msgID: 55},
		{name: "private", at: time.Date(2022, 11, 30, 0, 0, 0, 0, time.Local), chatID: 987654321, msgID: 1},
		{name: "supergroup", at: time.Date(2025, 1, 9, 0, 0, 0, 0, time.Local), chatID: -1001234567890, msgID: 100000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			id := Derive(tt.at, tt.chatID, tt.msgID)

			fromString, err := ParseIdentifier(id.String())
			require.NoError(t, err)
			assert.Equal(t, id, fromString)

			fromPath, err := FromSegments(id.Segments())
			require.NoError(t, err)
			assert.Equal(t, id, fromPath)

			chatID, err := fromPath.ChatID()
			require.NoError(t, err)
			assert.Equal(t, tt.chatID, chatID)
			assert.Equal(t, tt.at.Year(), fromPath.Year)
			assert.Equal(t, int(tt.at.Month()), fromPath.Month)
			assert.Equal(t, tt.at.Day(), fromPath.Day)
			assert.Equal(t, tt.msgID, fromPath.MessageID)
		})
	}
}

func TestParseCallback(t *testing.T) {
	action, id, err := ParseCallback("print-2024-3-1-G100123-55")
	require.NoError(t, err)

	assert.Equal(t, ActionPrint, action)
	assert.Equal(t, Identifier{Year: 2024, Month: 3, Day: 1, Channel: "G100123", MessageID: 55}, id)
	assert.Equal(t, "print-2024-3-1-G100123-55", CallbackData(action, id))
}

func TestParseCallbackRejectsMalformedPayloads(t *testing.T) {
	payloads := []string{
		"",
		"print",
		"print-2024-3-1-G100123",
		"print-2024-3-1--100123-55",
		"share-2024-3-1-G100123-55",
		"info-2024-13-1-G100123-55",
		"cancel-2024-3-1-G100123-x",
		"cancel-2024-3-1-..-55",
	}

	for _, payload := range payloads {
		_, _, err := ParseCallback(payload)
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("ParseCallback(%q) error = %v, want ErrInvalidIdentifier", payload, err)
		}
	}
}

func TestChatIDFromKeyRejectsGarbage(t *testing.T) {
	_, err := ChatIDFromKey("Gabc")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
