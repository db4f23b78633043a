package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printrelay/internal/auth"
	"printrelay/internal/chat"
	"printrelay/internal/chat/chattest"
	"printrelay/internal/config"
	"printrelay/internal/domain"
	"printrelay/internal/metrics"
	"printrelay/internal/store"
)

const chatID int64 = -100123

var testID = domain.Identifier{Year: 2024, Month: 3, Day: 1, Channel: "G100123", MessageID: 55}

type fakePrinter struct {
	paths []string
	err   error
}

func (f *fakePrinter) Print(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type harness struct {
	dispatcher *Dispatcher
	store      *store.Submissions
	messenger  *chattest.Messenger
	printer    *fakePrinter
	auth       *auth.MemoryRepository
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	subs, err := store.NewSubmissions(filepath.Join(t.TempDir(), "AllFiles"), entry, store.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	require.NoError(t, err)

	h := &harness{
		store:     subs,
		messenger: chattest.New(),
		printer:   &fakePrinter{},
		auth:      auth.NewMemoryRepository(domain.ChannelKey(chatID)),
	}

	h.dispatcher, err = NewDispatcher(Deps{
		Auth:      h.auth,
		Store:     subs,
		Messenger: h.messenger,
		Printer:   h.printer,
		Metrics:   metrics.New(),
		Logger:    entry,
		CountMode: mode,
	})
	require.NoError(t, err)

	return h
}

func (h *harness) submit(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.Prepare(testID))
	require.NoError(t, h.store.WriteDocument(testID, []byte("%PDF-1.7")))
	_, err := h.store.Create(testID)
	require.NoError(t, err)
}

func (h *harness) press(action string) Result {
	return h.dispatcher.Handle(context.Background(), Request{
		QueryID:   "q-1",
		ChatID:    chatID,
		MessageID: 900,
		Data:      domain.CallbackData(action, testID),
	}, nil)
}

func TestPrintTwiceOffersThirdCopy(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)

	require.Equal(t, ResultDone, h.press(domain.ActionPrint))
	require.Equal(t, ResultDone, h.press(domain.ActionPrint))

	rec, err := h.store.Load(testID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TimesPrinted)
	assert.Len(t, rec.PrintedDates, 2)

	assert.Equal(t, []string{h.store.DocumentPath(testID), h.store.DocumentPath(testID)}, h.printer.paths)

	edit, ok := h.messenger.LastEdit()
	require.True(t, ok)
	assert.Equal(t, chat.TextPrinted, edit.Text)
	assert.Equal(t, chat.Sent{ChatID: chatID, MessageID: 900}, edit.Target)
	assert.Equal(t, chat.Keyboard{{
		{Text: "🖨️ Imprimir 3ª cópia", Data: "print-2024-3-1-G100123-55"},
		{Text: chat.ButtonInfo, Data: "info-2024-3-1-G100123-55"},
	}}, edit.Keyboard)

	require.Len(t, h.messenger.Answers, 2)
	assert.Equal(t, chattest.Answer{QueryID: "q-1"}, h.messenger.Answers[0])
}

func TestPrintShowsPreparingStatus(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)

	require.Equal(t, ResultDone, h.press(domain.ActionPrint))
	require.Len(t, h.messenger.Edits, 2)
	assert.Equal(t, chat.TextPreparingPrint, h.messenger.Edits[0].Text)
}

func TestPrintMissingDocumentIsNotFound(t *testing.T) {
	h := newHarness(t, "")

	require.Equal(t, ResultNotFound, h.press(domain.ActionPrint))

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, chat.TextDocumentNotFound, edit.Text)
	assert.Empty(t, h.printer.paths)

	_, err := h.store.Load(testID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPrintFailureKeepsAttemptedCount(t *testing.T) {
	h := newHarness(t, config.PrintCountAttempted)
	h.submit(t)
	h.printer.err = errors.New("lp: printer offline")

	require.Equal(t, ResultFailed, h.press(domain.ActionPrint))

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, chat.TextPrintFailed, edit.Text)

	rec, err := h.store.Load(testID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TimesPrinted)
}

func TestPrintFailureInSucceededModeDoesNotCount(t *testing.T) {
	h := newHarness(t, config.PrintCountSucceeded)
	h.submit(t)
	h.printer.err = errors.New("lp: printer offline")

	require.Equal(t, ResultFailed, h.press(domain.ActionPrint))

	rec, err := h.store.Load(testID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TimesPrinted)

	h.printer.err = nil
	require.Equal(t, ResultDone, h.press(domain.ActionPrint))

	rec, err = h.store.Load(testID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TimesPrinted)

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, "🖨️ Imprimir 2ª cópia", edit.Keyboard[0][0].Text)
}

func TestCancelBeforePrintPurges(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)

	require.Equal(t, ResultDone, h.press(domain.ActionCancel))

	_, err := os.Stat(h.store.Dir(testID))
	assert.True(t, os.IsNotExist(err))

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, chat.TextCancelPurged, edit.Text)
}

func TestCancelAfterPrintRetains(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)
	require.Equal(t, ResultDone, h.press(domain.ActionPrint))

	require.Equal(t, ResultDone, h.press(domain.ActionCancel))

	exists, err := h.store.DocumentExists(testID)
	require.NoError(t, err)
	assert.True(t, exists)

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, chat.TextCancelRetained(1), edit.Text)
}

func TestInfoSendsRecord(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)

	require.Equal(t, ResultDone, h.press(domain.ActionInfo))

	require.Len(t, h.messenger.Documents, 1)
	doc := h.messenger.Documents[0]
	assert.Equal(t, "info.yaml", doc.Filename)
	assert.Equal(t, 900, doc.ReplyTo)
	assert.Equal(t, string(doc.Body), doc.Caption)
	assert.Contains(t, doc.Caption, "FileId: 2024-3-1-G100123-55")
}

func TestInfoAfterPurgeIsNotFound(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)
	require.Equal(t, ResultDone, h.press(domain.ActionCancel))

	require.Equal(t, ResultNotFound, h.press(domain.ActionInfo))

	edit, _ := h.messenger.LastEdit()
	assert.Equal(t, chat.TextRecordNotFound, edit.Text)
	assert.Empty(t, h.messenger.Documents)
}

func TestActionsRequireAuthorizedChat(t *testing.T) {
	h := newHarness(t, "")
	h.submit(t)

	result := h.dispatcher.Handle(context.Background(), Request{
		QueryID:   "q-2",
		ChatID:    -100999,
		MessageID: 900,
		Data:      domain.CallbackData(domain.ActionCancel, testID),
	}, nil)
	require.Equal(t, ResultRejected, result)

	exists, err := h.store.DocumentExists(testID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, h.messenger.Edits)
	assert.Equal(t, []chattest.Answer{{QueryID: "q-2", Text: chat.TextUnauthorized}}, h.messenger.Answers)
}

func TestMalformedCallbackIsIgnored(t *testing.T) {
	h := newHarness(t, "")

	result := h.dispatcher.Handle(context.Background(), Request{QueryID: "q-3", ChatID: chatID, MessageID: 900, Data: "print-2024-3"}, nil)
	assert.Equal(t, ResultInvalid, result)
	assert.Empty(t, h.messenger.Edits)
	assert.Len(t, h.messenger.Answers, 1)
}

func TestCaptionIsTruncated(t *testing.T) {
	long := strings.Repeat("é", maxCaptionRunes+10)
	assert.Equal(t, maxCaptionRunes, len([]rune(caption(long))))
	assert.Equal(t, "short", caption("short"))
}

func TestNewDispatcherValidates(t *testing.T) {
	_, err := NewDispatcher(Deps{})
	assert.Error(t, err)

	_, err = NewDispatcher(Deps{
		Auth:      auth.NewMemoryRepository(),
		Store:     &store.Submissions{},
		Messenger: chattest.New(),
		Printer:   &fakePrinter{},
		CountMode: "sometimes",
	})
	assert.Error(t, err)
}
