// Package action handles the print, cancel and info buttons offered for a
// stored submission.
package action

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"printrelay/internal/auth"
	"printrelay/internal/chat"
	"printrelay/internal/config"
	"printrelay/internal/domain"
	"printrelay/internal/logging"
	"printrelay/internal/metrics"
	"printrelay/internal/printer"
	"printrelay/internal/store"
)

// Telegram rejects captions longer than this many characters.
const maxCaptionRunes = 1024

// Result is the terminal state of one action.
type Result string

const (
	ResultRejected Result = "rejected"
	ResultInvalid  Result = "invalid"
	ResultNotFound Result = "not_found"
	ResultFailed   Result = "failed"
	ResultDone     Result = "done"
)

// Request is one button press.
type Request struct {
	QueryID string
	// ChatID and MessageID locate the message carrying the buttons.
	ChatID    int64
	MessageID int
	Data      string
}

// Store is the part of the submission store actions operate on.
type Store interface {
	DocumentExists(id domain.Identifier) (bool, error)
	DocumentPath(id domain.Identifier) string
	RecordPrint(id domain.Identifier) (domain.Record, error)
	RecordCancel(id domain.Identifier) (store.CancelOutcome, error)
	Raw(id domain.Identifier) ([]byte, error)
}

// Deps bundles the collaborators of a Dispatcher.
type Deps struct {
	Auth      auth.Repository
	Store     Store
	Messenger chat.Messenger
	Printer   printer.Printer
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
	// CountMode is config.PrintCountAttempted (default) or
	// config.PrintCountSucceeded.
	CountMode string
}

// Dispatcher routes button presses to their action.
type Dispatcher struct {
	auth      auth.Repository
	store     Store
	messenger chat.Messenger
	printer   printer.Printer
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	countMode string
}

// NewDispatcher validates deps and constructs a Dispatcher.
func NewDispatcher(deps Deps) (*Dispatcher, error) {
	switch {
	case deps.Auth == nil:
		return nil, errors.New("authorization repository is required")
	case deps.Store == nil:
		return nil, errors.New("submission store is required")
	case deps.Messenger == nil:
		return nil, errors.New("messenger is required")
	case deps.Printer == nil:
		return nil, errors.New("printer is required")
	}

	mode := deps.CountMode
	switch mode {
	case "":
		mode = config.DefaultPrintCountMode
	case config.PrintCountAttempted, config.PrintCountSucceeded:
	default:
		return nil, errors.New("unknown print count mode " + mode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		auth:      deps.Auth,
		store:     deps.Store,
		messenger: deps.Messenger,
		printer:   deps.Printer,
		metrics:   deps.Metrics,
		logger:    logger,
		countMode: mode,
	}, nil
}

// Handle authorizes the chat the buttons live in and runs the action encoded
// in req.Data.
func (d *Dispatcher) Handle(ctx context.Context, req Request, logger *logrus.Entry) Result {
	if logger == nil {
		logger = d.logger
	}

	action, id, err := domain.ParseCallback(req.Data)
	if err != nil {
		logger.WithFields(logging.Fields{
			"event": "action_invalid",
			"data":  req.Data,
		}).WithError(err).Warn("ignoring malformed callback")
		d.answer(ctx, req, "", logger)
		d.metrics.Action("unknown", metrics.OutcomeRejected)
		return ResultInvalid
	}
	logger = logger.WithFields(logging.Fields{
		"action":  action,
		"file_id": id.String(),
	})

	authorized, err := d.auth.IsAuthorized(ctx, domain.ChannelKey(req.ChatID))
	if err != nil || !authorized {
		if err != nil {
			logger.WithField("event", "action_auth_error").WithError(err).Error("authorization check failed")
		} else {
			logger.WithField("event", "action_rejected").Info("action from unauthorized chat")
		}
		d.answer(ctx, req, chat.TextUnauthorized, logger)
		d.metrics.Action(action, metrics.OutcomeRejected)
		return ResultRejected
	}

	d.answer(ctx, req, "", logger)

	target := chat.Sent{ChatID: req.ChatID, MessageID: req.MessageID}

	var result Result
	switch action {
	case domain.ActionPrint:
		result = d.print(ctx, target, id, logger)
	case domain.ActionCancel:
		result = d.cancel(ctx, target, id, logger)
	case domain.ActionInfo:
		result = d.info(ctx, target, id, logger)
	}

	d.metrics.Action(action, outcome(result))
	return result
}

func (d *Dispatcher) print(ctx context.Context, target chat.Sent, id domain.Identifier, logger *logrus.Entry) Result {
	exists, err := d.store.DocumentExists(id)
	if err != nil {
		logger.WithField("event", "print_lookup_error").WithError(err).Error("failed to look up document")
		d.edit(ctx, target, chat.TextActionFailed, nil, logger)
		return ResultFailed
	}
	if !exists {
		logger.WithField("event", "print_not_found").Info("document to print is missing")
		d.edit(ctx, target, chat.TextDocumentNotFound, nil, logger)
		return ResultNotFound
	}

	d.edit(ctx, target, chat.TextPreparingPrint, nil, logger)

	var rec domain.Record
	if d.countMode == config.PrintCountAttempted {
		// The counter is not rolled back when the spooler rejects the job.
		if rec, err = d.store.RecordPrint(id); err != nil {
			logger.WithField("event", "print_record_error").WithError(err).Error("failed to record print")
			d.edit(ctx, target, chat.TextActionFailed, nil, logger)
			return ResultFailed
		}
	}

	if err := d.printer.Print(ctx, d.store.DocumentPath(id)); err != nil {
		logger.WithField("event", "print_error").WithError(err).Warn("print dispatch failed")
		d.metrics.Print(metrics.OutcomeFailed)
		d.edit(ctx, target, chat.TextPrintFailed, nil, logger)
		return ResultFailed
	}
	d.metrics.Print(metrics.OutcomeOK)

	if d.countMode == config.PrintCountSucceeded {
		if rec, err = d.store.RecordPrint(id); err != nil {
			logger.WithField("event", "print_record_error").WithError(err).Error("print spooled but recording it failed")
			d.edit(ctx, target, chat.TextActionFailed, nil, logger)
			return ResultFailed
		}
	}

	logger.WithFields(logging.Fields{
		"event":         "print_dispatched",
		"times_printed": rec.TimesPrinted,
	}).Info("document sent to printer")

	d.edit(ctx, target, chat.TextPrinted, printedKeyboard(id, rec.TimesPrinted), logger)
	return ResultDone
}

func (d *Dispatcher) cancel(ctx context.Context, target chat.Sent, id domain.Identifier, logger *logrus.Entry) Result {
	outcome, err := d.store.RecordCancel(id)
	if err != nil {
		logger.WithField("event", "cancel_error").WithError(err).Error("failed to cancel submission")
		d.edit(ctx, target, chat.TextActionFailed, nil, logger)
		return ResultFailed
	}

	logger.WithFields(logging.Fields{
		"event":         "submission_cancelled",
		"purged":        outcome.Purged,
		"times_printed": outcome.TimesPrinted,
	}).Info("cancelled submission")

	if outcome.Purged {
		d.edit(ctx, target, chat.TextCancelPurged, nil, logger)
	} else {
		d.edit(ctx, target, chat.TextCancelRetained(outcome.TimesPrinted), nil, logger)
	}
	return ResultDone
}

func (d *Dispatcher) info(ctx context.Context, target chat.Sent, id domain.Identifier, logger *logrus.Entry) Result {
	raw, err := d.store.Raw(id)
	if errors.Is(err, store.ErrNotFound) {
		logger.WithField("event", "info_not_found").Info("record is missing")
		d.edit(ctx, target, chat.TextRecordNotFound, nil, logger)
		return ResultNotFound
	}
	if err != nil {
		logger.WithField("event", "info_read_error").WithError(err).Error("failed to read record")
		d.edit(ctx, target, chat.TextActionFailed, nil, logger)
		return ResultFailed
	}

	_, err = d.messenger.SendDocument(ctx, chat.Document{
		ChatID:   target.ChatID,
		ReplyTo:  target.MessageID,
		Filename: store.RecordFile,
		Data:     bytes.NewReader(raw),
		Caption:  caption(string(raw)),
	})
	if err != nil {
		logger.WithField("event", "info_send_error").WithError(err).Warn("failed to send record")
		return ResultFailed
	}

	return ResultDone
}

func (d *Dispatcher) answer(ctx context.Context, req Request, text string, logger *logrus.Entry) {
	if req.QueryID == "" {
		return
	}
	if err := d.messenger.AnswerCallback(ctx, req.QueryID, text); err != nil {
		logger.WithField("event", "callback_answer_error").WithError(err).Debug("failed to answer callback")
	}
}

func (d *Dispatcher) edit(ctx context.Context, target chat.Sent, text string, keyboard chat.Keyboard, logger *logrus.Entry) {
	if err := d.messenger.Edit(ctx, target, text, keyboard); err != nil {
		logger.WithField("event", "action_status_error").WithError(err).Warn("failed to update action message")
	}
}

func printedKeyboard(id domain.Identifier, timesPrinted int) chat.Keyboard {
	return chat.Keyboard{{
		{Text: chat.ButtonPrintCopy(timesPrinted + 1), Data: domain.CallbackData(domain.ActionPrint, id)},
		{Text: chat.ButtonInfo, Data: domain.CallbackData(domain.ActionInfo, id)},
	}}
}

func caption(text string) string {
	if utf8.RuneCountInString(text) <= maxCaptionRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxCaptionRunes])
}

func outcome(result Result) string {
	switch result {
	case ResultDone:
		return metrics.OutcomeOK
	case ResultNotFound:
		return metrics.OutcomeNotFound
	case ResultRejected, ResultInvalid:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
