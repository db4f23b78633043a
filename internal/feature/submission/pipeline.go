// Package submission accepts photos and PDFs from authorized chats, stores
// them as printable documents and offers the print actions.
package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"printrelay/internal/auth"
	"printrelay/internal/chat"
	"printrelay/internal/domain"
	"printrelay/internal/logging"
	"printrelay/internal/metrics"
	"printrelay/internal/render"
	"printrelay/internal/store"
)

// Kind tells how a submission is turned into a document.
type Kind string

const (
	// KindPhoto is rendered onto an A4 page.
	KindPhoto Kind = "photo"
	// KindPDF is stored as received.
	KindPDF Kind = "pdf"
)

// State is the terminal state of one submission.
type State string

const (
	StateRejected      State = "rejected"
	StateAcquireFailed State = "acquire_failed"
	StatePersistFailed State = "persist_failed"
	StateOfferFailed   State = "offer_failed"
	StateDone          State = "done"
)

// Request is one inbound photo or PDF.
type Request struct {
	ChatID    int64
	MessageID int
	FileID    string
	Kind      Kind
}

// Store is the part of the submission store the pipeline writes to.
type Store interface {
	Prepare(id domain.Identifier) error
	Discard(id domain.Identifier) error
	WriteDocument(id domain.Identifier, data []byte) error
	Create(id domain.Identifier) (domain.Record, error)
}

// PhotoRenderer renders a photo page into PDF bytes.
type PhotoRenderer interface {
	RenderPhoto(ctx context.Context, page render.PhotoPage) ([]byte, error)
}

// Fetcher downloads a file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Deps bundles the collaborators of a Pipeline.
type Deps struct {
	Auth      auth.Repository
	Store     Store
	Messenger chat.Messenger
	Renderer  PhotoRenderer
	Fetcher   Fetcher
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
}

// Pipeline runs submissions from receipt to the print prompt.
type Pipeline struct {
	auth      auth.Repository
	store     Store
	messenger chat.Messenger
	renderer  PhotoRenderer
	fetcher   Fetcher
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used to derive identifiers.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline validates deps and constructs a Pipeline.
func NewPipeline(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Auth == nil:
		return nil, errors.New("authorization repository is required")
	case deps.Store == nil:
		return nil, errors.New("submission store is required")
	case deps.Messenger == nil:
		return nil, errors.New("messenger is required")
	case deps.Renderer == nil:
		return nil, errors.New("photo renderer is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	p := &Pipeline{
		auth:      deps.Auth,
		store:     deps.Store,
		messenger: deps.Messenger,
		renderer:  deps.Renderer,
		fetcher:   deps.Fetcher,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Handle runs req through the pipeline. Failures are reported to the user
// and logged; the returned State names where the submission stopped.
func (p *Pipeline) Handle(ctx context.Context, req Request, logger *logrus.Entry) State {
	if logger == nil {
		logger = p.logger
	}
	logger = logger.WithField("kind", string(req.Kind))

	state := p.run(ctx, req, logger)

	outcome := metrics.OutcomeOK
	switch state {
	case StateRejected:
		outcome = metrics.OutcomeRejected
	case StateDone:
	default:
		outcome = metrics.OutcomeFailed
	}
	p.metrics.Submission(string(req.Kind), outcome)

	return state
}

func (p *Pipeline) run(ctx context.Context, req Request, logger *logrus.Entry) State {
	channel := domain.ChannelKey(req.ChatID)
	authorized, err := p.auth.IsAuthorized(ctx, channel)
	if err != nil {
		logger.WithField("event", "submission_auth_error").WithError(err).Error("authorization check failed")
		p.reply(ctx, req, chat.TextActionFailed, logger)
		return StateRejected
	}
	if !authorized {
		logger.WithField("event", "submission_rejected").Info("submission from unauthorized chat")
		p.reply(ctx, req, chat.TextUnauthorized, logger)
		return StateRejected
	}

	ack := p.reply(ctx, req, receivedText(req.Kind), logger)

	now := p.now()
	id := domain.Derive(now, req.ChatID, req.MessageID)
	logger = logger.WithField("file_id", id.String())

	if err := p.store.Prepare(id); err != nil {
		logger.WithField("event", "submission_prepare_error").WithError(err).Error("failed to create submission directory")
		p.update(ctx, ack, chat.TextPersistFailed, logger)
		return StatePersistFailed
	}

	data, failText, err := p.acquire(ctx, req, id, now, ack, logger)
	if err != nil {
		logger.WithField("event", "submission_acquire_error").WithError(err).Warn("failed to acquire document")
		p.update(ctx, ack, failText, logger)
		if err := p.store.Discard(id); err != nil {
			logger.WithField("event", "submission_discard_error").WithError(err).Warn("failed to discard submission directory")
		}
		return StateAcquireFailed
	}

	if err := p.store.WriteDocument(id, data); err != nil {
		logger.WithField("event", "submission_write_error").WithError(err).Error("failed to store document")
		p.update(ctx, ack, chat.TextPersistFailed, logger)
		if !errors.Is(err, store.ErrDocumentExists) {
			if err := p.store.Discard(id); err != nil {
				logger.WithField("event", "submission_discard_error").WithError(err).Warn("failed to discard submission directory")
			}
		}
		return StatePersistFailed
	}
	if _, err := p.store.Create(id); err != nil {
		logger.WithField("event", "submission_record_error").WithError(err).Error("failed to create submission record")
		p.update(ctx, ack, chat.TextPersistFailed, logger)
		return StatePersistFailed
	}

	sent, err := p.messenger.SendDocument(ctx, chat.Document{
		ChatID:   req.ChatID,
		ReplyTo:  req.MessageID,
		Filename: store.DocumentFile,
		Data:     bytes.NewReader(data),
		Caption:  chat.DocumentCaption(id.String()),
	})
	if err != nil {
		logger.WithField("event", "submission_send_error").WithError(err).Warn("failed to send document back")
		p.update(ctx, ack, chat.TextSendFailed, logger)
		return StateOfferFailed
	}

	if ack.MessageID != 0 {
		if err := p.messenger.Delete(ctx, ack); err != nil {
			logger.WithField("event", "submission_ack_delete_error").WithError(err).Debug("failed to delete acknowledgment")
		}
	}

	_, err = p.messenger.Send(ctx, chat.Message{
		ChatID:   sent.ChatID,
		ReplyTo:  sent.MessageID,
		Text:     chat.TextPrintPrompt,
		Keyboard: offerKeyboard(id),
	})
	if err != nil {
		logger.WithField("event", "submission_offer_error").WithError(err).Warn("failed to offer print actions")
		return StateOfferFailed
	}

	logger.WithFields(logging.Fields{
		"event": "submission_stored",
		"bytes": len(data),
	}).Info("stored submission")

	return StateDone
}

func (p *Pipeline) acquire(ctx context.Context, req Request, id domain.Identifier, now time.Time, ack chat.Sent, logger *logrus.Entry) ([]byte, string, error) {
	switch req.Kind {
	case KindPhoto:
		p.update(ctx, ack, chat.TextRendering, logger)

		image, err := p.download(ctx, req.FileID)
		if err != nil {
			return nil, chat.TextRenderFailed, err
		}

		start := time.Now()
		pdf, err := p.renderer.RenderPhoto(ctx, render.PhotoPage{
			Image:   image,
			Caption: photoCaption(now, id),
		})
		p.metrics.ObserveRender(time.Since(start))
		if err != nil {
			return nil, chat.TextRenderFailed, err
		}
		if len(pdf) == 0 {
			return nil, chat.TextRenderFailed, store.ErrEmptyDocument
		}
		return pdf, "", nil

	case KindPDF:
		p.update(ctx, ack, chat.TextSaving, logger)

		pdf, err := p.download(ctx, req.FileID)
		if err != nil {
			return nil, chat.TextDownloadFail, err
		}
		return pdf, "", nil

	default:
		return nil, chat.TextPersistFailed, fmt.Errorf("unsupported submission kind %q", req.Kind)
	}
}

func (p *Pipeline) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := p.messenger.FileURL(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, store.ErrEmptyDocument
	}
	return data, nil
}

func (p *Pipeline) reply(ctx context.Context, req Request, text string, logger *logrus.Entry) chat.Sent {
	sent, err := p.messenger.Send(ctx, chat.Message{
		ChatID:  req.ChatID,
		ReplyTo: req.MessageID,
		Text:    text,
	})
	if err != nil {
		logger.WithField("event", "submission_reply_error").WithError(err).Warn("failed to reply")
		return chat.Sent{}
	}
	return sent
}

// update rewrites the acknowledgment; skipped when it was never delivered.
func (p *Pipeline) update(ctx context.Context, ack chat.Sent, text string, logger *logrus.Entry) {
	if ack.MessageID == 0 {
		return
	}
	if err := p.messenger.Edit(ctx, ack, text, nil); err != nil {
		logger.WithField("event", "submission_status_error").WithError(err).Debug("failed to update status message")
	}
}

func receivedText(kind Kind) string {
	if kind == KindPDF {
		return chat.TextPDFReceived
	}
	return chat.TextPhotoReceived
}

func photoCaption(at time.Time, id domain.Identifier) string {
	return fmt.Sprintf("(%s) --- (ID: %s)", domain.FormatDate(at), id.String())
}

func offerKeyboard(id domain.Identifier) chat.Keyboard {
	return chat.Keyboard{{
		{Text: chat.ButtonPrint, Data: domain.CallbackData(domain.ActionPrint, id)},
		{Text: chat.ButtonCancel, Data: domain.CallbackData(domain.ActionCancel, id)},
	}}
}
