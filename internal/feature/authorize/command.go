// Package authorize implements the /autorizar command that adds a chat to the
// allow-list when given the shared password.
package authorize

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"printrelay/internal/auth"
	"printrelay/internal/chat"
	"printrelay/internal/domain"
	"printrelay/internal/logging"
)

// Command names accepted by the handler.
const (
	CommandName  = "autorizar"
	CommandAlias = "authorize"
)

// Outcome is the result of one command.
type Outcome string

const (
	OutcomeAlreadyAuthorized Outcome = "already_authorized"
	OutcomeUsage             Outcome = "usage"
	OutcomeAuthorized        Outcome = "authorized"
	OutcomeWrongPassword     Outcome = "wrong_password"
	OutcomeFailed            Outcome = "failed"
)

// Request is one command message.
type Request struct {
	ChatID    int64
	MessageID int
	Text      string
}

// Handler checks the password and records the chat.
type Handler struct {
	auth      auth.Repository
	messenger chat.Messenger
	password  []byte
	logger    *logrus.Entry
}

// NewHandler constructs a Handler accepting password.
func NewHandler(repo auth.Repository, messenger chat.Messenger, password string, logger *logrus.Entry) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("authorization repository is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if strings.TrimSpace(password) == "" {
		return nil, errors.New("authorization password is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		auth:      repo,
		messenger: messenger,
		password:  []byte(password),
		logger:    logger,
	}, nil
}

// Matches reports whether text invokes the command, with or without a bot
// mention suffix.
func Matches(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	name, _, _ := strings.Cut(fields[0], "@")
	switch strings.ToLower(name) {
	case "/" + CommandName, "/" + CommandAlias:
		return true
	default:
		return false
	}
}

// Handle runs the command.
func (h *Handler) Handle(ctx context.Context, req Request, logger *logrus.Entry) Outcome {
	if logger == nil {
		logger = h.logger
	}

	outcome := h.run(ctx, req, logger)

	logger.WithFields(logging.Fields{
		"event":   "authorize_command",
		"outcome": string(outcome),
	}).Info("handled authorization command")

	return outcome
}

func (h *Handler) run(ctx context.Context, req Request, logger *logrus.Entry) Outcome {
	channel := domain.ChannelKey(req.ChatID)

	authorized, err := h.auth.IsAuthorized(ctx, channel)
	if err != nil {
		logger.WithField("event", "authorize_check_error").WithError(err).Error("authorization check failed")
		h.reply(ctx, req, chat.TextAuthorizeFailed, logger)
		return OutcomeFailed
	}
	if authorized {
		h.reply(ctx, req, chat.TextAlreadyAuthorized, logger)
		return OutcomeAlreadyAuthorized
	}

	fields := strings.Fields(req.Text)
	if len(fields) < 2 {
		h.reply(ctx, req, chat.TextAuthorizeUsage, logger)
		return OutcomeUsage
	}

	if subtle.ConstantTimeCompare([]byte(fields[1]), h.password) != 1 {
		h.reply(ctx, req, chat.TextWrongPassword, logger)
		return OutcomeWrongPassword
	}

	if err := h.auth.Authorize(ctx, channel); err != nil {
		logger.WithField("event", "authorize_store_error").WithError(err).Error("failed to store authorization")
		h.reply(ctx, req, chat.TextAuthorizeFailed, logger)
		return OutcomeFailed
	}

	h.reply(ctx, req, chat.TextAuthorized, logger)
	return OutcomeAuthorized
}

func (h *Handler) reply(ctx context.Context, req Request, text string, logger *logrus.Entry) {
	_, err := h.messenger.Send(ctx, chat.Message{
		ChatID:  req.ChatID,
		ReplyTo: req.MessageID,
		Text:    text,
	})
	if err != nil {
		logger.WithField("event", "authorize_reply_error").WithError(err).Warn("failed to reply")
	}
}
