package telegram

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"printrelay/internal/feature/action"
	"printrelay/internal/feature/authorize"
	"printrelay/internal/feature/submission"
	"printrelay/internal/logging"
)

// Accepted document MIME types.
const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimePDF  = "application/pdf"
)

// SubmissionHandler runs the submission pipeline.
type SubmissionHandler interface {
	Handle(ctx context.Context, req submission.Request, logger *logrus.Entry) submission.State
}

// ActionHandler runs button actions.
type ActionHandler interface {
	Handle(ctx context.Context, req action.Request, logger *logrus.Entry) action.Result
}

// CommandHandler runs the authorization command.
type CommandHandler interface {
	Handle(ctx context.Context, req authorize.Request, logger *logrus.Entry) authorize.Outcome
}

// Router dispatches updates to the feature handlers.
type Router struct {
	submissions SubmissionHandler
	actions     ActionHandler
	authorize   CommandHandler
}

// NewRouter constructs a Router. Nil handlers disable their route.
func NewRouter(submissions SubmissionHandler, actions ActionHandler, authorize CommandHandler) *Router {
	return &Router{
		submissions: submissions,
		actions:     actions,
		authorize:   authorize,
	}
}

type routeKind int

const (
	routeIgnore routeKind = iota
	routeSubmission
	routeAction
	routeAuthorize
)

type route struct {
	kind       routeKind
	submission submission.Request
	action     action.Request
	authorize  authorize.Request
}

// Route handles one update. A panic in a handler is logged and swallowed so
// the polling loop keeps running.
func (r *Router) Route(ctx context.Context, update *models.Update, logger *logrus.Entry) {
	if logger == nil {
		logger = logging.Logger()
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.WithFields(logging.Fields{
				"event": "telegram_handler_panic",
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			}).Error("recovered from handler panic")
		}
	}()

	rt := classify(update)
	switch rt.kind {
	case routeSubmission:
		if r.submissions == nil {
			return
		}
		state := r.submissions.Handle(ctx, rt.submission, logger)
		logger.WithFields(logging.Fields{
			"event": "submission_finished",
			"state": string(state),
		}).Debug("submission finished")
	case routeAction:
		if r.actions == nil {
			return
		}
		result := r.actions.Handle(ctx, rt.action, logger)
		logger.WithFields(logging.Fields{
			"event":  "action_finished",
			"result": string(result),
		}).Debug("action finished")
	case routeAuthorize:
		if r.authorize == nil {
			return
		}
		r.authorize.Handle(ctx, rt.authorize, logger)
	default:
		logger.WithField("event", "telegram_update_ignored").Debug("no route for update")
	}
}

func classify(update *models.Update) route {
	if update == nil {
		return route{}
	}

	if cq := update.CallbackQuery; cq != nil {
		return route{
			kind: routeAction,
			action: action.Request{
				QueryID:   cq.ID,
				ChatID:    messageChatID(cq.Message),
				MessageID: messageID(cq.Message),
				Data:      cq.Data,
			},
		}
	}

	msg := update.Message
	if msg == nil {
		return route{}
	}

	if authorize.Matches(msg.Text) {
		return route{
			kind: routeAuthorize,
			authorize: authorize.Request{
				ChatID:    msg.Chat.ID,
				MessageID: msg.ID,
				Text:      msg.Text,
			},
		}
	}

	req := submission.Request{ChatID: msg.Chat.ID, MessageID: msg.ID}

	switch {
	case len(msg.Photo) > 0:
		// Sizes are ordered from smallest to largest.
		req.Kind = submission.KindPhoto
		req.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil:
		switch msg.Document.MimeType {
		case mimePNG, mimeJPEG:
			req.Kind = submission.KindPhoto
		case mimePDF:
			req.Kind = submission.KindPDF
		default:
			return route{}
		}
		req.FileID = msg.Document.FileID
	default:
		return route{}
	}

	return route{kind: routeSubmission, submission: req}
}
