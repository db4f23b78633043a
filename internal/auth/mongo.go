package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"printrelay/internal/logging"
)

type chatCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// MongoRepository stores one document per authorized channel. Authorize is
// an upsert, so concurrent authorizations never lose updates.
type MongoRepository struct {
	chats  chatCollection
	logger *logrus.Entry
}

// NewMongoRepository constructs a MongoRepository for the provided collection.
func NewMongoRepository(chats chatCollection, logger *logrus.Entry) *MongoRepository {
	if logger == nil {
		logger = logging.Logger()
	}

	return &MongoRepository{
		chats:  chats,
		logger: logger,
	}
}

// IsAuthorized reports whether a document exists for channel.
func (r *MongoRepository) IsAuthorized(ctx context.Context, channel string) (bool, error) {
	if r == nil || r.chats == nil {
		return false, errors.New("authorization repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}

	count, err := r.chats.CountDocuments(ctx, bson.M{"channel": channel}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check authorization: %w", err)
	}

	return count > 0, nil
}

// Authorize upserts the channel document, keeping the first authorization
// time and refreshing last_authorized_at on every call.
func (r *MongoRepository) Authorize(ctx context.Context, channel string) error {
	if r == nil || r.chats == nil {
		return errors.New("authorization repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return errors.New("channel is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	update := bson.M{
		"$set": bson.M{"last_authorized_at": now},
		"$setOnInsert": bson.M{
			"channel":       channel,
			"authorized_at": now,
		},
	}

	result, err := r.chats.UpdateOne(ctx,
		bson.M{"channel": channel},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("authorize chat: %w", err)
	}

	if result != nil && result.UpsertedCount > 0 {
		r.logger.WithFields(logging.Fields{
			"event":   "chat_authorized",
			"channel": channel,
		}).Info("authorized chat")
		return nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "chat_reauthorized",
		"channel": channel,
	}).Debug("chat already authorized")

	return nil
}
