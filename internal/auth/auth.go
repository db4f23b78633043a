// Package auth keeps the allow-list of chats permitted to submit and act on
// print requests.
package auth

import "context"

// Repository checks and grants chat authorization. Channel keys are the
// encoded chat ids produced by domain.ChannelKey.
type Repository interface {
	IsAuthorized(ctx context.Context, channel string) (bool, error)
	Authorize(ctx context.Context, channel string) error
}
