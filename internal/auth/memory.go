package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryRepository keeps authorized channels in process memory. It backs
// tests and ephemeral deployments.
type MemoryRepository struct {
	mu       sync.RWMutex
	channels map[string]struct{}
}

// NewMemoryRepository returns a repository pre-authorizing channels.
func NewMemoryRepository(channels ...string) *MemoryRepository {
	r := &MemoryRepository{channels: make(map[string]struct{}, len(channels))}
	for _, ch := range channels {
		r.channels[ch] = struct{}{}
	}
	return r
}

// IsAuthorized reports whether channel was authorized.
func (r *MemoryRepository) IsAuthorized(_ context.Context, channel string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.channels[channel]
	return ok, nil
}

// Authorize adds channel.
func (r *MemoryRepository) Authorize(_ context.Context, channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[channel] = struct{}{}
	return nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*FileRepository)(nil)
	_ Repository = (*MongoRepository)(nil)
)
