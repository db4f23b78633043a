package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"printrelay/internal/logging"
)

// FileRepository stores authorized channels as a JSON array of strings.
//
// Authorize reads the whole list, appends and writes it back without
// locking: two concurrent authorizations can lose one of the updates. This
// is accepted for human-paced /autorizar usage.
type FileRepository struct {
	path   string
	logger *logrus.Entry
}

// NewFileRepository constructs a FileRepository backed by path. The file is
// created empty on first read when absent.
func NewFileRepository(path string, logger *logrus.Entry) (*FileRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorization file path is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &FileRepository{path: path, logger: logger}, nil
}

// IsAuthorized reports whether channel is in the list.
func (r *FileRepository) IsAuthorized(_ context.Context, channel string) (bool, error) {
	channels, err := r.read()
	if err != nil {
		return false, err
	}

	authorized := slices.Contains(channels, channel)

	r.logger.WithFields(logging.Fields{
		"event":      "auth_check",
		"channel":    channel,
		"authorized": authorized,
	}).Debug("checked chat authorization")

	return authorized, nil
}

// Authorize adds channel to the list. Already authorized channels are not
// duplicated.
func (r *FileRepository) Authorize(_ context.Context, channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("channel is required")
	}

	channels, err := r.read()
	if err != nil {
		return err
	}
	if slices.Contains(channels, channel) {
		return nil
	}

	if err := r.write(append(channels, channel)); err != nil {
		return err
	}

	r.logger.WithFields(logging.Fields{
		"event":   "chat_authorized",
		"channel": channel,
	}).Info("authorized chat")

	return nil
}

func (r *FileRepository) read() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := r.write([]string{}); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read authorization file: %w", err)
	}

	var channels []string
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("decode authorization file: %w", err)
	}

	return channels, nil
}

func (r *FileRepository) write(channels []string) error {
	data, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("encode authorization file: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create authorization dir: %w", err)
		}
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write authorization file: %w", err)
	}

	return nil
}
