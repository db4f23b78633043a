package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"printrelay/internal/logging"
)

// Sweeper enforces a rolling retention window by removing whole day
// directories (root/year/month/day) older than the configured number of days.
type Sweeper struct {
	root   string
	days   int
	now    func() time.Time
	logger *logrus.Entry
	notify func(removed int)
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepObserver calls fn with the number of day directories removed by
// each sweep that removed any.
func WithSweepObserver(fn func(removed int)) SweeperOption {
	return func(s *Sweeper) {
		s.notify = fn
	}
}

// NewSweeper constructs a Sweeper. days must be positive.
func NewSweeper(root string, days int, logger *logrus.Entry, opts ...SweeperOption) (*Sweeper, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	if logger == nil {
		logger = logging.Logger()
	}

	s := &Sweeper{
		root:   root,
		days:   days,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		removed, err := s.Sweep()
		if err != nil {
			s.logger.WithField("event", "retention_error").WithError(err).Warn("retention sweep failed")
		}
		if removed > 0 && s.notify != nil {
			s.notify(removed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep removes expired day directories and returns how many were removed.
// Directories whose names are not numeric dates are ignored.
func (s *Sweeper) Sweep() (int, error) {
	now := s.now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -s.days)

	removed := 0
	years, err := numericDirs(s.root)
	if err != nil {
		return 0, err
	}

	for _, year := range years {
		yearDir := filepath.Join(s.root, strconv.Itoa(year))
		months, err := numericDirs(yearDir)
		if err != nil {
			return removed, err
		}

		for _, month := range months {
			monthDir := filepath.Join(yearDir, strconv.Itoa(month))
			days, err := numericDirs(monthDir)
			if err != nil {
				return removed, err
			}

			for _, day := range days {
				date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
				if !date.Before(cutoff) {
					continue
				}

				dayDir := filepath.Join(monthDir, strconv.Itoa(day))
				if err := os.RemoveAll(dayDir); err != nil {
					return removed, fmt.Errorf("remove %s: %w", dayDir, err)
				}
				removed++

				s.logger.WithFields(logging.Fields{
					"event": "retention_purge",
					"dir":   dayDir,
				}).Info("purged expired submissions")
			}

			pruneEmpty(monthDir)
		}

		pruneEmpty(yearDir)
	}

	return removed, nil
}

func numericDirs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	out := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, n)
	}

	return out, nil
}

func pruneEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
}
