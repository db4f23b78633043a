package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"printrelay/internal/domain"
	"printrelay/internal/logging"
)

// File names inside a submission directory.
const (
	DocumentFile = "print.pdf"
	RecordFile   = "info.yaml"

	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrNotFound reports a missing submission record or document.
	ErrNotFound = errors.New("submission not found")
	// ErrDocumentExists reports an attempt to overwrite a stored document.
	ErrDocumentExists = errors.New("document already stored")
	// ErrEmptyDocument reports an acquisition that produced no bytes.
	ErrEmptyDocument = errors.New("document is empty")
)

// CancelOutcome describes what a cancel did to a submission.
type CancelOutcome struct {
	Purged       bool
	TimesPrinted int
}

// Submissions persists documents and their records below a storage root
// using the year/month/day/channel/message layout.
//
// Reads and writes are unsynchronized read-modify-write cycles: two
// concurrent RecordPrint calls for the same identifier may lose an
// increment. Records are replaced atomically, so readers never observe a
// partially written file.
type Submissions struct {
	root   string
	now    func() time.Time
	logger *logrus.Entry
}

// Option customizes Submissions.
type Option func(*Submissions)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Submissions) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSubmissions constructs a store rooted at root.
func NewSubmissions(root string, logger *logrus.Entry, opts ...Option) (*Submissions, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	s := &Submissions{
		root:   root,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Root returns the storage root.
func (s *Submissions) Root() string {
	return s.root
}

// Ping verifies the storage root is writable.
func (s *Submissions) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	check, err := os.CreateTemp(s.root, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	name := check.Name()
	if err := check.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close storage check file: %w", err)
	}

	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove storage check file: %w", err)
	}
	return nil
}

// Dir returns the submission directory of id.
func (s *Submissions) Dir(id domain.Identifier) string {
	return filepath.Join(append([]string{s.root}, id.Segments()...)...)
}

// DocumentPath returns the stored document path of id.
func (s *Submissions) DocumentPath(id domain.Identifier) string {
	return filepath.Join(s.Dir(id), DocumentFile)
}

// RecordPath returns the record path of id.
func (s *Submissions) RecordPath(id domain.Identifier) string {
	return filepath.Join(s.Dir(id), RecordFile)
}

// Prepare creates the submission directory.
func (s *Submissions) Prepare(id domain.Identifier) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir(id), dirPerm); err != nil {
		return fmt.Errorf("create submission dir: %w", err)
	}
	return nil
}

// Discard removes a submission directory that never received a document.
// Directories holding a document are left alone.
func (s *Submissions) Discard(id domain.Identifier) error {
	exists, err := s.DocumentExists(id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("discard submission dir: %w", err)
	}
	return nil
}

// WriteDocument stores the document bytes. An existing document is never
// overwritten.
func (s *Submissions) WriteDocument(id domain.Identifier, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyDocument
	}

	path := s.DocumentPath(id)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrDocumentExists
		}
		return fmt.Errorf("create document: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write document: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close document: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "document_stored",
		"file_id": id.String(),
		"bytes":   len(data),
	}).Debug("stored submission document")

	return nil
}

// DocumentExists reports whether the stored document of id is present.
func (s *Submissions) DocumentExists(id domain.Identifier) (bool, error) {
	_, err := os.Stat(s.DocumentPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat document: %w", err)
}

// OpenDocument opens the stored document for reading.
func (s *Submissions) OpenDocument(id domain.Identifier) (io.ReadCloser, error) {
	file, err := os.Open(s.DocumentPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	return file, nil
}

// Create writes a new never-printed record for id.
func (s *Submissions) Create(id domain.Identifier) (domain.Record, error) {
	rec := domain.NewRecord(id, s.now())
	if err := s.save(id, rec); err != nil {
		return domain.Record{}, err
	}

	s.logger.WithFields(logging.Fields{
		"event":   "record_created",
		"file_id": rec.FileID,
	}).Debug("created submission record")

	return rec, nil
}

// Load reads the record of id. A missing record yields ErrNotFound.
func (s *Submissions) Load(id domain.Identifier) (domain.Record, error) {
	data, err := s.Raw(id)
	if err != nil {
		return domain.Record{}, err
	}

	rec, err := domain.UnmarshalRecord(data)
	if err != nil {
		return domain.Record{}, fmt.Errorf("load %s: %w", id, err)
	}

	return rec, nil
}

// Raw returns the record file content of id.
func (s *Submissions) Raw(id domain.Identifier) ([]byte, error) {
	data, err := os.ReadFile(s.RecordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// RecordPrint adds one print to the record of id, synthesizing a fresh
// record when none exists.
func (s *Submissions) RecordPrint(id domain.Identifier) (domain.Record, error) {
	now := s.now()

	rec, err := s.Load(id)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = domain.NewRecord(id, now)
	case err != nil:
		return domain.Record{}, err
	}
	if rec.FileID == "" {
		rec.FileID = id.String()
	}

	rec.MarkPrinted(now)

	if err := s.save(id, rec); err != nil {
		return domain.Record{}, err
	}

	s.logger.WithFields(logging.Fields{
		"event":         "record_printed",
		"file_id":       rec.FileID,
		"times_printed": rec.TimesPrinted,
	}).Info("recorded print")

	return rec, nil
}

// RecordCancel purges the submission when it was never printed. Printed
// submissions are left untouched.
func (s *Submissions) RecordCancel(id domain.Identifier) (CancelOutcome, error) {
	rec, err := s.Load(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return CancelOutcome{}, err
	}

	if rec.Printed() {
		return CancelOutcome{TimesPrinted: rec.TimesPrinted}, nil
	}

	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return CancelOutcome{}, fmt.Errorf("purge submission: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "submission_purged",
		"file_id": id.String(),
	}).Info("purged unprinted submission")

	return CancelOutcome{Purged: true}, nil
}

func (s *Submissions) save(id domain.Identifier, rec domain.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	dir := s.Dir(id)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create submission dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, RecordFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod record: %w", err)
	}
	if err := os.Rename(tmpName, s.RecordPath(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace record: %w", err)
	}

	return nil
}
