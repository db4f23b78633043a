// Package printer hands stored documents to the local print spooler.
package printer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/phin1x/go-ipp"
	"github.com/sirupsen/logrus"

	"printrelay/internal/config"
	"printrelay/internal/logging"
)

// ErrSpoolRejected reports a job the spooler did not accept.
var ErrSpoolRejected = errors.New("print job rejected")

// Printer submits a document file for printing.
type Printer interface {
	Print(ctx context.Context, path string) error
}

// New selects the print driver configured in cfg.
func New(cfg config.Config, logger *logrus.Entry) (Printer, error) {
	switch cfg.PrintDriver {
	case config.PrintDriverCommand, "":
		return NewCommandPrinter(cfg.PrintCommand, cfg.PrinterName, logger), nil
	case config.PrintDriverIPP:
		client := ipp.NewIPPClient(cfg.IPPHost, cfg.IPPPort, "", "", false)
		return NewIPPPrinter(client, cfg.PrinterName, logger), nil
	default:
		return nil, fmt.Errorf("unknown print driver %q", cfg.PrintDriver)
	}
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandPrinter shells out to an lp compatible command.
type CommandPrinter struct {
	command string
	printer string
	logger  *logrus.Entry
	run     runFunc
}

// NewCommandPrinter constructs a CommandPrinter. An empty printer name uses
// the spooler default destination.
func NewCommandPrinter(command, printerName string, logger *logrus.Entry) *CommandPrinter {
	if strings.TrimSpace(command) == "" {
		command = config.DefaultPrintCommand
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &CommandPrinter{
		command: command,
		printer: strings.TrimSpace(printerName),
		logger:  logger,
		run:     runCommand,
	}
}

func (p *CommandPrinter) args(path string) []string {
	if p.printer == "" {
		return []string{path}
	}
	return []string{"-d", p.printer, path}
}

// Print runs the print command for path.
func (p *CommandPrinter) Print(ctx context.Context, path string) error {
	if err := checkFile(path); err != nil {
		return err
	}

	out, err := p.run(ctx, p.command, p.args(path)...)
	output := strings.TrimSpace(string(out))
	if err != nil {
		p.logger.WithFields(logging.Fields{
			"event":   "print_failed",
			"command": p.command,
			"path":    path,
			"output":  output,
		}).WithError(err).Warn("print command failed")
		return fmt.Errorf("%w: %s: %v", ErrSpoolRejected, p.command, err)
	}

	p.logger.WithFields(logging.Fields{
		"event":   "print_spooled",
		"command": p.command,
		"path":    path,
		"output":  output,
	}).Info("document sent to spooler")
	return nil
}

type ippClient interface {
	PrintFile(filePath, printer string, jobAttributes map[string]interface{}) (int, error)
}

// IPPPrinter submits jobs to a CUPS/IPP server.
type IPPPrinter struct {
	client  ippClient
	printer string
	logger  *logrus.Entry
}

// NewIPPPrinter constructs an IPPPrinter.
func NewIPPPrinter(client ippClient, printerName string, logger *logrus.Entry) *IPPPrinter {
	if logger == nil {
		logger = logging.Logger()
	}
	return &IPPPrinter{client: client, printer: strings.TrimSpace(printerName), logger: logger}
}

// Print submits path as a single job named after the document's identifier
// directory.
func (p *IPPPrinter) Print(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkFile(path); err != nil {
		return err
	}

	attrs := map[string]interface{}{
		"job-name": jobName(path),
	}

	jobID, err := p.client.PrintFile(path, p.printer, attrs)
	if err != nil {
		p.logger.WithFields(logging.Fields{
			"event":   "print_failed",
			"printer": p.printer,
			"path":    path,
		}).WithError(err).Warn("ipp print failed")
		return fmt.Errorf("%w: ipp: %v", ErrSpoolRejected, err)
	}

	p.logger.WithFields(logging.Fields{
		"event":   "print_spooled",
		"printer": p.printer,
		"path":    path,
		"job_id":  jobID,
	}).Info("document sent to spooler")
	return nil
}

func jobName(path string) string {
	dir := filepath.Dir(path)
	parts := strings.Split(filepath.ToSlash(dir), "/")
	if len(parts) >= 5 {
		return strings.Join(parts[len(parts)-5:], "-")
	}
	return filepath.Base(path)
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("print source: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("print source %s is not a printable file", path)
	}
	return nil
}

var (
	_ Printer = (*CommandPrinter)(nil)
	_ Printer = (*IPPPrinter)(nil)
)
