package printer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printrelay/internal/config"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "2024", "3", "1", "G100123", "55")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "print.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))
	return path
}

func testLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestCommandPrinterArgs(t *testing.T) {
	p := NewCommandPrinter("", "", nil)
	assert.Equal(t, "lp", p.command)
	assert.Equal(t, []string{"/tmp/print.pdf"}, p.args("/tmp/print.pdf"))

	p = NewCommandPrinter("lp", "office", nil)
	assert.Equal(t, []string{"-d", "office", "/tmp/print.pdf"}, p.args("/tmp/print.pdf"))
}

func TestCommandPrinterRunsCommand(t *testing.T) {
	path := writeDoc(t)
	logger, hook := testLogger()

	var gotName string
	var gotArgs []string
	p := NewCommandPrinter("lp", "office", logger)
	p.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("request id is office-7 (1 file(s))"), nil
	}

	require.NoError(t, p.Print(context.Background(), path))
	assert.Equal(t, "lp", gotName)
	assert.Equal(t, []string{"-d", "office", path}, gotArgs)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "print_spooled", hook.LastEntry().Data["event"])
}

func TestCommandPrinterReportsFailure(t *testing.T) {
	path := writeDoc(t)
	logger, hook := testLogger()

	p := NewCommandPrinter("lp", "", logger)
	p.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("lp: No default destination."), errors.New("exit status 1")
	}

	err := p.Print(context.Background(), path)
	require.ErrorIs(t, err, ErrSpoolRejected)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "lp: No default destination.", hook.LastEntry().Data["output"])
}

func TestCommandPrinterRejectsMissingFile(t *testing.T) {
	called := false
	p := NewCommandPrinter("lp", "", nil)
	p.run = func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	}

	err := p.Print(context.Background(), filepath.Join(t.TempDir(), "print.pdf"))
	require.Error(t, err)
	assert.False(t, called)
}

type fakeIPP struct {
	path    string
	printer string
	attrs   map[string]interface{}
	err     error
}

func (f *fakeIPP) PrintFile(filePath, printer string, attrs map[string]interface{}) (int, error) {
	f.path, f.printer, f.attrs = filePath, printer, attrs
	if f.err != nil {
		return 0, f.err
	}
	return 42, nil
}

func TestIPPPrinterSubmitsJob(t *testing.T) {
	path := writeDoc(t)
	client := &fakeIPP{}
	logger, hook := testLogger()

	require.NoError(t, NewIPPPrinter(client, "office", logger).Print(context.Background(), path))
	assert.Equal(t, path, client.path)
	assert.Equal(t, "office", client.printer)
	assert.Equal(t, "2024-3-1-G100123-55", client.attrs["job-name"])
	assert.Equal(t, 42, hook.LastEntry().Data["job_id"])
}

func TestIPPPrinterReportsFailure(t *testing.T) {
	path := writeDoc(t)
	client := &fakeIPP{err: errors.New("printer stopped")}
	logger, _ := testLogger()

	err := NewIPPPrinter(client, "office", logger).Print(context.Background(), path)
	assert.ErrorIs(t, err, ErrSpoolRejected)
}

func TestIPPPrinterHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeIPP{}
	err := NewIPPPrinter(client, "office", nil).Print(ctx, writeDoc(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.path)
}

func TestNewSelectsDriver(t *testing.T) {
	p, err := New(config.Config{PrintDriver: config.PrintDriverCommand, PrintCommand: "lp"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CommandPrinter{}, p)

	p, err = New(config.Config{PrintDriver: config.PrintDriverIPP, IPPHost: "localhost", IPPPort: 631, PrinterName: "office"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &IPPPrinter{}, p)

	_, err = New(config.Config{PrintDriver: "fax"}, nil)
	assert.Error(t, err)
}
