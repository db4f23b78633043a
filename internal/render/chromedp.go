package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"printrelay/internal/logging"
)

const (
	defaultChromeTimeout = 30 * time.Second

	// A4 in inches, as Chrome expects.
	a4WidthInches  = 210 / 25.4
	a4HeightInches = 297 / 25.4

	firstPageOnly = "1"
)

// ChromeConfig configures the chromedp renderer.
type ChromeConfig struct {
	// Timeout bounds a single render.
	Timeout time.Duration
	// RemoteURL points at a running Chrome DevTools endpoint. When empty a
	// local headless Chrome is launched.
	RemoteURL string
	// NoSandbox runs the local Chrome without sandbox (root in containers).
	NoSandbox bool
	Logger    *logrus.Entry
}

// ChromeRenderer prints HTML to PDF through the Chrome DevTools Protocol.
type ChromeRenderer struct {
	timeout     time.Duration
	logger      *logrus.Entry
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer creates the browser allocator. The browser itself starts
// lazily on the first render.
func NewChromeRenderer(cfg ChromeConfig) *ChromeRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	r := &ChromeRenderer{
		timeout: cfg.Timeout,
		logger:  logger,
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// RenderHTML prints the first A4 page of html.
func (r *ChromeRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errors.New("html content is empty")
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debugf(format, args...)
		}),
	)
	defer browserCancel()

	// The browser context is rooted at the allocator, so tie it to the
	// caller's deadline explicitly.
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPageRanges(firstPageOnly).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render timed out after %v: %w", r.timeout, err)
		}
		return nil, fmt.Errorf("chromedp render: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyPDF
	}

	r.logger.WithFields(logging.Fields{
		"event":       "pdf_rendered",
		"bytes":       len(pdf),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("rendered photo page")

	return pdf, nil
}

// Close releases the browser allocator.
func (r *ChromeRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

var _ HTMLRenderer = (*ChromeRenderer)(nil)
