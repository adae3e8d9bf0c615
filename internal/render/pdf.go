// Package render converts assembled HTML into a paginated PDF using a
// headless Chrome instance. Requires Chrome/Chromium on the host.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultTimeout bounds one full render, including browser startup.
const DefaultTimeout = 2 * time.Minute

// Renderer converts an HTML document into PDF bytes. Rendering failure is
// fatal for the request; no partial PDF is ever produced.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromeRenderer implements Renderer with chromedp.
type ChromeRenderer struct {
	Timeout time.Duration
}

// NewChromeRenderer creates a renderer with the default timeout.
func NewChromeRenderer() *ChromeRenderer {
	return &ChromeRenderer{Timeout: DefaultTimeout}
}

// Render loads the document into a fresh headless browser context and
// prints it. The print honors the document's @page CSS so the assembler's
// pagination rules carry through.
func (r *ChromeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

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
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("PDF rendering failed: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("PDF rendering produced no output")
	}
	return pdf, nil
}
