package report

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var ErrPDFUnavailable = errors.New("pdf rendering unavailable")

// PDFRenderer turns a rendered HTML page into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

// PageLayout sizes the printed page. Dimensions are in inches.
type PageLayout struct {
	Width, Height           float64
	MarginTop, MarginBottom float64
	MarginLeft, MarginRight float64
	Footer                  bool
}

// A4Layout is the default: A4 portrait with a page-number footer.
var A4Layout = PageLayout{
	Width: 8.27, Height: 11.69,
	MarginTop: 0.6, MarginBottom: 0.8,
	MarginLeft: 0.5, MarginRight: 0.5,
	Footer: true,
}

// LetterLayout is US Letter portrait without a footer.
var LetterLayout = PageLayout{
	Width: 8.5, Height: 11,
	MarginTop: 0.5, MarginBottom: 0.5,
	MarginLeft: 0.5, MarginRight: 0.5,
}

// LayoutFor maps a paper name ("a4" or "letter") to its layout.
func LayoutFor(paper string) (PageLayout, bool) {
	switch strings.ToLower(strings.TrimSpace(paper)) {
	case "", "a4":
		return A4Layout, true
	case "letter":
		return LetterLayout, true
	}
	return PageLayout{}, false
}

type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
	layout     PageLayout
}

type PDFOption func(*ChromiumPDFRenderer)

func WithPageLayout(l PageLayout) PDFOption {
	return func(r *ChromiumPDFRenderer) { r.layout = l }
}

func WithRenderTimeout(d time.Duration) PDFOption {
	return func(r *ChromiumPDFRenderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewChromiumPDFRenderer uses chromePath when set, otherwise the first
// Chromium found in the usual locations.
func NewChromiumPDFRenderer(chromePath string, opts ...PDFOption) *ChromiumPDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	r := &ChromiumPDFRenderer{chromePath: chromePath, timeout: 30 * time.Second, layout: A4Layout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout reports the page layout used for printing.
func (r *ChromiumPDFRenderer) Layout() PageLayout { return r.layout }

func (l PageLayout) printParams() *page.PrintToPDFParams {
	p := page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(l.Width).
		WithPaperHeight(l.Height).
		WithMarginTop(l.MarginTop).
		WithMarginBottom(l.MarginBottom).
		WithMarginLeft(l.MarginLeft).
		WithMarginRight(l.MarginRight)
	if l.Footer {
		p = p.WithDisplayHeaderFooter(true).
			WithHeaderTemplate(`<span></span>`).
			WithFooterTemplate(`<div style="width:100%;padding:0 0.5in;font-size:8px;color:#888;text-align:right;">` +
				`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`)
	}
	return p
}

// Available reports whether a Chromium binary was found.
func (r *ChromiumPDFRenderer) Available() bool {
	return r.chromePath != ""
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, htmlDoc string) ([]byte, error) {
	if !r.Available() {
		return nil, ErrPDFUnavailable
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.ExecPath(r.chromePath),
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := r.layout.printParams().Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func detectChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
