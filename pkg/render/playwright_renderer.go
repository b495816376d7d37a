package render

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/playwright-community/playwright-go"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// PlaywrightRenderer prints HTML to PDF with Chromium driven by Playwright
type PlaywrightRenderer struct {
	config     model.BrowsershotConfig
	mu         sync.Mutex
	pw         *playwright.Playwright
	browser    playwright.Browser
	instanceID string
	logger     log.Logger
}

// NewPlaywrightRenderer creates a renderer. Playwright is started on first use.
func NewPlaywrightRenderer(config model.BrowsershotConfig) *PlaywrightRenderer {
	return &PlaywrightRenderer{
		config:     config,
		instanceID: generateInstanceID(),
		logger:     log.DefaultLogger.With("component", "render", "backend", "playwright"),
	}
}

// getBrowser initializes or returns the shared browser instance
func (r *PlaywrightRenderer) getBrowser() (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	// The driver needs a writable cache when the home directory is read-only
	if os.Getenv("PLAYWRIGHT_BROWSERS_PATH") == "" {
		cache := os.TempDir() + "/.playwright-cache"
		os.Setenv("PLAYWRIGHT_BROWSERS_PATH", cache)
		if err := os.MkdirAll(cache, 0755); err != nil {
			r.logger.Warn("Failed to create Playwright cache directory", "error", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w", err)
	}
	r.pw = pw

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-first-run",
			"--no-default-browser-check",
			"--disable-breakpad",
		},
	}
	chromePath := r.config.ChromePath
	if chromePath == "" {
		chromePath = findChromeBinary(chromeCandidates)
	}
	if chromePath != "" {
		launchOptions.ExecutablePath = playwright.String(chromePath)
		r.logger.Info("Using Chrome binary", "path", chromePath)
	}

	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	r.browser = browser
	r.logger.Info("Playwright browser initialized", "instance", r.instanceID)
	return browser, nil
}

// RenderPDF prints a full HTML page with backgrounds and zero margins
func (r *PlaywrightRenderer) RenderPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	format := firstNonEmpty(opts.Format, r.config.PageFormat)
	if _, err := PaperSize(format); err != nil {
		return nil, newError(ReasonUnknown, err)
	}
	timeoutMS := float64(resolveTimeout(opts, r.config.TimeoutSeconds).Milliseconds())

	browser, err := r.getBrowser()
	if err != nil {
		return nil, newError(ReasonBrowser, err)
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(r.config.IgnoreHTTPSErrors),
	})
	if err != nil {
		return nil, newError(ReasonBrowser, fmt.Errorf("failed to create browser context: %w", err))
	}
	defer browserContext.Close()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, newError(ReasonBrowser, fmt.Errorf("failed to create page: %w", err))
	}
	page.SetDefaultTimeout(timeoutMS)

	if err := ctx.Err(); err != nil {
		return nil, newError(ReasonTimeout, err)
	}
	if err := page.SetContent(html, playwright.PageSetContentOptions{
		Timeout: playwright.Float(timeoutMS),
	}); err != nil {
		return nil, r.wrap(fmt.Errorf("failed to load document: %w", err))
	}

	pdf, err := page.PDF(playwright.PagePdfOptions{
		Format:          playwright.String(format),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("0in"),
			Bottom: playwright.String("0in"),
			Left:   playwright.String("0in"),
			Right:  playwright.String("0in"),
		},
	})
	if err != nil {
		return nil, r.wrap(fmt.Errorf("failed to generate PDF: %w", err))
	}
	if err := checkPDF(pdf); err != nil {
		return nil, newError(ReasonBrowser, err)
	}
	r.logger.Debug("Generated PDF", "bytes", len(pdf), "format", format)
	return pdf, nil
}

func (r *PlaywrightRenderer) wrap(err error) error {
	if strings.Contains(err.Error(), "Timeout") {
		return newError(ReasonTimeout, err)
	}
	return newError(ReasonBrowser, err)
}

// Close closes the browser and stops the Playwright driver
func (r *PlaywrightRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		r.logger.Info("Closing Playwright browser", "instance", r.instanceID)
		if err := r.browser.Close(); err != nil {
			return err
		}
		r.browser = nil
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil {
			return err
		}
		r.pw = nil
	}
	return nil
}

// Name returns the backend name
func (r *PlaywrightRenderer) Name() string {
	return "playwright"
}
