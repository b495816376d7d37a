package render

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// ChromiumRenderer prints HTML to PDF with a local headless Chromium driven by go-rod
type ChromiumRenderer struct {
	config     model.BrowsershotConfig
	mu         sync.Mutex
	browser    *rod.Browser
	instanceID string // Unique ID for this renderer instance
	profileDir string // Unique profile directory for this instance
	logger     log.Logger
}

// chromeCandidates are checked in order when no chrome_path is configured
var chromeCandidates = []string{
	"./chrome-linux64/chrome",
	"chrome-linux64/chrome",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// findChromeBinary returns the first executable candidate, or ""
func findChromeBinary(candidates []string) string {
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return path
		}
	}
	return ""
}

// generateInstanceID creates a unique identifier for this renderer instance
func generateInstanceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewChromiumRenderer creates a renderer. The browser is launched on first use.
func NewChromiumRenderer(config model.BrowsershotConfig) *ChromiumRenderer {
	instanceID := generateInstanceID()
	r := &ChromiumRenderer{
		config:     config,
		instanceID: instanceID,
		profileDir: filepath.Join(os.TempDir(), ".reportgen-chromium-"+instanceID),
		logger:     log.DefaultLogger.With("component", "render", "backend", "chromium"),
	}
	r.logger.Debug("Created renderer instance", "instance", instanceID, "profile_dir", r.profileDir)
	return r
}

// getBrowser initializes or returns the shared browser instance
func (r *ChromiumRenderer) getBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	if err := os.MkdirAll(r.profileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}

	chromePath := r.config.ChromePath
	if chromePath == "" {
		chromePath = findChromeBinary(chromeCandidates)
	}

	l := launcher.New()
	if chromePath != "" {
		l = l.Bin(chromePath)
		r.logger.Info("Using Chrome binary", "path", chromePath)
	} else {
		r.logger.Warn("No Chrome binary configured or found, falling back to launcher default")
	}

	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-breakpad").
		Set("user-data-dir", r.profileDir).
		Headless(true).
		Set("headless", "new")

	if r.config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors")
		r.logger.Warn("TLS certificate verification disabled for renderer")
	}

	launchURL, err := l.Launch()
	if err != nil {
		if chromePath == "" {
			return nil, fmt.Errorf("failed to launch browser: %w (set browsershot.chrome_path)", err)
		}
		return nil, fmt.Errorf("failed to launch browser at '%s': %w", chromePath, err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.browser = browser
	r.logger.Info("Chromium browser initialized", "instance", r.instanceID)
	return browser, nil
}

// RenderPDF prints a full HTML page with backgrounds and zero margins
func (r *ChromiumRenderer) RenderPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	size, err := PaperSize(firstNonEmpty(opts.Format, r.config.PageFormat))
	if err != nil {
		return nil, newError(ReasonUnknown, err)
	}
	timeout := resolveTimeout(opts, r.config.TimeoutSeconds)

	browser, err := r.getBrowser()
	if err != nil {
		return nil, newError(ReasonBrowser, err)
	}

	// The document is loaded from disk so that absolute resource URLs still resolve
	file, err := os.CreateTemp("", "reportgen-*.html")
	if err != nil {
		return nil, newError(ReasonBrowser, err)
	}
	defer os.Remove(file.Name())
	if _, err := file.WriteString(html); err != nil {
		file.Close()
		return nil, newError(ReasonBrowser, err)
	}
	file.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, newError(ReasonBrowser, fmt.Errorf("failed to create page: %w", err))
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(timeout)

	if err := page.Navigate("file://" + filepath.ToSlash(file.Name())); err != nil {
		return nil, r.wrap(fmt.Errorf("failed to load document: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return nil, r.wrap(fmt.Errorf("failed to wait for page load: %w", err))
	}

	f := func(x float64) *float64 { return &x }
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      f(size.Width),
		PaperHeight:     f(size.Height),
		MarginTop:       f(0),
		MarginBottom:    f(0),
		MarginLeft:      f(0),
		MarginRight:     f(0),
	})
	if err != nil {
		return nil, r.wrap(fmt.Errorf("failed to generate PDF: %w", err))
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, newError(ReasonBrowser, fmt.Errorf("failed to read PDF stream: %w", err))
	}
	if err := checkPDF(pdf); err != nil {
		return nil, newError(ReasonBrowser, err)
	}
	r.logger.Debug("Generated PDF", "bytes", len(pdf), "format", opts.Format)
	return pdf, nil
}

func (r *ChromiumRenderer) wrap(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ReasonTimeout, err)
	}
	return newError(ReasonBrowser, err)
}

// Close closes the browser instance and removes its profile directory
func (r *ChromiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	r.logger.Info("Closing Chromium browser", "instance", r.instanceID)
	err := r.browser.Close()
	r.browser = nil
	os.RemoveAll(r.profileDir)
	return err
}

// Name returns the backend name
func (r *ChromiumRenderer) Name() string {
	return "chromium"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
