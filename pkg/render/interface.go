package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// Options are per-report print settings
type Options struct {
	// Format is a paper format name such as A4 or Letter
	Format string
	// Timeout bounds one render; zero uses the backend default
	Timeout time.Duration
}

// Backend defines the interface for PDF rendering backends
type Backend interface {
	// RenderPDF converts a complete HTML document to PDF
	RenderPDF(ctx context.Context, html string, opts Options) ([]byte, error)

	// Close cleans up resources used by the backend
	Close() error

	// Name returns the name of the backend
	Name() string
}

// NewBackend creates the rendering backend selected by settings.PDFRenderer
func NewBackend(settings *model.Settings) (Backend, error) {
	switch settings.PDFRenderer {
	case model.RendererExternal:
		return NewExternalRenderer(settings.ExternalRenderer)
	case model.RendererBasic:
		return NewBasicRenderer(settings.Browsershot), nil
	case model.RendererBrowsershot:
		switch settings.Browsershot.Driver {
		case "playwright":
			return NewPlaywrightRenderer(settings.Browsershot), nil
		case "", "rod":
			return NewChromiumRenderer(settings.Browsershot), nil
		}
		return nil, model.Validationf("unknown browser driver '%s'", settings.Browsershot.Driver)
	}
	return nil, model.Validationf("unknown mode: %s", settings.PDFRenderer)
}

// Paper is a page size in inches
type Paper struct {
	Width, Height float64
}

var papers = map[string]Paper{
	"a3":      {11.69, 16.54},
	"a4":      {8.27, 11.69},
	"a5":      {5.83, 8.27},
	"letter":  {8.5, 11},
	"legal":   {8.5, 14},
	"tabloid": {11, 17},
}

// PaperSize returns the dimensions of a paper format, case-insensitively
func PaperSize(format string) (Paper, error) {
	if format == "" {
		format = "A4"
	}
	size, ok := papers[strings.ToLower(format)]
	if !ok {
		return Paper{}, model.Validationf("unknown page format '%s'", format)
	}
	return size, nil
}

func resolveTimeout(opts Options, seconds int) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

func checkPDF(pdf []byte) error {
	if len(pdf) < 5 || string(pdf[:5]) != "%PDF-" {
		return fmt.Errorf("output is not a PDF (got %d bytes)", len(pdf))
	}
	return nil
}
