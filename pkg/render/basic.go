package render

import (
	"bytes"
	"context"
	"strings"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// BasicRenderer lays out the text of an HTML document with gofpdf.
// It needs no browser and ignores styling, images and scripts.
type BasicRenderer struct {
	config model.BrowsershotConfig
	logger log.Logger
}

// NewBasicRenderer creates a browserless renderer
func NewBasicRenderer(config model.BrowsershotConfig) *BasicRenderer {
	return &BasicRenderer{
		config: config,
		logger: log.DefaultLogger.With("component", "render", "backend", "basic"),
	}
}

// RenderPDF writes the document's title and text blocks to a PDF
func (r *BasicRenderer) RenderPDF(ctx context.Context, doc string, opts Options) ([]byte, error) {
	format := firstNonEmpty(opts.Format, r.config.PageFormat, "A4")
	if _, err := PaperSize(format); err != nil {
		return nil, newError(ReasonUnknown, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(ReasonTimeout, err)
	}

	title, blocks := extractText(doc)

	pdf := gofpdf.New("P", "mm", format, "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 8, tr(title), "", "L", false)
		pdf.Ln(4)
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, block := range blocks {
		pdf.MultiCell(0, 5.5, tr(block), "", "L", false)
		pdf.Ln(1.5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, newError(ReasonRendererError, err)
	}
	r.logger.Debug("Generated PDF", "bytes", buf.Len(), "blocks", len(blocks))
	return buf.Bytes(), nil
}

// Close is a no-op
func (r *BasicRenderer) Close() error { return nil }

// Name returns the backend name
func (r *BasicRenderer) Name() string { return "basic" }

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "pre": true,
}

// extractText returns the <title> and the non-empty text blocks of an HTML document
func extractText(doc string) (string, []string) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		title   string
		blocks  []string
		current strings.Builder
		skip    int
		inTitle bool
	)
	flush := func() {
		text := strings.Join(strings.Fields(current.String()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
		current.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return title, blocks
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "title":
				inTitle = tt == html.StartTagToken
			case tag == "td" || tag == "th":
				current.WriteString(" ")
			case blockElements[tag]:
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if skip > 0 {
					skip--
				}
			case tag == "title":
				inTitle = false
			case blockElements[tag]:
				flush()
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if inTitle {
				title += strings.TrimSpace(string(z.Text()))
				continue
			}
			current.Write(z.Text())
			current.WriteString(" ")
		}
	}
}
