package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

const fakePDF = "%PDF-1.4\n% test document\n"

func newExternal(t *testing.T, handler http.HandlerFunc) *ExternalRenderer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := NewExternalRenderer(model.ExternalRendererConfig{URL: srv.URL})
	require.NoError(t, err)
	return r
}

func assertReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPDF), "error should match ErrPDF: %v", err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, reason, rerr.Reason)
}

func TestExternalRendererSuccess(t *testing.T) {
	var received externalRequest
	r := newExternal(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0,
			"pdf":   base64.StdEncoding.EncodeToString([]byte(fakePDF)),
		})
	})

	pdf, err := r.RenderPDF(context.Background(), "<h1>Report</h1>", Options{})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(pdf))
	assert.Equal(t, "<h1>Report</h1>", received.Data)
}

func TestExternalRendererReturnsPayloadUnchanged(t *testing.T) {
	payload := []byte("arbitrary-pdf-bytes")
	r := newExternal(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": 0,
			"pdf":   base64.StdEncoding.EncodeToString(payload),
		})
	})

	pdf, err := r.RenderPDF(context.Background(), "<p>x</p>", Options{})
	require.NoError(t, err)
	assert.Equal(t, payload, pdf)
}

func TestExternalRendererHTTPStatus(t *testing.T) {
	r := newExternal(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := r.RenderPDF(context.Background(), "<p>x</p>", Options{})
	assertReason(t, err, ReasonHTTPStatus)
	assert.Contains(t, err.Error(), "500")
}

func TestExternalRendererReportedError(t *testing.T) {
	r := newExternal(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": 3, "message": "chrome crashed"}`))
	})
	_, err := r.RenderPDF(context.Background(), "<p>x</p>", Options{})
	assertReason(t, err, ReasonRendererError)
	assert.Contains(t, err.Error(), "chrome crashed")
}

func TestExternalRendererInvalidJSON(t *testing.T) {
	r := newExternal(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})
	_, err := r.RenderPDF(context.Background(), "<p>x</p>", Options{})
	assertReason(t, err, ReasonInvalidJSON)
}

func TestExternalRendererTimeout(t *testing.T) {
	r := newExternal(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	_, err := r.RenderPDF(context.Background(), "<p>x</p>", Options{Timeout: 50 * time.Millisecond})
	assertReason(t, err, ReasonTimeout)
}

func TestExternalRendererConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	r, err := NewExternalRenderer(model.ExternalRendererConfig{URL: "http://" + addr + "/render"})
	require.NoError(t, err)
	_, err = r.RenderPDF(context.Background(), "<p>x</p>", Options{})
	assertReason(t, err, ReasonConnectionRefused)
}

func TestExternalRendererRequiresURL(t *testing.T) {
	_, err := NewExternalRenderer(model.ExternalRendererConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestBasicRenderer(t *testing.T) {
	r := NewBasicRenderer(model.BrowsershotConfig{PageFormat: "Letter"})
	doc := `<html><head><title>Ticket R-000012</title><style>p { color: red }</style></head>
<body><h1>Broken printer</h1><p>Caller: Jane</p><script>alert(1)</script></body></html>`

	pdf, err := r.RenderPDF(context.Background(), doc, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

	_, err = r.RenderPDF(context.Background(), doc, Options{Format: "B7"})
	assertReason(t, err, ReasonUnknown)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestExtractText(t *testing.T) {
	title, blocks := extractText(`<title>T</title><style>x{}</style><div>a <b>b</b></div><table><tr><td>1</td><td>2</td></tr></table><script>s()</script>`)
	assert.Equal(t, "T", title)
	assert.Equal(t, []string{"a b", "1 2"}, blocks)
}

func TestPaperSize(t *testing.T) {
	size, err := PaperSize("")
	require.NoError(t, err)
	assert.Equal(t, Paper{8.27, 11.69}, size)

	size, err = PaperSize("letter")
	require.NoError(t, err)
	assert.Equal(t, 11.0, size.Height)

	_, err = PaperSize("postcard")
	assert.Error(t, err)
}

func TestNewBackendSelection(t *testing.T) {
	settings := &model.Settings{}
	settings.ApplyDefaults()

	b, err := NewBackend(settings)
	require.NoError(t, err)
	assert.Equal(t, "chromium", b.Name())

	settings.Browsershot.Driver = "playwright"
	b, err = NewBackend(settings)
	require.NoError(t, err)
	assert.Equal(t, "playwright", b.Name())

	settings.PDFRenderer = model.RendererBasic
	b, err = NewBackend(settings)
	require.NoError(t, err)
	assert.Equal(t, "basic", b.Name())

	settings.PDFRenderer = model.RendererExternal
	_, err = NewBackend(settings)
	assert.Error(t, err)

	settings.ExternalRenderer.URL = "http://renderer.internal/pdf"
	b, err = NewBackend(settings)
	require.NoError(t, err)
	assert.Equal(t, "external", b.Name())

	settings.PDFRenderer = "wkhtmltopdf"
	_, err = NewBackend(settings)
	assert.Error(t, err)
}
