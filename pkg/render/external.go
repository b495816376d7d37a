package render

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// ExternalRenderer posts HTML to a remote rendering service and receives a base64 PDF
type ExternalRenderer struct {
	url    string
	client *http.Client
	logger log.Logger
}

type externalRequest struct {
	Data string `json:"data"`
}

type externalResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	PDF     string `json:"pdf"`
}

// NewExternalRenderer creates a client for the configured rendering service
func NewExternalRenderer(config model.ExternalRendererConfig) (*ExternalRenderer, error) {
	if config.URL == "" {
		return nil, model.Validationf("no URL specified (pdf_external_renderer section)")
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.SkipCertificateCheck {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &ExternalRenderer{
		url: config.URL,
		client: &http.Client{
			Timeout:   time.Duration(timeout) * time.Second,
			Transport: transport,
		},
		logger: log.DefaultLogger.With("component", "render", "backend", "external"),
	}, nil
}

// RenderPDF sends {"data": html} and expects HTTP 200 with {"error": 0, "pdf": "<base64>"}.
// Page format is decided by the service.
func (r *ExternalRenderer) RenderPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(externalRequest{Data: html})
	if err != nil {
		return nil, newError(ReasonUnknown, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(ReasonUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		reason := classify(err)
		r.logger.Error("External renderer request failed", "url", r.url, "reason", reason, "error", err)
		return nil, newError(reason, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(classify(err), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(ReasonHTTPStatus, fmt.Errorf("invalid HTTP response code: %d", resp.StatusCode))
	}

	var out externalResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newError(ReasonInvalidJSON, fmt.Errorf("invalid JSON structure: %w", err))
	}
	if out.Error != 0 {
		return nil, newError(ReasonRendererError, fmt.Errorf("error code: %d, message: %s", out.Error, out.Message))
	}
	pdf, err := base64.StdEncoding.DecodeString(out.PDF)
	if err != nil {
		return nil, newError(ReasonInvalidJSON, fmt.Errorf("pdf is not base64: %w", err))
	}
	r.logger.Debug("External renderer returned PDF", "bytes", len(pdf))
	return pdf, nil
}

// Close releases idle connections
func (r *ExternalRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// Name returns the backend name
func (r *ExternalRenderer) Name() string {
	return "external"
}
