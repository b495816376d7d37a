package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/render"
	"github.com/FulgerX2007/itsm-report-generator/pkg/report"
	"github.com/FulgerX2007/itsm-report-generator/pkg/store"
	"github.com/FulgerX2007/itsm-report-generator/pkg/template"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
	"github.com/FulgerX2007/itsm-report-generator/pkg/ui"
)

const token = "s3cret"

type stubPDF struct{}

func (stubPDF) RenderPDF(_ context.Context, html string, _ render.Options) ([]byte, error) {
	return []byte("%PDF-1.4\n" + html), nil
}

func (stubPDF) Close() error { return nil }

func (stubPDF) Name() string { return "stub" }

type testServer struct {
	handler  *Handler
	st       *store.Store
	traceDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	settings := &model.Settings{
		AppRootURL: "https://itsm.example.com/",
		ModuleDir:  "testdata/modules",
		TraceLog:   true,
		TraceDir:   filepath.Join(dir, "log"),
		Reports: []model.ReportEntry{{
			ID:       "ticket",
			Title:    "Ticket",
			Class:    "UserRequest",
			Views:    []string{"details"},
			Template: "detail/basic.twig",
			Actions:  []string{"html", model.ActionShowPDF, model.ActionAttachPDF},
		}},
	}
	settings.ApplyDefaults()

	st, err := store.NewStore(filepath.Join(dir, "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.PutClass(&model.Class{Name: "UserRequest", Attributes: model.StringSlice{"title", "status"}}))
	require.NoError(t, st.PutObject(&model.Object{Class: "UserRequest", Key: 12, Fields: model.Fields{"title": "Broken printer", "status": "new"}}))
	require.NoError(t, st.CreateUser(&model.User{Login: "jane", Token: token}))

	app := host.NewApplication(st, settings)
	libs := template.NewFrontendLibs(settings)
	renderer, err := template.NewRenderer(settings, app, libs, nil)
	require.NoError(t, err)

	svc := &report.Services{
		Settings:  settings,
		App:       app,
		Templates: renderer,
		Libs:      libs,
		PDF:       stubPDF{},
	}
	registrar := ui.NewRegistrar(ui.RegistryFromSettings(settings), settings, st)
	h := NewHandler(settings, app, report.NewOrchestrator(report.DefaultRegistry(svc), app), registrar, trace.NewWriter(settings.TraceDir, true))
	return &testServer{handler: h, st: st, traceDir: settings.TraceDir}
}

func (s *testServer) do(t *testing.T, method, target string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, target, strings.NewReader(params.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if params != nil {
			target += "?" + params.Encode()
		}
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) traceLog(t *testing.T) string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(s.traceDir, trace.FilePrefix+"*.log"))
	require.NoError(t, err)
	var sb strings.Builder
	for _, f := range files {
		b, err := os.ReadFile(f)
		require.NoError(t, err)
		sb.Write(b)
	}
	return sb.String()
}

func detailsParams(extra url.Values) url.Values {
	v := url.Values{
		"exec_module": {"jb-report-generator"},
		"exec_page":   {"reporting.php"},
		"view":        {"details"},
		"filter":      {host.ByKey("UserRequest", 12).Serialize()},
		"template":    {"detail/basic.twig"},
	}
	for k, vs := range extra {
		v[k] = vs
	}
	return v
}

func TestExecDetailsHTML(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/pages/exec.php", detailsParams(nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<h1>Broken printer</h1>")
}

func TestExecPostForm(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/reporting", detailsParams(nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "<p>new</p>")
}

var pdfName = regexp.MustCompile(`^inline;filename=\d{8}_\d{6}_UserRequest_12\.pdf$`)

func TestExecShowPDF(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/pages/exec.php", detailsParams(url.Values{"action": {"show_pdf"}}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Regexp(t, pdfName, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func TestExecAttachPDFRedirects(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/pages/exec.php", detailsParams(url.Values{"action": {"attach_pdf"}}))

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://itsm.example.com/pages/UI.php?operation=details&class=UserRequest&id=12", w.Header().Get("Location"))

	atts, err := s.st.ListAttachments(context.Background(), "UserRequest", []int64{12})
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "UserRequest", atts[0].ItemClass)
	assert.Equal(t, int64(12), atts[0].ItemID)

	dl := s.do(t, http.MethodGet, "/api/attachments/"+strconv.FormatInt(atts[0].ID, 10), nil)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(dl.Body.String(), "%PDF-"))
}

func TestExecRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	for _, header := range []string{"", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/pages/exec.php?"+detailsParams(nil).Encode(), nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "The report could not be generated")
	}
}

func TestExecHostTokenHeader(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pages/exec.php?"+detailsParams(nil).Encode(), nil)
	req.Header.Set("X-Host-Token", token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExecLocalFileInclusion(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/pages/exec.php", detailsParams(url.Values{"template": {"../../etc/passwd"}}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "invalid template name")
	assert.NotContains(t, w.Body.String(), "root:")
	assert.Contains(t, s.traceLog(t), "Potential local file inclusion: ../../etc/passwd")
}

func TestExecValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		want   string
	}{
		{"bad view", url.Values{"view": {"grid"}}, "invalid view"},
		{"other module", url.Values{"exec_module": {"other"}}, "unknown module"},
		{"bad filter", url.Values{"filter": {"%%%"}}, "malformed filter"},
		{"unknown class", url.Values{"filter": {host.NewFilter("Nope").Serialize()}}, "unknown class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(t, http.MethodGet, "/pages/exec.php", detailsParams(tt.params))
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestMenuLinksRunReports(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/menu", url.Values{
		"menu":   {"details"},
		"filter": {host.ByKey("UserRequest", 12).Serialize()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Items           []model.MenuItem `json:"items"`
		ShortcutActions string           `json:"shortcut_actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "jb-report-generator_ticket_attach_pdf,jb-report-generator_ticket_html,jb-report-generator_ticket_show_pdf", resp.ShortcutActions)

	u, err := url.Parse(resp.Items[0].URL)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Broken printer")

	sc := s.do(t, http.MethodGet, "/api/shortcut-actions", nil)
	assert.JSONEq(t, `{"shortcut_actions":"`+resp.ShortcutActions+`"}`, sc.Body.String())
}

func TestAttachmentNotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/attachments/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
