package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
)

func init() {
	// Reports emit HTML, CSV and JSON verbatim
	pongo2.SetAutoescape(false)
}

// mimeTypes maps template extensions to the Content-Type of the rendered report
var mimeTypes = map[string]string{
	"csv":  "text/csv",
	"html": "text/html",
	"json": "application/json",
	"twig": "text/html",
	"txt":  "text/plain",
	"xml":  "text/xml",
}

// MimeType returns the MIME type for a template file name, or "" for unknown extensions
func MimeType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return mimeTypes[ext]
}

// HeaderSetter receives the Content-Type of a rendered report
type HeaderSetter interface {
	SetHeader(name, value string)
}

// Report is a rendered template
type Report struct {
	Content  string
	MimeType string
}

// Request describes one render call
type Request struct {
	Template  string
	ReportDir string
	Class     string // class of the object set, used by the legacy lookup
	View      model.View
	Data      map[string]interface{}
	Language  string
	Headers   HeaderSetter
	Tracer    *trace.Tracer
}

// Renderer renders report templates found under the modules directory
type Renderer struct {
	moduleDir string
	set       *pongo2.TemplateSet
	cache     bool
	app       *host.Application
	libs      *FrontendLibs
	helpers   *HelperRegistry
	logger    log.Logger
}

// NewRenderer creates a template renderer rooted at settings.ModuleDir
func NewRenderer(settings *model.Settings, app *host.Application, libs *FrontendLibs, helpers *HelperRegistry) (*Renderer, error) {
	moduleDir, err := filepath.Abs(settings.ModuleDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module dir: %w", err)
	}
	loader, err := pongo2.NewLocalFileSystemLoader(moduleDir)
	if err != nil {
		return nil, fmt.Errorf("%w: template loader: %v", model.ErrDependencyMissing, err)
	}
	if libs == nil {
		libs = NewFrontendLibs(settings)
	}
	if helpers == nil {
		helpers = DefaultHelpers()
	}
	return &Renderer{
		moduleDir: moduleDir,
		set:       pongo2.NewSet("reports", loader),
		cache:     settings.CacheTemplates,
		app:       app,
		libs:      libs,
		helpers:   helpers,
		logger:    log.DefaultLogger.With("component", "template"),
	}, nil
}

// Resolve validates a template name and returns its path relative to the modules directory.
// The name is checked against the filename pattern before any file access.
func (r *Renderer) Resolve(req *Request) (string, error) {
	if err := model.ValidateTemplateName(req.Template); err != nil {
		if req.Template != "" {
			req.Tracer.Tracef("Potential local file inclusion: %s", req.Template)
		}
		return "", err
	}
	if err := model.ValidateReportDir(req.ReportDir); err != nil {
		req.Tracer.Tracef("Potential local file inclusion in report dir: %s", req.ReportDir)
		return "", err
	}

	name := filepath.FromSlash(strings.ReplaceAll(req.Template, "\\", "/"))
	reportDir := filepath.FromSlash(strings.ReplaceAll(req.ReportDir, "\\", "/"))

	candidate := filepath.Join(reportDir, name)
	if r.exists(candidate) {
		return candidate, nil
	}

	if req.Class == "" {
		req.Tracer.Tracef("Template does not exist: %s", candidate)
		return "", model.Validationf("template does not exist")
	}

	legacy := filepath.Join(reportDir, "reports", "templates", req.Class, string(req.View), name)
	if r.exists(legacy) {
		req.Tracer.Tracef("Deprecated: Legacy mode for file name: %s", legacy)
		return legacy, nil
	}

	req.Tracer.Tracef("Template does not exist: %s / Alternative: %s", candidate, legacy)
	return "", model.Validationf("template does not exist")
}

// exists reports whether rel names a regular file inside the modules directory
func (r *Renderer) exists(rel string) bool {
	abs := filepath.Join(r.moduleDir, rel)
	if !strings.HasPrefix(abs, r.moduleDir+string(filepath.Separator)) {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Source returns the raw contents of a resolved template
func (r *Renderer) Source(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.moduleDir, rel))
}

// Render resolves and renders a template, sets the Content-Type header and returns the content with its MIME type
func (r *Renderer) Render(req *Request) (*Report, error) {
	rel, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}

	var tpl *pongo2.Template
	if r.cache {
		tpl, err = r.set.FromCache(filepath.ToSlash(rel))
	} else {
		tpl, err = r.set.FromFile(filepath.ToSlash(rel))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRender, err)
	}

	ctx := pongo2.Context{}
	for k, v := range req.Data {
		ctx[k] = v
	}
	hc := &HelperContext{App: r.app, Dict: i18n.New(req.Language), Libs: r.libs}
	for _, h := range r.helpers.List() {
		ctx[h.Name] = h.New(hc)
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRender, err)
	}

	out = resolveDeferred(out, hc)
	out = RewriteInlineImages(out, r.app.Environment)

	report := &Report{Content: out, MimeType: MimeType(rel)}
	if report.MimeType != "" && req.Headers != nil {
		req.Headers.SetHeader("Content-Type", report.MimeType)
	}
	r.logger.Debug("Rendered template", "template", rel, "bytes", len(out), "trace_id", req.Tracer.ID())
	return report, nil
}

// RewriteInlineImages appends the environment to inline image URLs so a renderer
// fetching them from another session still resolves the right environment
func RewriteInlineImages(html, env string) string {
	if env == "" {
		return html
	}
	return strings.ReplaceAll(html, host.InlineImageNeedle, host.InlineImageNeedle+"&switch_env="+env)
}
