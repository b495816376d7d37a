package api

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/report"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
	"github.com/FulgerX2007/itsm-report-generator/pkg/ui"
)

const errorPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
<p><small>Trace: %s</small></p>
</body>
</html>
`

// handleExec handles GET|POST /pages/exec.php and /reporting
func (h *Handler) handleExec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tracer := h.traces.NewTracer()
	lang := h.settings.DefaultLang

	if err := r.ParseForm(); err != nil {
		h.writeError(w, tracer, lang, model.Validationf("malformed request: %v", err))
		return
	}
	tracer.Tracef("Request: %s %s", r.Method, r.URL.Path)

	user, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, tracer, lang, err)
		return
	}
	lang = user.Language

	if err := h.checkExecTarget(r.Form); err != nil {
		h.writeError(w, tracer, lang, err)
		return
	}

	restore := h.liftWriteDeadline(w)
	defer restore()

	rc, err := h.newReportContext(r, user, tracer)
	if err != nil {
		h.writeError(w, tracer, lang, err)
		return
	}

	start := time.Now()
	if err := h.pipeline.DoExec(rc); err != nil {
		h.writeError(w, tracer, lang, err)
		return
	}
	h.logger.Info("Report generated",
		"user", user.Login,
		"view", rc.View(),
		"class", rc.Class(),
		"action", rc.Action(),
		"bytes", len(rc.Output()),
		"duration_ms", time.Since(start).Milliseconds(),
		"trace_id", tracer.ID(),
	)
	writeReport(w, r, rc)
}

// checkExecTarget rejects requests addressed to another module or page
func (h *Handler) checkExecTarget(form url.Values) error {
	if m := form.Get("exec_module"); m != "" && m != h.settings.ModuleCode {
		return model.Validationf("unknown module '%s'", m)
	}
	if p := form.Get("exec_page"); p != "" && p != ui.ExecPage {
		return model.Validationf("unknown page '%s'", p)
	}
	return nil
}

// newReportContext parses the view and filter parameters
func (h *Handler) newReportContext(r *http.Request, user *model.User, tracer *trace.Tracer) (*report.Context, error) {
	view, err := model.ParseView(r.Form.Get("view"))
	if err != nil {
		return nil, err
	}

	rc := report.NewContext(r.Context(), r.Form, user, tracer)
	rc.SetView(view)

	if raw := r.Form.Get("filter"); raw != "" {
		f, err := host.UnserializeFilter(raw)
		if err != nil {
			return nil, err
		}
		set, err := h.app.NewObjectSet(f)
		if err != nil {
			return nil, err
		}
		tracer.Tracef("Filter: %s", f)
		rc.SetObjectSet(set)
	}
	return rc, nil
}

// authenticate resolves the Bearer token (or X-Host-Token header) to a user
func (h *Handler) authenticate(r *http.Request) (*model.User, error) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Host-Token"))
	}
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", model.ErrAuthentication)
	}
	user, err := h.app.Store.GetUserByToken(token)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// liftWriteDeadline removes the server write deadline while a report runs.
// The returned func restores it and must be deferred.
func (h *Handler) liftWriteDeadline(w http.ResponseWriter) func() {
	ctrl := http.NewResponseController(w)
	if err := ctrl.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("Write deadline cannot be changed", "error", err)
		return func() {}
	}
	return func() {
		if h.WriteTimeout <= 0 {
			return
		}
		if err := ctrl.SetWriteDeadline(time.Now().Add(h.WriteTimeout)); err != nil {
			h.logger.Debug("Failed to restore write deadline", "error", err)
		}
	}
}

// writeReport sends the headers and output collected by the pipeline, or redirects
func writeReport(w http.ResponseWriter, r *http.Request, rc *report.Context) {
	for _, hdr := range rc.Headers() {
		if hdr[0] == "Location" {
			continue
		}
		w.Header().Set(hdr[0], hdr[1])
	}
	if loc := rc.Header("Location"); loc != "" {
		http.Redirect(w, r, loc, http.StatusFound)
		return
	}
	out := rc.Output()
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// writeError renders the HTML error page: 403 for authentication failures, 500 otherwise
func (h *Handler) writeError(w http.ResponseWriter, tracer *trace.Tracer, lang string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrAuthentication) {
		status = http.StatusForbidden
	}
	tracer.Tracef("Error: %v", err)
	h.logger.Warn("Report request failed", "status", status, "trace_id", tracer.ID(), "error", err)

	title := html.EscapeString(i18n.New(lang).T("UI:Report:Error"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPage, title, title, html.EscapeString(err.Error()), html.EscapeString(tracer.ID()))
}
