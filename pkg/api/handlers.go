package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/mail"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/report"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
	"github.com/FulgerX2007/itsm-report-generator/pkg/ui"
)

// Handler handles HTTP requests from the host application
type Handler struct {
	settings  *model.Settings
	app       *host.Application
	pipeline  *report.Orchestrator
	registrar *ui.Registrar
	traces    *trace.Writer
	mux       *http.ServeMux
	logger    log.Logger

	// WriteTimeout is the server write timeout, reinstated after a report has run
	WriteTimeout time.Duration
}

// NewHandler creates a new API handler
func NewHandler(settings *model.Settings, app *host.Application, pipeline *report.Orchestrator, registrar *ui.Registrar, traces *trace.Writer) *Handler {
	h := &Handler{
		settings:  settings,
		app:       app,
		pipeline:  pipeline,
		registrar: registrar,
		traces:    traces,
		mux:       http.NewServeMux(),
		logger:    log.DefaultLogger.With("component", "api"),
	}

	h.registerRoutes()
	return h
}

// registerRoutes registers all HTTP routes
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("/pages/exec.php", h.handleExec)
	h.mux.HandleFunc("/reporting", h.handleExec)
	h.mux.HandleFunc("/api/menu", h.handleMenu)
	h.mux.HandleFunc("/api/shortcut-actions", h.handleShortcutActions)
	h.mux.HandleFunc("/api/attachments/", h.handleAttachment)
	h.mux.HandleFunc("/api/smtp/test", h.handleSMTPTest)
	h.mux.HandleFunc("/healthz", h.handleHealth)
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleMenu handles GET /api/menu?menu=details|list&filter=...
func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.authenticate(r)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := model.ParseView(r.URL.Query().Get("menu"))
	if err != nil {
		respondError(w, err)
		return
	}

	var set *host.ObjectSet
	if raw := r.URL.Query().Get("filter"); raw != "" {
		f, err := host.UnserializeFilter(raw)
		if err != nil {
			respondError(w, err)
			return
		}
		if set, err = h.app.NewObjectSet(f); err != nil {
			respondError(w, err)
			return
		}
	}

	items, err := h.registrar.EnumItems(set, view, user.Language)
	if err != nil {
		respondError(w, err)
		return
	}
	shortcuts, err := h.app.Store.ShortcutActions()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"items":            items,
		"shortcut_actions": shortcuts,
	})
}

// handleShortcutActions handles GET /api/shortcut-actions
func (h *Handler) handleShortcutActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.authenticate(r); err != nil {
		respondError(w, err)
		return
	}
	shortcuts, err := h.app.Store.ShortcutActions()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]string{"shortcut_actions": shortcuts})
}

// handleAttachment handles GET /api/attachments/{id}
func (h *Handler) handleAttachment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.authenticate(r); err != nil {
		respondError(w, err)
		return
	}

	var id int64
	if _, err := fmt.Sscanf(r.URL.Path, "/api/attachments/%d", &id); err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	att, err := h.app.Store.GetAttachment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", att.Contents.MimeType)
	w.Header().Set("Content-Disposition", "attachment;filename="+att.Contents.FileName)
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Contents.Data)))
	w.Write(att.Contents.Data)
}

// handleSMTPTest handles POST /api/smtp/test against the configured SMTP server
func (h *Handler) handleSMTPTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.authenticate(r); err != nil {
		respondError(w, err)
		return
	}

	cfg := h.settings.SMTP
	if cfg == nil || cfg.Host == "" {
		respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   "SMTP is not configured",
		})
		return
	}

	if err := mail.NewMailer(*cfg).Ping(); err != nil {
		respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"host":    cfg.Host,
			"port":    cfg.Port,
		})
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"message": "Successfully connected to SMTP server",
		"host":    cfg.Host,
		"port":    cfg.Port,
		"tls":     cfg.UseTLS,
	})
}

// handleHealth handles GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// respondError maps error kinds to JSON API status codes
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrAuthentication):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
