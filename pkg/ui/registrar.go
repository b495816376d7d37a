package ui

import (
	"fmt"
	"html"
	"net/url"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// ExecPage is the page of the module that runs reports
const ExecPage = "reporting.php"

// ShortcutStore persists which menu items are shown as buttons
type ShortcutStore interface {
	UpsertShortcutActions(actions map[string]bool) error
}

// Registrar builds the report menu items for the host
type Registrar struct {
	registry  *Registry
	settings  *model.Settings
	shortcuts ShortcutStore
	logger    log.Logger
}

// NewRegistrar creates a registrar. shortcuts may be nil to skip shortcut bookkeeping.
func NewRegistrar(registry *Registry, settings *model.Settings, shortcuts ShortcutStore) *Registrar {
	return &Registrar{
		registry:  registry,
		settings:  settings,
		shortcuts: shortcuts,
		logger:    log.DefaultLogger.With("component", "ui"),
	}
}

// EnumItems returns the menu items for the records shown in a view.
// Only the applicable elements' shortcut entries are written, so concurrent builds
// for other classes keep their own entries.
func (r *Registrar) EnumItems(set *host.ObjectSet, view model.View, lang string) ([]model.MenuItem, error) {
	dict := i18n.New(lang)
	elements := r.registry.Applicable(set, view)

	items := make([]model.MenuItem, 0, len(elements))
	shortcuts := make(map[string]bool, len(elements))
	for _, e := range elements {
		uid := e.UID()
		shortcuts[uid] = e.ForceButton()
		items = append(items, model.MenuItem{
			UID:         uid,
			Label:       e.Title(dict),
			URL:         r.ReportURL(set, view, e.URLParameters()),
			Target:      e.Target(),
			Precedence:  e.Precedence(),
			ForceButton: e.ForceButton(),
		})
	}

	if r.shortcuts != nil {
		if err := r.shortcuts.UpsertShortcutActions(shortcuts); err != nil {
			return nil, fmt.Errorf("failed to update shortcut actions: %w", err)
		}
	}
	r.logger.Debug("Built menu", "view", view, "items", len(items))
	return items, nil
}

// ReportURL is the absolute URL of the report endpoint for a set, view and element parameters.
// The filter is HTML-escaped before URL encoding, as the host expects.
func (r *Registrar) ReportURL(set *host.ObjectSet, view model.View, params url.Values) string {
	s := r.settings
	u := s.ExecURL + "?&exec_module=" + s.ModuleCode +
		"&exec_page=" + ExecPage +
		"&exec_env=" + url.QueryEscape(s.Environment) +
		"&view=" + string(view)
	if len(params) > 0 {
		u += "&" + params.Encode()
	}
	if set != nil {
		u += "&filter=" + url.QueryEscape(html.EscapeString(set.Filter().Serialize()))
	}
	return u
}
