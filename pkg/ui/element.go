package ui

import (
	"net/url"
	"regexp"
	"sort"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// Element is a report action offered in the host's menus or as a shortcut button
type Element interface {
	// UID identifies the element across menu builds
	UID() string
	// Applicable decides from the records shown and the view
	Applicable(set *host.ObjectSet, view model.View) bool
	// Precedence orders menu items, lowest first
	Precedence() int
	Title(dict *i18n.Dictionary) string
	// Target is the HTML link target, "_blank" or "_self"
	Target() string
	// URLParameters are added to the report URL
	URLParameters() url.Values
	// ForceButton promotes the element to a shortcut button
	ForceButton() bool
}

// actionTitles maps PDF actions to their dictionary entries
var actionTitles = map[string]string{
	model.ActionShowPDF:     "UI:Report:ShowPDF",
	model.ActionDownloadPDF: "UI:Report:DownloadPDF",
	model.ActionAttachPDF:   "UI:Report:AttachPDF",
	model.ActionEmailPDF:    "UI:Report:EmailPDF",
}

var uidUnsafe = regexp.MustCompile(`[^0-9A-Za-z_-]`)

// ReportElement is one action of a configured report entry
type ReportElement struct {
	moduleCode string
	entry      model.ReportEntry
	action     string // "" for the HTML report
}

// NewReportElement creates the element for one action of an entry. "html" selects the HTML report.
func NewReportElement(moduleCode string, entry model.ReportEntry, action string) *ReportElement {
	if action == "html" {
		action = model.ActionHTML
	}
	return &ReportElement{moduleCode: moduleCode, entry: entry, action: action}
}

// UID is <module_code>_<entry id>_<action>
func (e *ReportElement) UID() string {
	action := e.action
	if action == model.ActionHTML {
		action = "html"
	}
	return e.moduleCode + "_" + uidUnsafe.ReplaceAllString(e.entry.ID, "") + "_" + action
}

func (e *ReportElement) Applicable(set *host.ObjectSet, view model.View) bool {
	if e.entry.Class != "" && (set == nil || set.Class() != e.entry.Class) {
		return false
	}
	for _, v := range e.entry.Views {
		if model.View(v) == view {
			return true
		}
	}
	return false
}

func (e *ReportElement) Precedence() int { return e.entry.Precedence }

func (e *ReportElement) Title(dict *i18n.Dictionary) string {
	if code, ok := actionTitles[e.action]; ok {
		return dict.T(code)
	}
	if e.entry.Title != "" {
		return e.entry.Title
	}
	return e.entry.Template
}

func (e *ReportElement) Target() string {
	if e.action == model.ActionHTML {
		return "_blank"
	}
	return "_self"
}

func (e *ReportElement) URLParameters() url.Values {
	v := url.Values{}
	v.Set("template", e.entry.Template)
	if e.entry.ReportDir != "" {
		v.Set("reportdir", e.entry.ReportDir)
	}
	if e.action != model.ActionHTML {
		v.Set("action", e.action)
	}
	return v
}

// ForceButton defaults to true when the entry does not say otherwise
func (e *ReportElement) ForceButton() bool {
	if e.entry.ForceButton == nil {
		return true
	}
	return *e.entry.ForceButton
}

// Registry holds UI elements in registration order
type Registry struct {
	elements []Element
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an element
func (r *Registry) Register(e Element) {
	r.elements = append(r.elements, e)
}

// All returns the registered elements
func (r *Registry) All() []Element {
	return r.elements
}

// Applicable returns the elements applicable to a set and view sorted by precedence.
// Equal precedences keep registration order.
func (r *Registry) Applicable(set *host.ObjectSet, view model.View) []Element {
	var out []Element
	for _, e := range r.elements {
		if e.Applicable(set, view) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Precedence() < out[j].Precedence() })
	return out
}

// RegistryFromSettings registers one element per action of every configured report
func RegistryFromSettings(settings *model.Settings) *Registry {
	r := NewRegistry()
	for _, entry := range settings.Reports {
		for _, action := range entry.Actions {
			r.Register(NewReportElement(settings.ModuleCode, entry, action))
		}
	}
	return r
}
