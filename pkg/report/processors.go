package report

import (
	"regexp"
	"strings"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/mail"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/render"
	"github.com/FulgerX2007/itsm-report-generator/pkg/template"
)

// Services are the collaborators of the built-in processors
type Services struct {
	Settings  *model.Settings
	App       *host.Application
	Templates *template.Renderer
	Libs      *template.FrontendLibs
	PDF       render.Backend
	Mailer    mail.Sender // nil when SMTP is not configured
}

// DefaultRegistry registers the built-in processors. Registration order breaks rank ties.
func DefaultRegistry(svc *Services) *Registry {
	r := NewRegistry()
	r.Register(&AttributesProcessor{svc: svc})
	r.Register(&AttachmentsProcessor{svc: svc})
	r.Register(&TwigProcessor{twigBase{svc: svc}})
	r.Register(&TwigToPDFProcessor{twigBase{svc: svc}})
	r.Register(&EmailPDFProcessor{twigBase{svc: svc}})
	return r
}

// AttributesProcessor narrows the fetched attributes to the "fields" parameter
type AttributesProcessor struct {
	Base
	svc *Services
}

func (p *AttributesProcessor) Name() string { return "attributes" }

func (p *AttributesProcessor) Rank() int { return 0 }

func (p *AttributesProcessor) Applicable(rc *Context) bool {
	return rc.ObjectSet() != nil && strings.TrimSpace(rc.Param("fields")) != ""
}

// BeforeFetch validates the requested attributes against the class. "id" is always kept.
func (p *AttributesProcessor) BeforeFetch(rc *Context) error {
	class := rc.Class()
	known, err := p.svc.App.ListAttributes(class)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(known)+1)
	valid["id"] = true
	for _, code := range known {
		valid[code] = true
	}

	codes := []string{"id"}
	seen := map[string]bool{"id": true}
	for _, code := range strings.Split(rc.Param("fields"), ",") {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		if !valid[code] {
			return model.Validationf("unknown attribute '%s' for class '%s'", code, class)
		}
		seen[code] = true
		codes = append(codes, code)
	}
	rc.SetOptimizedAttCodes(class, codes)
	return nil
}

var (
	attachmentsUsage = regexp.MustCompile(`\.attachments`)
	contentsUsage    = regexp.MustCompile(`fields\.contents\.(data|mimetype|filename)`)
)

// AttachmentsProcessor adds the attachments of each record when the template uses them
type AttachmentsProcessor struct {
	Base
	svc *Services
}

func (p *AttachmentsProcessor) Name() string { return "attachments" }

func (p *AttachmentsProcessor) Rank() int { return 1 }

// Applicable inspects the template source for attachment usage
func (p *AttachmentsProcessor) Applicable(rc *Context) bool {
	switch rc.Action() {
	case model.ActionHTML, model.ActionShowPDF, model.ActionDownloadPDF, model.ActionAttachPDF, model.ActionEmailPDF:
	default:
		return false
	}
	if rc.ObjectSet() == nil {
		return false
	}
	rel, err := p.svc.Templates.Resolve(templateRequest(rc, nil))
	if err != nil {
		return false
	}
	src, err := p.svc.Templates.Source(rel)
	if err != nil {
		return false
	}
	return attachmentsUsage.Match(src) && contentsUsage.Match(src)
}

// Enrich sets "attachments" on every record, matched by item class and key
func (p *AttachmentsProcessor) Enrich(rc *Context, data Data) error {
	set := rc.ObjectSet()
	keys, err := set.Keys(rc.Ctx())
	if err != nil {
		return err
	}
	atts, err := p.svc.App.Store.ListAttachments(rc.Ctx(), set.Class(), keys)
	if err != nil {
		return err
	}
	byItem := make(map[int64][]interface{})
	for _, att := range atts {
		byItem[att.ItemID] = append(byItem[att.ItemID], att.Serialize().Map())
	}
	rc.Tracef("Found %d attachment(s) for %d object(s).", len(atts), len(keys))

	attach := func(obj map[string]interface{}) {
		key, _ := obj["key"].(int64)
		list := byItem[key]
		if list == nil {
			list = []interface{}{}
		}
		obj["attachments"] = list
	}
	if item, ok := data.Item(); ok {
		attach(item)
	}
	if items, ok := data.Items(); ok {
		for _, item := range items {
			attach(item)
		}
	}
	return nil
}
