package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/FulgerX2007/itsm-report-generator/pkg/mail"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/render"
	"github.com/FulgerX2007/itsm-report-generator/pkg/template"
)

// templateRequest describes the template named by the request parameters
func templateRequest(rc *Context, data Data) *template.Request {
	return &template.Request{
		Template:  rc.Param("template"),
		ReportDir: rc.Param("reportdir"),
		Class:     rc.Class(),
		View:      rc.View(),
		Data:      data,
		Language:  rc.Language(),
		Headers:   rc,
		Tracer:    rc.Tracer(),
	}
}

// twigBase holds the enrichment and rendering shared by the template processors
type twigBase struct {
	Base
	svc *Services
}

// Enrich exposes host URLs, front-end libraries and the request parameters
func (p twigBase) Enrich(rc *Context, data Data) error {
	s := p.svc.Settings
	root := p.svc.App.RootURL
	data.Merge(map[string]interface{}{
		"host": map[string]interface{}{
			"root_url": strings.TrimRight(root, "/"),
			"env":      s.Environment,
			"report_url": s.ExecURL + "?&exec_module=" + s.ModuleCode +
				"&exec_page=reporting.php&exec_env=" + s.Environment,
		},
		"lib":     p.svc.Libs.Data(),
		"request": rc.RequestData(),
	})
	return nil
}

func (p twigBase) render(rc *Context, data Data) (*template.Report, error) {
	return p.svc.Templates.Render(templateRequest(rc, data))
}

// renderPDF renders the template and converts it with the configured backend
func (p twigBase) renderPDF(rc *Context, data Data) ([]byte, error) {
	report, err := p.render(rc, data)
	if err != nil {
		return nil, err
	}
	opts := render.Options{Format: rc.Param("page_format")}
	if secs := rc.IntParam("timeout", 0); secs > 0 {
		opts.Timeout = time.Duration(secs) * time.Second
	}
	rc.Tracef("Mode = %s", p.svc.PDF.Name())
	pdf, err := p.svc.PDF.RenderPDF(rc.Ctx(), report.Content, opts)
	if err != nil {
		rc.Tracef("PDF rendering failed: %v", err)
		return nil, err
	}
	return pdf, nil
}

// firstObject returns the record the PDF is named after
func (p twigBase) firstObject(rc *Context) (*model.Object, error) {
	set := rc.ObjectSet()
	if set == nil {
		return nil, model.Validationf("missing required parameter 'filter'")
	}
	objs, err := set.Fetch(rc.Ctx())
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, model.NotFoundf("no %s matches the filter", set.Class())
	}
	return objs[0], nil
}

// pdfFileName is <Ymd_His>_<Class>_<key>.pdf
func pdfFileName(now time.Time, obj *model.Object) string {
	return fmt.Sprintf("%s_%s_%d.pdf", now.Format("20060102_150405"), obj.Class, obj.Key)
}

// TwigProcessor renders the template as the response when no action is given
type TwigProcessor struct {
	twigBase
}

func (p *TwigProcessor) Name() string { return "twig" }

func (p *TwigProcessor) Applicable(rc *Context) bool {
	return rc.Action() == model.ActionHTML
}

func (p *TwigProcessor) Exec(rc *Context, data Data) (bool, error) {
	report, err := p.render(rc, data)
	if err != nil {
		return false, err
	}
	rc.AddOutput([]byte(report.Content))
	return true, nil
}

// TwigToPDFProcessor converts the rendered template to PDF to show, download or attach
type TwigToPDFProcessor struct {
	twigBase
}

func (p *TwigToPDFProcessor) Name() string { return "twig_to_pdf" }

func (p *TwigToPDFProcessor) Applicable(rc *Context) bool {
	switch rc.Action() {
	case model.ActionShowPDF, model.ActionDownloadPDF, model.ActionAttachPDF:
		return true
	}
	return false
}

func (p *TwigToPDFProcessor) Exec(rc *Context, data Data) (bool, error) {
	obj, err := p.firstObject(rc)
	if err != nil {
		return false, err
	}
	pdf, err := p.renderPDF(rc, data)
	if err != nil {
		return false, err
	}
	fileName := pdfFileName(rc.now(), obj)

	switch rc.Action() {
	case model.ActionShowPDF, model.ActionDownloadPDF:
		disposition := "attachment"
		if rc.Action() == model.ActionShowPDF {
			disposition = "inline"
		}
		rc.SetHeader("Content-Type", "application/pdf")
		rc.SetHeader("Content-Disposition", disposition+";filename="+fileName)
		rc.AddOutput(pdf)
		return true, nil

	case model.ActionAttachPDF:
		att := &model.Attachment{
			ItemClass:    obj.Class,
			ItemID:       obj.Key,
			CreationDate: rc.now(),
			Contents: model.AttachmentContents{
				Data:     pdf,
				MimeType: "application/pdf",
				FileName: fileName,
			},
		}
		if u := rc.User(); u != nil {
			att.UserID = u.ID
		}
		if err := p.svc.App.Store.CreateAttachment(rc.Ctx(), att); err != nil {
			return false, fmt.Errorf("failed to attach PDF: %w", err)
		}
		rc.Tracef("Attached %s to %s::%d as attachment %d.", fileName, obj.Class, obj.Key, att.ID)
		rc.SetHeader("Location", p.svc.App.MakeObjectURL(obj.Class, obj.Key))
		return false, nil
	}
	return true, nil
}

// EmailPDFProcessor mails the PDF to the requested recipients and returns to the record
type EmailPDFProcessor struct {
	twigBase
}

func (p *EmailPDFProcessor) Name() string { return "email_pdf" }

func (p *EmailPDFProcessor) Applicable(rc *Context) bool {
	return rc.Action() == model.ActionEmailPDF
}

func (p *EmailPDFProcessor) Exec(rc *Context, data Data) (bool, error) {
	if p.svc.Mailer == nil {
		return false, fmt.Errorf("%w: SMTP is not configured", model.ErrDependencyMissing)
	}
	obj, err := p.firstObject(rc)
	if err != nil {
		return false, err
	}

	recipients := model.ParseRecipients(rc.Param("recipients"), rc.Param("cc"))
	if len(recipients.To) == 0 {
		if email := contactEmail(data); email != "" {
			recipients.To = []string{email}
		}
	}
	if len(recipients.To) == 0 {
		return false, model.Validationf("missing required parameter 'recipients'")
	}
	if err := model.ValidateRecipientDomains(recipients, p.svc.Settings.Email.AllowedDomains); err != nil {
		return false, err
	}

	pdf, err := p.renderPDF(rc, data)
	if err != nil {
		return false, err
	}

	objectURL := p.svc.App.MakeObjectURL(obj.Class, obj.Key)
	title := rc.Param("title")
	if title == "" {
		title = rc.Param("template")
	}
	vars := map[string]string{
		"report.title": title,
		"object.name":  obj.Name(),
		"object.class": obj.Class,
		"object.url":   objectURL,
	}
	subject := mail.InterpolateTemplate(p.svc.Settings.Email.Subject, vars)
	body := mail.InterpolateTemplate(p.svc.Settings.Email.Body, vars)

	if err := p.svc.Mailer.SendReport(recipients, subject, body, pdf, pdfFileName(rc.now(), obj)); err != nil {
		return false, err
	}
	rc.Tracef("Mailed report for %s::%d to %d recipient(s).", obj.Class, obj.Key, len(recipients.To)+len(recipients.CC))
	rc.SetHeader("Location", objectURL)
	return false, nil
}

// contactEmail returns the email field of the current contact
func contactEmail(data Data) string {
	contact, ok := data["current_contact"].(map[string]interface{})
	if !ok {
		return ""
	}
	fields, ok := contact["fields"].(map[string]interface{})
	if !ok {
		return ""
	}
	email, _ := fields["email"].(string)
	return email
}
