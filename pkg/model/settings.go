package model

import (
	"fmt"
	"strings"
)

// PDF renderer modes
const (
	RendererBrowsershot = "browsershot"
	RendererExternal    = "external"
	RendererBasic       = "basic"
)

// Report actions
const (
	ActionHTML        = ""
	ActionShowPDF     = "show_pdf"
	ActionDownloadPDF = "download_pdf"
	ActionAttachPDF   = "attach_pdf"
	ActionEmailPDF    = "email_pdf"
)

// Settings holds the module settings
type Settings struct {
	ModuleCode     string `yaml:"module_code" json:"module_code"`
	Environment    string `yaml:"environment" json:"environment"`
	AppRootURL     string `yaml:"app_root_url" json:"app_root_url"`
	ExecURL        string `yaml:"exec_url" json:"exec_url"`
	ModuleDir      string `yaml:"module_dir" json:"module_dir"`
	Listen         string `yaml:"listen" json:"listen"`
	Database       string `yaml:"database" json:"database"`
	DefaultLang    string `yaml:"default_language" json:"default_language"`
	PDFRenderer    string `yaml:"pdf_renderer" json:"pdf_renderer"`
	TraceLog       bool   `yaml:"trace_log" json:"trace_log"`
	TraceDir       string `yaml:"trace_dir" json:"trace_dir"`
	CacheTemplates bool   `yaml:"cache_templates" json:"cache_templates"`

	Browsershot      BrowsershotConfig      `yaml:"browsershot" json:"browsershot"`
	ExternalRenderer ExternalRendererConfig `yaml:"pdf_external_renderer" json:"pdf_external_renderer"`
	SMTP             *SMTPConfig            `yaml:"smtp,omitempty" json:"smtp,omitempty"`
	Email            EmailConfig            `yaml:"email" json:"email"`
	Storage          StorageConfig          `yaml:"storage" json:"storage"`
	Housekeeping     HousekeepingConfig     `yaml:"housekeeping" json:"housekeeping"`
	Reports          []ReportEntry          `yaml:"reports" json:"reports"`

	// FrontendLibs adds or replaces libraries for html_script/html_css, keyed by name
	FrontendLibs map[string]FrontendLibConfig `yaml:"frontend_libs" json:"frontend_libs,omitempty"`
}

// FrontendLibConfig lists library files relative to the modules directory
type FrontendLibConfig struct {
	CSS []string `yaml:"css" json:"css,omitempty"`
	JS  []string `yaml:"js" json:"js,omitempty"`
}

// BrowsershotConfig configures the local headless browser strategy
type BrowsershotConfig struct {
	Driver            string `yaml:"driver" json:"driver"` // "rod" (default) or "playwright"
	ChromePath        string `yaml:"chrome_path" json:"chrome_path"`
	IgnoreHTTPSErrors bool   `yaml:"ignore_https_errors" json:"ignore_https_errors"`
	TimeoutSeconds    int    `yaml:"default_timeout_seconds" json:"default_timeout_seconds"`
	PageFormat        string `yaml:"page_format" json:"page_format"`
}

// ExternalRendererConfig configures the external HTTP renderer strategy
type ExternalRendererConfig struct {
	URL                  string `yaml:"url" json:"url"`
	SkipCertificateCheck bool   `yaml:"skip_certificate_check" json:"skip_certificate_check"`
	TimeoutSeconds       int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"-"`
	From          string `yaml:"from" json:"from"`
	UseTLS        bool   `yaml:"use_tls" json:"use_tls"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify" json:"skip_tls_verify"`
}

// EmailConfig holds limits for emailed reports
type EmailConfig struct {
	AllowedDomains []string `yaml:"allowed_domains" json:"allowed_domains,omitempty"` // If empty, all domains are allowed
	Subject        string   `yaml:"subject" json:"subject"`
	Body           string   `yaml:"body" json:"body"`
}

// StorageConfig selects where attachment contents are kept
type StorageConfig struct {
	Kind      string `yaml:"kind" json:"kind"` // "sqlite" (default) or "s3"
	Endpoint  string `yaml:"endpoint" json:"endpoint,omitempty"`
	Region    string `yaml:"region" json:"region,omitempty"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	Bucket    string `yaml:"bucket" json:"bucket,omitempty"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// HousekeepingConfig configures the trace log cleanup job
type HousekeepingConfig struct {
	Schedule      string `yaml:"schedule" json:"schedule"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// ReportEntry declares one report offered in the host's menus
type ReportEntry struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Class       string   `yaml:"class" json:"class"`
	Views       []string `yaml:"views" json:"views"`
	Template    string   `yaml:"template" json:"template"`
	ReportDir   string   `yaml:"reportdir" json:"reportdir,omitempty"`
	Actions     []string `yaml:"actions" json:"actions"`
	Precedence  int      `yaml:"precedence" json:"precedence"`
	ForceButton *bool    `yaml:"force_button" json:"force_button,omitempty"`
}

// ApplyDefaults fills unset values
func (s *Settings) ApplyDefaults() {
	if s.ModuleCode == "" {
		s.ModuleCode = "jb-report-generator"
	}
	if s.Environment == "" {
		s.Environment = "production"
	}
	if s.AppRootURL != "" && !strings.HasSuffix(s.AppRootURL, "/") {
		s.AppRootURL += "/"
	}
	if s.ExecURL == "" {
		s.ExecURL = s.AppRootURL + "pages/exec.php"
	}
	if s.ModuleDir == "" {
		s.ModuleDir = "."
	}
	if s.Listen == "" {
		s.Listen = ":8080"
	}
	if s.Database == "" {
		s.Database = "reportgen.db"
	}
	if s.DefaultLang == "" {
		s.DefaultLang = "EN US"
	}
	if s.PDFRenderer == "" {
		s.PDFRenderer = RendererBrowsershot
	}
	if s.TraceDir == "" {
		s.TraceDir = "log"
	}
	if s.Browsershot.Driver == "" {
		s.Browsershot.Driver = "rod"
	}
	if s.Browsershot.TimeoutSeconds == 0 {
		s.Browsershot.TimeoutSeconds = 60
	}
	if s.Browsershot.PageFormat == "" {
		s.Browsershot.PageFormat = "A4"
	}
	if s.ExternalRenderer.TimeoutSeconds == 0 {
		s.ExternalRenderer.TimeoutSeconds = 300
	}
	if s.Storage.Kind == "" {
		s.Storage.Kind = "sqlite"
	}
	if s.Housekeeping.Schedule == "" {
		s.Housekeeping.Schedule = "0 3 * * *"
	}
	if s.Housekeeping.RetentionDays == 0 {
		s.Housekeeping.RetentionDays = 30
	}
	if s.Email.Subject == "" {
		s.Email.Subject = "{{report.title}}: {{object.name}}"
	}
	if s.Email.Body == "" {
		s.Email.Body = "Please find attached the report for {{object.name}}.\n\n{{object.url}}"
	}
	for i := range s.Reports {
		if s.Reports[i].Precedence == 0 {
			s.Reports[i].Precedence = 100
		}
		if len(s.Reports[i].Views) == 0 {
			s.Reports[i].Views = []string{string(ViewDetails), string(ViewList)}
		}
		if len(s.Reports[i].Actions) == 0 {
			s.Reports[i].Actions = []string{"html"}
		}
	}
}

// Validate checks settings that would otherwise fail at request time
func (s *Settings) Validate() error {
	switch s.PDFRenderer {
	case RendererBrowsershot, RendererBasic:
	case RendererExternal:
		if s.ExternalRenderer.URL == "" {
			return fmt.Errorf("pdf_renderer 'external' requires pdf_external_renderer.url")
		}
	default:
		return fmt.Errorf("unknown pdf_renderer '%s'", s.PDFRenderer)
	}

	switch s.Browsershot.Driver {
	case "rod", "playwright":
	default:
		return fmt.Errorf("unknown browsershot driver '%s'", s.Browsershot.Driver)
	}

	switch s.Storage.Kind {
	case "sqlite":
	case "s3":
		if s.Storage.Endpoint == "" || s.Storage.Bucket == "" {
			return fmt.Errorf("storage kind 's3' requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown storage kind '%s'", s.Storage.Kind)
	}

	if err := ValidateCronExpression(s.Housekeeping.Schedule); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}

	seen := make(map[string]bool)
	for _, r := range s.Reports {
		if r.ID == "" {
			return fmt.Errorf("report entry without id")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate report id '%s'", r.ID)
		}
		seen[r.ID] = true
		if err := ValidateTemplateName(r.Template); err != nil {
			return fmt.Errorf("report '%s': %w", r.ID, err)
		}
		for _, v := range r.Views {
			if _, err := ParseView(v); err != nil {
				return fmt.Errorf("report '%s': %w", r.ID, err)
			}
		}
		for _, a := range r.Actions {
			switch a {
			case "html", ActionShowPDF, ActionDownloadPDF, ActionAttachPDF, ActionEmailPDF:
			default:
				return fmt.Errorf("report '%s': unknown action '%s'", r.ID, a)
			}
		}
	}
	return nil
}

// Redacted returns a copy without credentials
func (s Settings) Redacted() Settings {
	if s.SMTP != nil {
		smtp := *s.SMTP
		smtp.Password = ""
		s.SMTP = &smtp
	}
	s.Storage.AccessKey = ""
	s.Storage.SecretKey = ""
	return s
}
