package model

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTemplateName(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		expectError bool
	}{
		{"simple twig", "basic.twig", false},
		{"nested path", "detail/basic.twig", false},
		{"windows separators", "detail\\basic.html", false},
		{"dashes and underscores", "user-request/list_overview.csv", false},
		{"empty", "", true},
		{"parent traversal", "../../etc/passwd", true},
		{"traversal in the middle", "detail/../../secret.twig", true},
		{"absolute path", "/etc/passwd.txt", true},
		{"no extension", "detail/basic", true},
		{"double extension", "basic.twig.php", true},
		{"null byte", "basic.twig\x00.php", true},
		{"query string", "basic.twig?x=1", true},
		{"spaces", "my report.twig", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplateName(tt.template)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for %q but got none", tt.template)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateReportDir(t *testing.T) {
	if err := ValidateReportDir(""); err != nil {
		t.Errorf("empty report dir should be allowed: %v", err)
	}
	if err := ValidateReportDir("jb-report-generator"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateReportDir("../other-module"); err == nil {
		t.Errorf("expected error for traversal")
	}
}

func TestParseView(t *testing.T) {
	if v, err := ParseView("details"); err != nil || v != ViewDetails {
		t.Errorf("ParseView(details) = %q, %v", v, err)
	}
	if v, err := ParseView("list"); err != nil || v != ViewList {
		t.Errorf("ParseView(list) = %q, %v", v, err)
	}
	for _, raw := range []string{"", "table", "DETAILS"} {
		if _, err := ParseView(raw); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseView(%q) expected validation error, got %v", raw, err)
		}
	}
}

func TestValidateRecipientDomains(t *testing.T) {
	tests := []struct {
		name           string
		recipients     Recipients
		allowedDomains []string
		expectError    bool
		errorContains  string
	}{
		{
			name:           "empty whitelist allows all domains",
			recipients:     Recipients{To: []string{"user@example.com", "admin@company.org"}},
			allowedDomains: []string{},
		},
		{
			name:           "exact domain match",
			recipients:     Recipients{To: []string{"user@example.com"}, CC: []string{"cc@example.com"}},
			allowedDomains: []string{"example.com"},
		},
		{
			name:           "wildcard matches base domain and subdomains",
			recipients:     Recipients{To: []string{"user@example.com", "user@dev.example.com"}},
			allowedDomains: []string{"*.example.com"},
		},
		{
			name:           "case insensitive",
			recipients:     Recipients{To: []string{"User@Example.COM"}},
			allowedDomains: []string{"example.com"},
		},
		{
			name:           "domain not in whitelist",
			recipients:     Recipients{To: []string{"user@example.com", "user@forbidden.com"}},
			allowedDomains: []string{"example.com"},
			expectError:    true,
			errorContains:  "forbidden.com",
		},
		{
			name:           "invalid email format",
			recipients:     Recipients{To: []string{"not-an-email"}},
			allowedDomains: []string{"example.com"},
			expectError:    true,
			errorContains:  "invalid email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipientDomains(tt.recipients, tt.allowedDomains)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error message '%s' does not contain '%s'", err.Error(), tt.errorContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseRecipients(t *testing.T) {
	r := ParseRecipients(" a@example.com, b@example.com;c@example.com ,", "")
	if len(r.To) != 3 || r.To[2] != "c@example.com" {
		t.Errorf("unexpected recipients: %#v", r.To)
	}
	if len(r.CC) != 0 {
		t.Errorf("expected no CC, got %#v", r.CC)
	}
}

func TestValidateCronExpression(t *testing.T) {
	for _, expr := range []string{"0 3 * * *", "*/15 * * * *", "0 0 1 * *"} {
		if err := ValidateCronExpression(expr); err != nil {
			t.Errorf("ValidateCronExpression(%q) unexpected error: %v", expr, err)
		}
	}
	if err := ValidateCronExpression(""); err == nil || !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("expected empty expression error, got %v", err)
	}
	if err := ValidateCronExpression("invalid cron"); err == nil {
		t.Errorf("expected error for invalid expression")
	}
}

func TestSettingsDefaultsAndValidate(t *testing.T) {
	s := &Settings{AppRootURL: "https://itsm.example.com"}
	s.Reports = []ReportEntry{{ID: "ur", Title: "Request", Class: "UserRequest", Template: "detail/basic.twig"}}
	s.ApplyDefaults()

	if s.AppRootURL != "https://itsm.example.com/" {
		t.Errorf("app root url should end with a slash, got %q", s.AppRootURL)
	}
	if s.ExecURL != "https://itsm.example.com/pages/exec.php" {
		t.Errorf("unexpected exec url %q", s.ExecURL)
	}
	if s.ModuleCode != "jb-report-generator" || s.Browsershot.TimeoutSeconds != 60 || s.ExternalRenderer.TimeoutSeconds != 300 {
		t.Errorf("defaults not applied: %+v", s)
	}
	if s.Reports[0].Precedence != 100 || len(s.Reports[0].Views) != 2 {
		t.Errorf("report defaults not applied: %+v", s.Reports[0])
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	s.PDFRenderer = RendererExternal
	if err := s.Validate(); err == nil {
		t.Errorf("external renderer without url should fail validation")
	}
	s.PDFRenderer = "wkhtmltopdf"
	if err := s.Validate(); err == nil {
		t.Errorf("unknown renderer should fail validation")
	}
	s.PDFRenderer = RendererBasic
	s.Reports[0].Template = "../x.twig"
	if err := s.Validate(); err == nil {
		t.Errorf("invalid template should fail validation")
	}
}

func TestObjectSerialize(t *testing.T) {
	obj := &Object{Class: "UserRequest", Key: 12, Fields: Fields{"title": "Printer", "status": "new", "caller_id": 3}}

	so := obj.Serialize([]string{"id", "title"})
	if len(so.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(so.Fields), so.Fields)
	}
	if so.Fields["id"] != int64(12) || so.Fields["title"] != "Printer" {
		t.Errorf("unexpected fields %v", so.Fields)
	}

	all := obj.Serialize(nil)
	if len(all.Fields) != 4 {
		t.Errorf("expected all fields plus id, got %v", all.Fields)
	}
}
