package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
module_code: jb-report-generator
environment: test
app_root_url: https://itsm.example.com
pdf_renderer: external
pdf_external_renderer:
  url: http://renderer:3000/pdf
smtp:
  host: smtp.example.com
  port: 2525
  from: reports@example.com
email:
  allowed_domains: [example.com]
reports:
  - id: ticket
    title: Ticket
    class: UserRequest
    template: detail/basic.twig
    actions: [html, show_pdf]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reportgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	s, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "test", s.Environment)
	assert.Equal(t, "https://itsm.example.com/", s.AppRootURL)
	assert.Equal(t, "https://itsm.example.com/pages/exec.php", s.ExecURL)
	assert.Equal(t, "external", s.PDFRenderer)
	assert.Equal(t, 300, s.ExternalRenderer.TimeoutSeconds)
	require.NotNil(t, s.SMTP)
	assert.Equal(t, 2525, s.SMTP.Port)
	assert.Equal(t, []string{"example.com"}, s.Email.AllowedDomains)
	assert.Equal(t, "0 3 * * *", s.Housekeeping.Schedule)

	require.Len(t, s.Reports, 1)
	assert.Equal(t, 100, s.Reports[0].Precedence)
	assert.Equal(t, []string{"details", "list"}, s.Reports[0].Views)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPORTGEN_LISTEN", ":9090")
	t.Setenv("REPORTGEN_ENV", "staging")
	t.Setenv("REPORTGEN_TRACE_LOG", "true")
	t.Setenv("REPORTGEN_SMTP_PASSWORD", "hunter2")

	s, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, ":9090", s.Listen)
	assert.Equal(t, "staging", s.Environment)
	assert.True(t, s.TraceLog)
	assert.Equal(t, "hunter2", s.SMTP.Password)
	assert.Empty(t, s.Redacted().SMTP.Password)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"external without url": "pdf_renderer: external\n",
		"unknown renderer":     "pdf_renderer: wkhtmltopdf\n",
		"bad schedule":         "housekeeping:\n  schedule: sometimes\n",
		"bad template":         "reports:\n  - id: x\n    template: ../secret.twig\n",
		"malformed yaml":       "reports: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
