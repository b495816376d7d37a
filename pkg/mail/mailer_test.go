package mail

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

func TestInterpolateTemplate(t *testing.T) {
	vars := map[string]string{
		"report.title": "Ticket summary",
		"object.name":  "R-000012",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "{{report.title}}: {{object.name}}", "Ticket summary: R-000012"},
		{"spaces", "{{ object.name }}", "R-000012"},
		{"unknown kept", "{{object.url}}", "{{object.url}}"},
		{"no placeholders", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InterpolateTemplate(tt.in, vars); got != tt.want {
				t.Fatalf("InterpolateTemplate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	m := NewMailer(model.SMTPConfig{Host: "smtp.example.com", From: "reports@example.com"})
	msg := m.buildMessage(
		model.Recipients{To: []string{"jane@example.com"}, CC: []string{"desk@example.com"}},
		"Ticket summary", "See attachment", []byte("%PDF-1.4"), "20261018_101500_UserRequest_12.pdf",
	)

	assert.Equal(t, []string{"jane@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"desk@example.com"}, msg.GetHeader("Cc"))
	assert.Empty(t, msg.GetHeader("Bcc"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "20261018_101500_UserRequest_12.pdf")
	assert.Contains(t, buf.String(), "application/pdf")
}

func TestSendReportRequiresRecipients(t *testing.T) {
	m := NewMailer(model.SMTPConfig{Host: "smtp.example.com"})
	err := m.SendReport(model.Recipients{}, "s", "b", nil, "x.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}
