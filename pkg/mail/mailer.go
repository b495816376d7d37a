package mail

import (
	"crypto/tls"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"gopkg.in/gomail.v2"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// Sender delivers a rendered report
type Sender interface {
	SendReport(recipients model.Recipients, subject, body string, data []byte, filename string) error
}

// Mailer sends reports over SMTP
type Mailer struct {
	config model.SMTPConfig
	logger log.Logger
}

// NewMailer creates a mailer for an SMTP server
func NewMailer(config model.SMTPConfig) *Mailer {
	if config.Port == 0 {
		config.Port = 587
	}
	return &Mailer{
		config: config,
		logger: log.DefaultLogger.With("component", "mail"),
	}
}

// SendReport sends one message with the report attached
func (m *Mailer) SendReport(recipients model.Recipients, subject, body string, data []byte, filename string) error {
	if len(recipients.To) == 0 {
		return model.Validationf("no recipients")
	}
	msg := m.buildMessage(recipients, subject, body, data, filename)

	if err := m.dialer().DialAndSend(msg); err != nil {
		m.logger.Error("Failed to send report", "host", m.config.Host, "recipients", len(recipients.To), "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Info("Report sent", "recipients", len(recipients.To)+len(recipients.CC)+len(recipients.BCC), "attachment", filename)
	return nil
}

// Ping connects to the SMTP server and authenticates without sending anything
func (m *Mailer) Ping() error {
	closer, err := m.dialer().Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s:%d: %w", m.config.Host, m.config.Port, err)
	}
	return closer.Close()
}

func (m *Mailer) dialer() *gomail.Dialer {
	dialer := gomail.NewDialer(m.config.Host, m.config.Port, m.config.Username, m.config.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName:         m.config.Host,
		InsecureSkipVerify: m.config.SkipTLSVerify,
	}
	if !m.config.UseTLS {
		dialer.SSL = false
	}
	return dialer
}

func (m *Mailer) buildMessage(recipients model.Recipients, subject, body string, data []byte, filename string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", recipients.To...)
	if len(recipients.CC) > 0 {
		msg.SetHeader("Cc", recipients.CC...)
	}
	if len(recipients.BCC) > 0 {
		msg.SetHeader("Bcc", recipients.BCC...)
	}
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if len(data) > 0 {
		msg.Attach(filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return msg
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// InterpolateTemplate replaces {{name}} placeholders with values from vars.
// Unknown placeholders are left as they are.
func InterpolateTemplate(tpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}
