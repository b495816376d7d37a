package model

import (
	"regexp"
	"strings"

	"github.com/gorhill/cronexpr"
)

// Recipients holds email recipient information for emailed reports
type Recipients struct {
	To  []string `json:"to"`
	CC  []string `json:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty"`
}

// ParseRecipients splits comma or semicolon separated address lists
func ParseRecipients(to, cc string) Recipients {
	return Recipients{To: splitAddresses(to), CC: splitAddresses(cc)}
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// templateNamePattern allows letters, digits, dashes, underscores and path separators, followed by one extension.
var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9\-_\\/]+\.[A-Za-z0-9]+$`)

// ValidateTemplateName rejects template names that could escape the module directory.
// It must be called before any file access.
func ValidateTemplateName(name string) error {
	if name == "" {
		return Validationf("missing required parameter 'template'")
	}
	if !templateNamePattern.MatchString(name) {
		return Validationf("invalid template name '%s'", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return Validationf("template name '%s' must be relative", name)
	}
	return nil
}

// ValidateReportDir applies the same rules to the optional report directory (no extension)
func ValidateReportDir(dir string) error {
	if dir == "" {
		return nil
	}
	if !templateNamePattern.MatchString(dir + ".d") {
		return Validationf("invalid report directory '%s'", dir)
	}
	if strings.HasPrefix(dir, "/") || strings.HasPrefix(dir, "\\") {
		return Validationf("report directory '%s' must be relative", dir)
	}
	return nil
}

// ValidateRecipientDomains checks every To/CC/BCC address against allowed.
// An empty list accepts any domain; "*.example.com" also matches example.com.
func ValidateRecipientDomains(recipients Recipients, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, list := range [][]string{recipients.To, recipients.CC, recipients.BCC} {
		for _, addr := range list {
			if addr = strings.TrimSpace(addr); addr == "" {
				continue
			}
			at := strings.LastIndexByte(addr, '@')
			if at <= 0 || at == len(addr)-1 || strings.Count(addr, "@") != 1 {
				return Validationf("invalid email address format: %s", addr)
			}
			domain := strings.ToLower(addr[at+1:])
			if !domainMatches(domain, allowed) {
				return Validationf("email domain '%s' is not allowed (email: %s)", domain, addr)
			}
		}
	}
	return nil
}

func domainMatches(domain string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		base, wildcard := strings.CutPrefix(p, "*.")
		switch {
		case domain == p:
			return true
		case wildcard && (domain == base || strings.HasSuffix(domain, "."+base)):
			return true
		}
	}
	return false
}

// ValidateCronExpression rejects empty or unparseable cron schedules
func ValidateCronExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return Validationf("cron expression cannot be empty")
	}
	if _, err := cronexpr.Parse(expr); err != nil {
		return Validationf("invalid cron expression '%s': %v", expr, err)
	}
	return nil
}
