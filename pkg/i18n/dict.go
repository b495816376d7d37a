package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is the host's fallback language code
const DefaultLanguage = "EN US"

var entries = map[language.Tag]map[string]string{
	language.AmericanEnglish: {
		"UI:Report:ShowPDF":     "Show PDF",
		"UI:Report:DownloadPDF": "Download PDF",
		"UI:Report:AttachPDF":   "Attach PDF",
		"UI:Report:EmailPDF":    "Email PDF",
		"UI:Report:Error":       "The report could not be generated",
		"UI:Report:EmailSent":   "The report was sent",
	},
	language.Dutch: {
		"UI:Report:ShowPDF":     "Toon PDF",
		"UI:Report:DownloadPDF": "Download PDF",
		"UI:Report:AttachPDF":   "PDF als bijlage",
		"UI:Report:EmailPDF":    "PDF mailen",
		"UI:Report:Error":       "Het rapport kon niet worden gegenereerd",
		"UI:Report:EmailSent":   "Het rapport werd verzonden",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.AmericanEnglish, language.Dutch})

// Dictionary resolves localized strings for one language
type Dictionary struct {
	lang language.Tag
}

// New returns the dictionary best matching a host language code such as "EN US" or "NL NL"
func New(code string) *Dictionary {
	return &Dictionary{lang: Match(code)}
}

// Match maps a host language code to a supported language
func Match(code string) language.Tag {
	parts := strings.Fields(code)
	if len(parts) == 0 {
		return language.AmericanEnglish
	}
	raw := strings.ToLower(parts[0])
	if len(parts) > 1 {
		raw += "-" + strings.ToUpper(parts[1])
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.AmericanEnglish
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.AmericanEnglish
	}
	return []language.Tag{language.AmericanEnglish, language.Dutch}[idx]
}

// Language returns the matched language
func (d *Dictionary) Language() language.Tag { return d.lang }

// S returns the string for code. When the user's language has no entry it falls back to
// English unless userLanguageOnly is set, then to def, then to the code itself.
func (d *Dictionary) S(code, def string, userLanguageOnly bool) string {
	if v, ok := entries[d.lang][code]; ok {
		return v
	}
	if !userLanguageOnly {
		if v, ok := entries[language.AmericanEnglish][code]; ok {
			return v
		}
	}
	if def != "" {
		return def
	}
	return code
}

// T is S without a default
func (d *Dictionary) T(code string) string {
	return d.S(code, "", false)
}
