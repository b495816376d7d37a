package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.AmericanEnglish, Match("EN US"))
	assert.Equal(t, language.Dutch, Match("NL NL"))
	assert.Equal(t, language.Dutch, Match("NL BE"))
	assert.Equal(t, language.AmericanEnglish, Match(""))
	assert.Equal(t, language.AmericanEnglish, Match("not a language"))
}

func TestDictionaryLookup(t *testing.T) {
	en := New("EN US")
	nl := New("NL NL")

	assert.Equal(t, "Show PDF", en.T("UI:Report:ShowPDF"))
	assert.Equal(t, "Toon PDF", nl.T("UI:Report:ShowPDF"))
	assert.Equal(t, "PDF als bijlage", nl.T("UI:Report:AttachPDF"))

	assert.Equal(t, "Fallback", nl.S("UI:Unknown", "Fallback", false))
	assert.Equal(t, "UI:Unknown", en.T("UI:Unknown"))
}
