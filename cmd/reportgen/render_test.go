package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

func TestRequestParams(t *testing.T) {
	opts := &RenderOptions{
		View:      "details",
		Template:  "detail/basic.twig",
		ReportDir: "reports",
		Action:    model.ActionShowPDF,
		Params:    []string{"page_format=Letter", "timeout=30", "template=ignored.twig"},
	}
	v, err := opts.requestParams()
	require.NoError(t, err)
	assert.Equal(t, "Letter", v.Get("page_format"))
	assert.Equal(t, "30", v.Get("timeout"))
	assert.Equal(t, "detail/basic.twig", v.Get("template"))
	assert.Equal(t, "reports", v.Get("reportdir"))
	assert.Equal(t, "show_pdf", v.Get("action"))

	opts.Params = []string{"novalue"}
	_, err = opts.requestParams()
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"serve", "render", "menu"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestOpenServicesRegistersComponents(t *testing.T) {
	dir := t.TempDir()
	settings := &model.Settings{
		AppRootURL:  "https://itsm.example.com/",
		ModuleDir:   dir,
		Database:    filepath.Join(dir, "reportgen.db"),
		PDFRenderer: model.RendererBasic,
		TraceDir:    filepath.Join(dir, "log"),
		TraceLog:    true,
		Reports: []model.ReportEntry{{
			ID:       "ticket",
			Class:    "UserRequest",
			Template: "detail/basic.twig",
			Actions:  []string{"html", model.ActionShowPDF},
		}},
	}
	settings.ApplyDefaults()

	svc, err := openServices(settings)
	require.NoError(t, err)
	defer svc.Close()

	processors, elements := svc.describe()
	assert.Equal(t, []string{"attributes", "attachments", "twig", "twig_to_pdf", "email_pdf"}, processors)
	assert.Equal(t, []string{"jb-report-generator_ticket_html", "jb-report-generator_ticket_show_pdf"}, elements)
	assert.True(t, svc.traces.Enabled())
	assert.Equal(t, settings.TraceDir, svc.traces.Dir())
	assert.Equal(t, "basic", svc.pdf.Name())
}
