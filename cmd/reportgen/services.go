package main

import (
	"errors"
	"fmt"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/mail"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/render"
	"github.com/FulgerX2007/itsm-report-generator/pkg/report"
	"github.com/FulgerX2007/itsm-report-generator/pkg/store"
	"github.com/FulgerX2007/itsm-report-generator/pkg/template"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
	"github.com/FulgerX2007/itsm-report-generator/pkg/ui"
)

// services are the long-lived collaborators shared by every request
type services struct {
	settings     *model.Settings
	store        *store.Store
	app          *host.Application
	pdf          render.Backend
	traces       *trace.Writer
	processors   *report.Registry
	elements     *ui.Registry
	orchestrator *report.Orchestrator
	registrar    *ui.Registrar
}

func openServices(settings *model.Settings) (*services, error) {
	var blobs store.BlobStore
	if settings.Storage.Kind == "s3" {
		s3, err := store.NewS3BlobStore(settings.Storage)
		if err != nil {
			return nil, err
		}
		blobs = s3
	}

	st, err := store.NewStore(settings.Database, blobs)
	if err != nil {
		return nil, err
	}

	pdf, err := render.NewBackend(settings)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create PDF backend: %w", err)
	}

	app := host.NewApplication(st, settings)
	libs := template.NewFrontendLibs(settings)
	renderer, err := template.NewRenderer(settings, app, libs, nil)
	if err != nil {
		pdf.Close()
		st.Close()
		return nil, err
	}

	svc := &report.Services{
		Settings:  settings,
		App:       app,
		Templates: renderer,
		Libs:      libs,
		PDF:       pdf,
	}
	if settings.SMTP != nil && settings.SMTP.Host != "" {
		svc.Mailer = mail.NewMailer(*settings.SMTP)
	}

	processors := report.DefaultRegistry(svc)
	elements := ui.RegistryFromSettings(settings)
	return &services{
		settings:     settings,
		store:        st,
		app:          app,
		pdf:          pdf,
		traces:       trace.NewWriter(settings.TraceDir, settings.TraceLog),
		processors:   processors,
		elements:     elements,
		orchestrator: report.NewOrchestrator(processors, app),
		registrar:    ui.NewRegistrar(elements, settings, st),
	}, nil
}

// describe lists the registered processor names and menu element UIDs
func (s *services) describe() (processors, elements []string) {
	for _, p := range s.processors.All() {
		processors = append(processors, p.Name())
	}
	for _, e := range s.elements.All() {
		elements = append(elements, e.UID())
	}
	return processors, elements
}

func (s *services) Close() error {
	return errors.Join(s.pdf.Close(), s.store.Close())
}
