package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// Orchestrator runs the processor pipeline for one request at a time per Context
type Orchestrator struct {
	registry *Registry
	app      *host.Application
	logger   log.Logger
}

// NewOrchestrator creates an orchestrator over a processor registry
func NewOrchestrator(registry *Registry, app *host.Application) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		app:      app,
		logger:   log.DefaultLogger.With("component", "report"),
	}
}

// DoExec builds the report data and runs the applicable processors.
//
// Enrich and Exec failures are traced and end the pipeline. They are returned only when
// nothing was produced, so output written before the failure still reaches the caller.
func (o *Orchestrator) DoExec(rc *Context) error {
	rc.reset()

	procs := o.registry.Applicable(rc)
	names := make([]string, len(procs))
	for i, p := range procs {
		names[i] = p.Name()
	}
	rc.Tracef("Processors: %s", strings.Join(names, ", "))

	rc.Tracef("Processors: BeforeFetch.")
	for _, p := range procs {
		if err := p.BeforeFetch(rc); err != nil {
			rc.Tracef("%s BeforeFetch failed: %v", p.Name(), err)
			return err
		}
	}

	data := Data{}
	if err := o.fetch(rc, data); err != nil {
		return err
	}
	if err := o.commonData(rc, data); err != nil {
		return err
	}

	rc.Tracef("Processors: Enrich.")
	for _, p := range procs {
		if err := p.Enrich(rc, data); err != nil {
			rc.Tracef("%s Enrich failed: %v", p.Name(), err)
			rc.Fail(fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	if rc.Failure() == nil {
		rc.Tracef("Processors: Execute.")
		for _, p := range procs {
			cont, err := p.Exec(rc, data)
			if err != nil {
				rc.Tracef("%s Exec failed: %v", p.Name(), err)
				rc.Fail(err)
				rc.Stop()
				break
			}
			if !cont {
				rc.Tracef("%s ended the pipeline.", p.Name())
				rc.Stop()
				break
			}
		}
	}
	rc.Tracef("Finished.")

	if err := rc.Failure(); err != nil {
		o.logger.Warn("Report pipeline failed", "trace_id", rc.Tracer().ID(), "error", err)
		if len(rc.Output()) == 0 && rc.Header("Location") == "" {
			return err
		}
	}
	return nil
}

// fetch converts the object set to "item" or "items"
func (o *Orchestrator) fetch(rc *Context, data Data) error {
	set := rc.ObjectSet()
	if set == nil {
		rc.Tracef("There is no filter, so there is no object set.")
		return nil
	}

	attCodes, err := o.attributesToOutput(rc)
	if err != nil {
		return err
	}
	objs, err := set.Fetch(rc.Ctx())
	if err != nil {
		return fmt.Errorf("failed to fetch objects: %w", err)
	}
	rc.Tracef("There are %d objects in the set.", len(objs))
	rc.Tracef("Attributes for %s: %s", set.Class(), strings.Join(attCodes, ", "))

	if rc.View() == model.ViewDetails {
		if len(objs) == 0 {
			return model.NotFoundf("no %s matches the filter", set.Class())
		}
		data["item"] = objs[0].Serialize(attCodes).Map()
		return nil
	}
	items := make([]interface{}, 0, len(objs))
	for _, obj := range objs {
		items = append(items, obj.Serialize(attCodes).Map())
	}
	data["items"] = items
	return nil
}

// attributesToOutput prefers the list set by a processor and falls back to every attribute of the class
func (o *Orchestrator) attributesToOutput(rc *Context) ([]string, error) {
	class := rc.ObjectSet().Class()
	if codes, ok := rc.OptimizedAttCodes(class); ok {
		return codes, nil
	}
	codes, err := o.app.ListAttributes(class)
	if err != nil {
		return nil, err
	}
	rc.SetOptimizedAttCodes(class, codes)
	return codes, nil
}

// commonData exposes the current contact, request parameters and application URL
func (o *Orchestrator) commonData(rc *Context, data Data) error {
	var contact interface{}
	if u := rc.User(); u != nil && u.ContactClass != "" {
		obj, err := o.app.Store.GetObject(u.ContactClass, u.ContactID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			rc.Tracef("Contact %s::%d of user %s does not exist.", u.ContactClass, u.ContactID, u.Login)
		case err != nil:
			return err
		default:
			contact = obj.Serialize(nil).Map()
		}
	}
	data.Merge(map[string]interface{}{
		"current_contact": contact,
		"request":         rc.RequestData(),
		"application": map[string]interface{}{
			"url": o.app.RootURL,
		},
	})
	return nil
}
