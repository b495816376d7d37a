package report

import (
	"sort"
)

// Processor is one stage of the report pipeline
type Processor interface {
	// Name identifies the processor in traces
	Name() string
	// Rank orders execution, lowest first
	Rank() int
	// Applicable is decided from the request before anything is fetched
	Applicable(rc *Context) bool
	// BeforeFetch may narrow the attributes fetched for the object set
	BeforeFetch(rc *Context) error
	// Enrich adds to the report data. Every applicable processor is enriched before any executes.
	Enrich(rc *Context, data Data) error
	// Exec produces output. Returning false ends the pipeline.
	Exec(rc *Context, data Data) (bool, error)
}

// Base provides no-op hooks for processors to embed
type Base struct{}

func (Base) Rank() int { return 50 }

func (Base) BeforeFetch(*Context) error { return nil }

func (Base) Enrich(*Context, Data) error { return nil }

func (Base) Exec(*Context, Data) (bool, error) { return true, nil }

// Registry holds processors in registration order
type Registry struct {
	procs []Processor
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a processor
func (r *Registry) Register(p Processor) {
	r.procs = append(r.procs, p)
}

// All returns the registered processors
func (r *Registry) All() []Processor {
	return r.procs
}

// Applicable returns the processors applicable to a request sorted by rank.
// Equal ranks keep registration order.
func (r *Registry) Applicable(rc *Context) []Processor {
	var out []Processor
	for _, p := range r.procs {
		if p.Applicable(rc) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}
