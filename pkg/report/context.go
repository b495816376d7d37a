package report

import (
	"bytes"
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/trace"
)

// Context is the state of one report request. It is created per request and never shared.
type Context struct {
	ctx    context.Context
	set    *host.ObjectSet
	view   model.View
	params url.Values
	user   *model.User
	lang   string
	tracer *trace.Tracer
	now    func() time.Time

	headers  map[string]string
	output   bytes.Buffer
	stopped  bool
	failure  error
	attCodes map[string][]string
}

// NewContext starts a request context. params holds the merged query and form values.
func NewContext(ctx context.Context, params url.Values, user *model.User, tracer *trace.Tracer) *Context {
	if params == nil {
		params = url.Values{}
	}
	lang := i18n.DefaultLanguage
	if user != nil && user.Language != "" {
		lang = user.Language
	}
	return &Context{
		ctx:      ctx,
		params:   params,
		user:     user,
		lang:     lang,
		tracer:   tracer,
		now:      time.Now,
		headers:  make(map[string]string),
		attCodes: make(map[string][]string),
	}
}

// Ctx returns the request's context.Context
func (rc *Context) Ctx() context.Context { return rc.ctx }

// SetObjectSet sets the records the report is about
func (rc *Context) SetObjectSet(set *host.ObjectSet) { rc.set = set }

// ObjectSet returns the records the report is about, or nil
func (rc *Context) ObjectSet() *host.ObjectSet { return rc.set }

// Class returns the class of the object set, or ""
func (rc *Context) Class() string {
	if rc.set == nil {
		return ""
	}
	return rc.set.Class()
}

// SetView sets the report shape
func (rc *Context) SetView(v model.View) { rc.view = v }

// View returns the report shape
func (rc *Context) View() model.View { return rc.view }

// User returns the authenticated user
func (rc *Context) User() *model.User { return rc.user }

// Language returns the user's language code
func (rc *Context) Language() string { return rc.lang }

// Tracer returns the request's tracer
func (rc *Context) Tracer() *trace.Tracer { return rc.tracer }

// Tracef writes a trace line for this request
func (rc *Context) Tracef(format string, args ...interface{}) { rc.tracer.Tracef(format, args...) }

// Param returns a request parameter
func (rc *Context) Param(name string) string { return rc.params.Get(name) }

// IntParam returns a request parameter as an integer, or def when absent or invalid
func (rc *Context) IntParam(name string, def int) int {
	v, err := strconv.Atoi(rc.params.Get(name))
	if err != nil {
		return def
	}
	return v
}

// Action returns the requested report action
func (rc *Context) Action() string { return rc.params.Get("action") }

// RequestData returns the request parameters as report data.
// Repeated parameters become lists.
func (rc *Context) RequestData() map[string]interface{} {
	out := make(map[string]interface{}, len(rc.params))
	for k, vs := range rc.params {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		list := make([]interface{}, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		out[k] = list
	}
	return out
}

// SetHeader records a response header. Later values replace earlier ones.
func (rc *Context) SetHeader(name, value string) {
	rc.tracer.Tracef("Set header %s: %s", name, value)
	rc.headers[name] = value
}

// Header returns one recorded header
func (rc *Context) Header(name string) string { return rc.headers[name] }

// Headers returns the recorded headers in name order
func (rc *Context) Headers() [][2]string {
	names := make([]string, 0, len(rc.headers))
	for name := range rc.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([][2]string, 0, len(names))
	for _, name := range names {
		out = append(out, [2]string{name, rc.headers[name]})
	}
	return out
}

// AddOutput appends to the buffered response body
func (rc *Context) AddOutput(b []byte) {
	rc.tracer.Tracef("Adding output (%d bytes)", len(b))
	rc.output.Write(b)
}

// Output returns the buffered response body
func (rc *Context) Output() []byte { return rc.output.Bytes() }

// Stop marks the pipeline as finished
func (rc *Context) Stop() { rc.stopped = true }

// Stopped reports whether a processor ended the pipeline
func (rc *Context) Stopped() bool { return rc.stopped }

// Fail records the first failure of the run
func (rc *Context) Fail(err error) {
	if rc.failure == nil {
		rc.failure = err
	}
}

// Failure returns the recorded failure, or nil
func (rc *Context) Failure() error { return rc.failure }

// SetOptimizedAttCodes limits the attributes fetched for a class
func (rc *Context) SetOptimizedAttCodes(class string, codes []string) {
	rc.attCodes[class] = codes
}

// OptimizedAttCodes returns the attribute list set for a class
func (rc *Context) OptimizedAttCodes(class string) ([]string, bool) {
	codes, ok := rc.attCodes[class]
	return codes, ok && len(codes) > 0
}

// reset clears the response state before a run
func (rc *Context) reset() {
	rc.headers = make(map[string]string)
	rc.output.Reset()
	rc.stopped = false
	rc.failure = nil
}
