package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/i18n"
)

// HelperContext is the per-render state helpers are bound to
type HelperContext struct {
	App  *host.Application
	Dict *i18n.Dictionary
	Libs *FrontendLibs
}

// Helper is a template-callable function, built fresh for every render
type Helper struct {
	Name string
	New  func(hc *HelperContext) interface{}
}

// HelperRegistry holds helpers in registration order
type HelperRegistry struct {
	helpers []Helper
}

// NewHelperRegistry returns an empty registry
func NewHelperRegistry() *HelperRegistry {
	return &HelperRegistry{}
}

// Register adds a helper. A later helper with the same name replaces the earlier one.
func (r *HelperRegistry) Register(h Helper) {
	for i := range r.helpers {
		if r.helpers[i].Name == h.Name {
			r.helpers[i] = h
			return
		}
	}
	r.helpers = append(r.helpers, h)
}

// List returns the registered helpers
func (r *HelperRegistry) List() []Helper {
	return r.helpers
}

// DefaultHelpers returns the built-in helpers
func DefaultHelpers() *HelperRegistry {
	r := NewHelperRegistry()
	r.Register(Helper{Name: "make_object_url", New: makeObjectURL})
	r.Register(Helper{Name: "dict_s", New: dictS})
	r.Register(Helper{Name: "qr", New: func(*HelperContext) interface{} { return QR }})
	r.Register(Helper{Name: "html_script", New: func(hc *HelperContext) interface{} { return hc.Libs.ScriptTags }})
	r.Register(Helper{Name: "html_css", New: func(hc *HelperContext) interface{} { return hc.Libs.StylesheetTags }})
	r.Register(Helper{Name: "guid", New: func(*HelperContext) interface{} { return uuid.NewString }})
	return r
}

func makeObjectURL(hc *HelperContext) interface{} {
	return func(class *pongo2.Value, key *pongo2.Value) string {
		return hc.App.MakeObjectURL(class.String(), objectKey(key.String(), key.Integer()))
	}
}

func objectKey(s string, fallback int) int64 {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return int64(fallback)
}

func dictS(hc *HelperContext) interface{} {
	return func(code string, args ...*pongo2.Value) string {
		def := ""
		userLanguageOnly := false
		if len(args) > 0 && !args[0].IsNil() {
			def = args[0].String()
		}
		if len(args) > 1 {
			userLanguageOnly = args[1].IsTrue()
		}
		return hc.Dict.S(code, def, userLanguageOnly)
	}
}

// QR renders text as an inline PNG QR code image. Empty input yields empty output.
func QR(text string) string {
	if text == "" {
		return ""
	}
	png, err := qrcode.Encode(text, qrcode.Low, -3)
	if err != nil {
		return fmt.Sprintf("<!-- QR code failed: %v -->", err)
	}
	return `<img class="qr" src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(png) + `">`
}

// pongo2 filters get no render context, so the filter forms of bound helpers emit a
// placeholder that Render resolves with the request's HelperContext. Chain them last.
var deferredPattern = regexp.MustCompile("\uE000([a-z_]+):([A-Za-z0-9_-]*)\uE000")

func deferred(name string, args ...string) *pongo2.Value {
	b, _ := json.Marshal(args)
	return pongo2.AsSafeValue("\uE000" + name + ":" + base64.RawURLEncoding.EncodeToString(b) + "\uE000")
}

// resolveDeferred replaces filter placeholders in rendered output
func resolveDeferred(out string, hc *HelperContext) string {
	if !strings.ContainsRune(out, '\uE000') {
		return out
	}
	return deferredPattern.ReplaceAllStringFunc(out, func(m string) string {
		parts := deferredPattern.FindStringSubmatch(m)
		raw, err := base64.RawURLEncoding.DecodeString(parts[2])
		if err != nil {
			return m
		}
		var args []string
		if err := json.Unmarshal(raw, &args); err != nil || len(args) == 0 {
			return m
		}
		switch parts[1] {
		case "dict_s":
			def := ""
			if len(args) > 1 {
				def = args[1]
			}
			return hc.Dict.S(args[0], def, false)
		case "make_object_url":
			if len(args) < 2 || hc.App == nil {
				return m
			}
			return hc.App.MakeObjectURL(args[0], objectKey(args[1], 0))
		}
		return m
	})
}

func init() {
	// {{ value|qr }}
	if !pongo2.FilterExists("qr") {
		pongo2.RegisterFilter("qr", func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			return pongo2.AsSafeValue(QR(in.String())), nil
		})
	}
	// {{ "Code"|dict_s }} or {{ "Code"|dict_s:"default" }}
	if !pongo2.FilterExists("dict_s") {
		pongo2.RegisterFilter("dict_s", func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			if param == nil || param.IsNil() {
				return deferred("dict_s", in.String()), nil
			}
			return deferred("dict_s", in.String(), param.String()), nil
		})
	}
	// {{ item.class|make_object_url:item.key }}
	if !pongo2.FilterExists("make_object_url") {
		pongo2.RegisterFilter("make_object_url", func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			if param == nil || param.IsNil() {
				return nil, &pongo2.Error{Sender: "filter:make_object_url", OrigError: fmt.Errorf("make_object_url requires the object key")}
			}
			key := strconv.FormatInt(objectKey(param.String(), param.Integer()), 10)
			return deferred("make_object_url", in.String(), key), nil
		})
	}
}
