package template

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// FrontendLib lists the files of a front-end library relative to the modules directory
type FrontendLib struct {
	CSS []string
	JS  []string
}

type sriEntry struct {
	modTime time.Time
	size    int64
	hash    string
}

// FrontendLibs resolves declared front-end libraries to tags with subresource integrity hashes
type FrontendLibs struct {
	moduleDir string
	baseURL   string
	libs      map[string]FrontendLib
	sri       *lru.Cache[string, sriEntry]
}

// NewFrontendLibs declares the bundled libraries of the module plus those configured in settings
func NewFrontendLibs(settings *model.Settings) *FrontendLibs {
	code := settings.ModuleCode
	cache, _ := lru.New[string, sriEntry](64)
	f := &FrontendLibs{
		moduleDir: settings.ModuleDir,
		baseURL:   ModulesURL(settings),
		libs: map[string]FrontendLib{
			"bootstrap": {
				CSS: []string{code + "/vendor/twbs/bootstrap/dist/css/bootstrap.min.css"},
				JS:  []string{code + "/vendor/twbs/bootstrap/dist/js/bootstrap.min.js"},
			},
			"jquery": {
				JS: []string{code + "/vendor/components/jquery/jquery.min.js"},
			},
			"fontawesome": {
				CSS: []string{code + "/vendor/components/font-awesome/css/all.min.css"},
			},
		},
		sri: cache,
	}
	for name, lib := range settings.FrontendLibs {
		f.Declare(name, FrontendLib{CSS: lib.CSS, JS: lib.JS})
	}
	return f
}

// ModulesURL returns the absolute URL of the modules directory
func ModulesURL(settings *model.Settings) string {
	return settings.AppRootURL + "env-" + settings.Environment + "/"
}

// Declare adds or replaces a library
func (f *FrontendLibs) Declare(name string, lib FrontendLib) {
	f.libs[strings.ToLower(name)] = lib
}

// URL returns the absolute URL of a module file
func (f *FrontendLibs) URL(rel string) string {
	return f.baseURL + strings.TrimLeft(rel, "/")
}

// Lookup returns a declared library by case-insensitive name
func (f *FrontendLibs) Lookup(name string) (FrontendLib, bool) {
	lib, ok := f.libs[strings.ToLower(name)]
	return lib, ok
}

// ScriptTags returns <script> tags with integrity hashes for a library's JavaScript files
func (f *FrontendLibs) ScriptTags(name string) string {
	lib, ok := f.Lookup(name)
	if !ok {
		return "<!-- Unknown front-end library: " + name + " -->"
	}
	var sb strings.Builder
	for _, rel := range lib.JS {
		hash, err := f.integrity(rel)
		if err != nil {
			sb.WriteString("<!-- File does not exist: " + rel + " -->")
			continue
		}
		fmt.Fprintf(&sb, "<script src=\"%s\" integrity=\"sha256-%s\"></script>\n", f.URL(rel), hash)
	}
	return sb.String()
}

// StylesheetTags returns <link> tags for a library's CSS files
func (f *FrontendLibs) StylesheetTags(name string) string {
	lib, ok := f.Lookup(name)
	if !ok {
		return "<!-- Unknown front-end library: " + name + " -->"
	}
	var sb strings.Builder
	for _, rel := range lib.CSS {
		if _, err := os.Stat(filepath.Join(f.moduleDir, filepath.FromSlash(rel))); err != nil {
			sb.WriteString("<!-- File does not exist: " + rel + " -->")
			continue
		}
		fmt.Fprintf(&sb, "<link rel=\"stylesheet\" href=\"%s\">\n", f.URL(rel))
	}
	return sb.String()
}

// integrity returns the base64 sha256 digest of a module file, cached until the file changes
func (f *FrontendLibs) integrity(rel string) (string, error) {
	path := filepath.Join(f.moduleDir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if e, ok := f.sri.Get(path); ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		return e.hash, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	sum := base64.StdEncoding.EncodeToString(h.Sum(nil))
	f.sri.Add(path, sriEntry{modTime: info.ModTime(), size: info.Size(), hash: sum})
	return sum, nil
}

// Data returns the "lib" report data entry with library URLs
func (f *FrontendLibs) Data() map[string]interface{} {
	out := make(map[string]interface{})
	for name, lib := range f.libs {
		entry := make(map[string]interface{})
		if len(lib.JS) > 0 {
			entry["js"] = f.URL(lib.JS[0])
		}
		if len(lib.CSS) > 0 {
			entry["css"] = f.URL(lib.CSS[0])
		}
		out[name] = entry
	}
	return out
}
