package host

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/store"
)

// ObjectSet is a lazily fetched set of records matching a filter
type ObjectSet struct {
	filter  *Filter
	store   *store.Store
	fetched []*model.Object
	loaded  bool
}

// Class returns the class of the records in the set
func (s *ObjectSet) Class() string { return s.filter.Class }

// Filter returns the filter the set was built from
func (s *ObjectSet) Filter() *Filter { return s.filter }

// Count returns the number of matching records
func (s *ObjectSet) Count(ctx context.Context) (int, error) {
	if s.loaded {
		return len(s.fetched), nil
	}
	return s.store.CountObjects(ctx, s.filter.Class, s.filter.storeConditions())
}

// Fetch returns the matching records ordered by key. The result is cached for the set's lifetime.
func (s *ObjectSet) Fetch(ctx context.Context) ([]*model.Object, error) {
	if s.loaded {
		return s.fetched, nil
	}
	objs, err := s.store.FindObjects(ctx, s.filter.Class, s.filter.storeConditions())
	if err != nil {
		return nil, err
	}
	s.fetched = objs
	s.loaded = true
	return objs, nil
}

// Keys returns the keys of the matching records
func (s *ObjectSet) Keys(ctx context.Context) ([]int64, error) {
	objs, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys, nil
}

// Application is the narrow contract the report module needs from the host application
type Application struct {
	Store       *store.Store
	RootURL     string // absolute, with trailing slash
	Environment string
}

// NewApplication wraps a store with the host's URL settings
func NewApplication(st *store.Store, settings *model.Settings) *Application {
	root := settings.AppRootURL
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &Application{Store: st, RootURL: root, Environment: settings.Environment}
}

// NewObjectSet builds an object set after checking the filter's class exists
func (a *Application) NewObjectSet(f *Filter) (*ObjectSet, error) {
	ok, err := a.Store.ClassExists(f.Class)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Validationf("unknown class '%s'", f.Class)
	}
	return &ObjectSet{filter: f, store: a.Store}, nil
}

// ListAttributes returns every attribute code of a class
func (a *Application) ListAttributes(class string) ([]string, error) {
	return a.Store.ListAttributes(class)
}

// MakeObjectURL returns the canonical URL of a record's details page
func (a *Application) MakeObjectURL(class string, key int64) string {
	return fmt.Sprintf("%spages/UI.php?operation=details&class=%s&id=%d", a.RootURL, url.QueryEscape(class), key)
}

// InlineImageNeedle is the relative URL prefix of inline images served by the host
const InlineImageNeedle = "/pages/ajax.document.php?operation=download_inlineimage"
