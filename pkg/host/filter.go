package host

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
	"github.com/FulgerX2007/itsm-report-generator/pkg/store"
)

// Condition is one criterion of a query filter
type Condition struct {
	Attribute string      `json:"attribute"`
	Operator  string      `json:"operator"`
	Value     interface{} `json:"value"`
}

// Filter selects the host records a report is built from
type Filter struct {
	Class      string      `json:"class"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// NewFilter returns a filter on a class
func NewFilter(class string, conds ...Condition) *Filter {
	return &Filter{Class: class, Conditions: conds}
}

// ByKey returns a filter selecting one record
func ByKey(class string, key int64) *Filter {
	return NewFilter(class, Condition{Attribute: "id", Operator: "=", Value: key})
}

// Serialize encodes the filter for use in URLs
func (f *Filter) Serialize() string {
	b, _ := json.Marshal(f)
	return base64.RawURLEncoding.EncodeToString(b)
}

// UnserializeFilter decodes and validates a serialized filter.
// HTML entities are unescaped first since menu URLs carry the filter entity-escaped.
func UnserializeFilter(raw string) (*Filter, error) {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return nil, model.Validationf("missing required parameter 'filter'")
	}

	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, model.Validationf("malformed filter: %v", err)
	}

	var f Filter
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, model.Validationf("malformed filter: %v", err)
	}
	if f.Class == "" {
		return nil, model.Validationf("filter has no class")
	}
	for _, c := range f.Conditions {
		switch strings.ToUpper(c.Operator) {
		case "=", "!=", "IN", "LIKE":
		default:
			return nil, model.Validationf("unsupported filter operator '%s'", c.Operator)
		}
		if strings.ToUpper(c.Operator) == "IN" {
			if _, ok := c.Value.([]interface{}); !ok {
				return nil, model.Validationf("operator IN expects a list for '%s'", c.Attribute)
			}
		}
	}
	return &f, nil
}

func (f *Filter) storeConditions() []store.Condition {
	conds := make([]store.Condition, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		conds = append(conds, store.Condition{Attribute: c.Attribute, Operator: c.Operator, Value: normalizeValue(c.Value)})
	}
	return conds
}

// normalizeValue turns JSON numbers without a fraction into integers
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}

func (f *Filter) String() string {
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Attribute, c.Operator, c.Value))
	}
	if len(parts) == 0 {
		return "SELECT " + f.Class
	}
	return "SELECT " + f.Class + " WHERE " + strings.Join(parts, " AND ")
}
