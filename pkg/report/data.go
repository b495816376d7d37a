package report

// Data is the report document handed to templates. Processors extend it during enrichment.
type Data map[string]interface{}

// Merge adds src into d. Nested maps are merged key by key; any other value replaces the existing one.
func (d Data) Merge(src map[string]interface{}) {
	mergeMaps(d, src)
}

func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		sv, srcIsMap := v.(map[string]interface{})
		dv, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			mergeMaps(dv, sv)
			continue
		}
		dst[k] = v
	}
}

// Item returns the record of a details report
func (d Data) Item() (map[string]interface{}, bool) {
	item, ok := d["item"].(map[string]interface{})
	return item, ok
}

// Items returns the records of a list report
func (d Data) Items() ([]map[string]interface{}, bool) {
	raw, ok := d["items"].([]interface{})
	if !ok {
		return nil, false
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items, true
}
