package workload

// Merge merges two JSON-shaped objects recursively, preferring b's values:
// shared map keys merge recursively, shared list keys concatenate a's
// elements then b's, and anything else takes b's value. Neither input is
// mutated; copying is shallow where safe.
//
// The administrator's job template is merged as b over every user submission,
// so template-pinned fields (node affinity, backoff, security settings)
// cannot be overridden by the user.
func Merge(a, b map[string]any) map[string]any {
	if len(b) == 0 {
		return a
	}
	merged := make(map[string]any, len(a)+len(b))
	for key, val := range a {
		merged[key] = val
	}
	for key, bVal := range b {
		aVal, ok := merged[key]
		if !ok {
			merged[key] = bVal
			continue
		}
		aMap, aIsMap := aVal.(map[string]any)
		bMap, bIsMap := bVal.(map[string]any)
		if aIsMap && bIsMap {
			merged[key] = Merge(aMap, bMap)
			continue
		}
		aList, aIsList := aVal.([]any)
		bList, bIsList := bVal.([]any)
		if aIsList && bIsList {
			joined := make([]any, 0, len(aList)+len(bList))
			joined = append(joined, aList...)
			joined = append(joined, bList...)
			merged[key] = joined
			continue
		}
		merged[key] = bVal
	}
	return merged
}

// PruneNulls removes keys holding nil, an empty list, or an empty map,
// recursing into nested maps. A map that only becomes empty through pruning
// is kept; emptiness is judged before descending, in a single pass.
//
// The loaded job template passes through here so that absent fields in the
// template YAML do not overwrite user values as explicit nulls during Merge.
func PruneNulls(m map[string]any) {
	for key, val := range m {
		switch v := val.(type) {
		case nil:
			delete(m, key)
		case []any:
			if len(v) == 0 {
				delete(m, key)
			}
		case map[string]any:
			if len(v) == 0 {
				delete(m, key)
			} else {
				PruneNulls(v)
			}
		}
	}
}
