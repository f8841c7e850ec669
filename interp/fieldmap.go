package interp

import "strings"

// fieldMap is the NamedNumericFieldMap of spec.md §3: the live mapping from
// a named numeric field's dotted path to its last-read value, mutated once
// per completed atomic field during a parse and discarded with it.
type fieldMap struct {
	values map[string]int64
}

func newFieldMap() *fieldMap {
	return &fieldMap{values: map[string]int64{}}
}

func (m *fieldMap) set(path string, v int64) {
	m.values[path] = v
}

// scoped binds a fieldMap to one struct-nesting scope, implementing
// eval.FieldValues for expressions compiled at that scope. Lookup walks
// outward from scopePath per spec.md §4.3: first the exact dotted path
// qualified by the current scope, then each enclosing scope in turn,
// finally the name taken as already fully qualified (or a root-level bare
// name).
type scoped struct {
	scopePath string
	m         *fieldMap
}

func (s scoped) Lookup(name string) (int64, bool) {
	prefix := s.scopePath
	for {
		candidate := name
		if prefix != "" {
			candidate = prefix + "." + name
		}
		if v, ok := s.m.values[candidate]; ok {
			return v, true
		}
		if prefix == "" {
			return 0, false
		}
		if i := strings.LastIndex(prefix, "."); i >= 0 {
			prefix = prefix[:i]
		} else {
			prefix = ""
		}
	}
}
