package dose

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by the store when an id no longer exists.
var ErrNotFound = errors.New("not found")

// ValidationError lists the draft fields that were missing or invalid.
type ValidationError struct {
	Fields map[string]string // field -> problem
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "missing or invalid fields: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = problem
	}
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}
