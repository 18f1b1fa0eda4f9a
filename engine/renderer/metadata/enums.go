package metadata

import (
	"fmt"
	"sort"
)

// enumTable maps the string names used in resource files to enum values.
type enumTable[T comparable] struct {
	kind  string
	names map[string]T
}

func newEnumTable[T comparable](kind string, names map[string]T) enumTable[T] {
	return enumTable[T]{kind: kind, names: names}
}

func (e enumTable[T]) parse(s string) (T, error) {
	v, ok := e.names[s]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", e.kind, s)
	}
	return v, nil
}

func (e enumTable[T]) name(v T) string {
	for k, n := range e.names {
		if n == v {
			return k
		}
	}
	return fmt.Sprintf("%s(%v)", e.kind, v)
}

// Names returns the accepted strings, sorted.
func (e enumTable[T]) Names() []string {
	out := make([]string, 0, len(e.names))
	for k := range e.names {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
