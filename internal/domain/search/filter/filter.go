// Package filter restricts retrieval candidates by metadata field values.
package filter

import "fmt"

// MaxValuesPerFilter bounds allow/deny lists to keep queries sane.
const MaxValuesPerFilter = 32

// Filter restricts one metadata namespace to allowed values and/or away
// from denied values. Filters are applied before ranking.
type Filter struct {
	namespace string
	allow     []string
	deny      []string
}

// New validates and creates a filter. At least one of allow/deny is required.
func New(namespace string, allow, deny []string) (Filter, error) {
	if namespace == "" {
		return Filter{}, fmt.Errorf("filter namespace is required")
	}
	if len(allow) == 0 && len(deny) == 0 {
		return Filter{}, fmt.Errorf("filter %q needs allow or deny values", namespace)
	}
	if len(allow) > MaxValuesPerFilter || len(deny) > MaxValuesPerFilter {
		return Filter{}, fmt.Errorf("filter %q exceeds %d values", namespace, MaxValuesPerFilter)
	}
	return Filter{namespace: namespace, allow: allow, deny: deny}, nil
}

// Namespace returns the metadata field name.
func (f Filter) Namespace() string { return f.namespace }

// Allow returns the allowed values.
func (f Filter) Allow() []string { return f.allow }

// Deny returns the denied values.
func (f Filter) Deny() []string { return f.deny }

// Matches reports whether a candidate's metadata passes the filter.
// Deny wins over allow. An empty allow list permits any non-denied value.
func (f Filter) Matches(attrs map[string]string) bool {
	v := attrs[f.namespace]
	for _, d := range f.deny {
		if v == d {
			return false
		}
	}
	if len(f.allow) == 0 {
		return true
	}
	for _, a := range f.allow {
		if v == a {
			return true
		}
	}
	return false
}

// Set is an ordered collection of filters combined with AND semantics.
type Set []Filter

// Matches reports whether the metadata passes every filter in the set.
func (s Set) Matches(attrs map[string]string) bool {
	for _, f := range s {
		if !f.Matches(attrs) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the set has no filters.
func (s Set) IsEmpty() bool { return len(s) == 0 }
