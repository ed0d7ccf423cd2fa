package schema

import (
	"slices"
	"strings"
)

// ObjectClassSet is an immutable set of object class markers. Comparison is
// case-insensitive and insertion order is preserved. Every method returns a new
// value, so sets can be handed between hooks without aliasing.
type ObjectClassSet struct {
	items []string
}

// NewObjectClassSet creates a set from classes, dropping duplicates.
func NewObjectClassSet(classes ...string) ObjectClassSet {
	return ObjectClassSet{}.With(classes...)
}

// Has reports whether class is in the set.
func (s ObjectClassSet) Has(class string) bool {
	return slices.IndexFunc(s.items, func(c string) bool { return strings.EqualFold(c, class) }) >= 0
}

// HasAll reports whether every class is in the set.
func (s ObjectClassSet) HasAll(classes ...string) bool {
	for _, c := range classes {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one class is in the set.
func (s ObjectClassSet) HasAny(classes ...string) bool {
	return slices.ContainsFunc(classes, s.Has)
}

// With returns a set that also contains classes.
func (s ObjectClassSet) With(classes ...string) ObjectClassSet {
	out := ObjectClassSet{items: slices.Clone(s.items)}
	for _, c := range classes {
		if c != "" && !out.Has(c) {
			out.items = append(out.items, c)
		}
	}
	return out
}

// Without returns a set with classes removed.
func (s ObjectClassSet) Without(classes ...string) ObjectClassSet {
	out := ObjectClassSet{items: make([]string, 0, len(s.items))}
	for _, c := range s.items {
		if !slices.ContainsFunc(classes, func(r string) bool { return strings.EqualFold(r, c) }) {
			out.items = append(out.items, c)
		}
	}
	return out
}

// Len returns the number of classes.
func (s ObjectClassSet) Len() int {
	return len(s.items)
}

// Values returns a copy of the classes.
func (s ObjectClassSet) Values() []string {
	return slices.Clone(s.items)
}

// Equal reports whether both sets hold the same classes regardless of order.
func (s ObjectClassSet) Equal(other ObjectClassSet) bool {
	return s.Len() == other.Len() && s.HasAll(other.items...)
}
