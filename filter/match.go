package filter

import (
	"strings"
)

// Match evaluates the filter against attrs, whose keys must be lowercase.
// Attribute names in the filter are compared case-insensitively, values
// with case-insensitive string matching.
func (f *Filter) Match(attrs map[string][]string) bool {
	switch f.Type {
	case And:
		for _, c := range f.Children {
			if !c.Match(attrs) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range f.Children {
			if c.Match(attrs) {
				return true
			}
		}
		return false
	case Not:
		return !f.Child.Match(attrs)
	}

	values := attrs[strings.ToLower(f.Attribute)]
	if f.Type == Present {
		return len(values) > 0
	}

	for _, v := range values {
		if f.matchValue(v) {
			return true
		}
	}
	return false
}

func (f *Filter) matchValue(v string) bool {
	switch f.Type {
	case Equality:
		return strings.EqualFold(v, f.Value)
	case GreaterOrEqual:
		return strings.ToLower(v) >= strings.ToLower(f.Value)
	case LessOrEqual:
		return strings.ToLower(v) <= strings.ToLower(f.Value)
	case Substring:
		return matchSubstring(strings.ToLower(v), f)
	}
	return false
}

func matchSubstring(value string, f *Filter) bool {
	initial := strings.ToLower(f.Initial)
	if !strings.HasPrefix(value, initial) {
		return false
	}
	pos := len(initial)

	for _, part := range f.Any {
		part = strings.ToLower(part)
		idx := strings.Index(value[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	return strings.HasSuffix(value[pos:], strings.ToLower(f.Final))
}
