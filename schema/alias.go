package schema

import (
	"fmt"
	"strings"

	"github.com/ruteri/host-directory/filter"
	"github.com/ruteri/host-directory/interfaces"
)

// AliasMapper translates between public field names and backend attribute names.
// Lookups are case-insensitive; names without an alias pass through unchanged.
// The tables are read-only after construction and safe for concurrent use.
type AliasMapper struct {
	toBackend map[string]string
	toPublic  map[string]string
}

// NewAliasMapper builds a mapper from public→backend pairs. A backend name may not
// also be the public name of another alias, which keeps both directions idempotent.
func NewAliasMapper(aliases map[string]string) (*AliasMapper, error) {
	m := &AliasMapper{
		toBackend: make(map[string]string, len(aliases)),
		toPublic:  make(map[string]string, len(aliases)),
	}
	for public, backend := range aliases {
		p, b := strings.ToLower(public), strings.ToLower(backend)
		if prev, ok := m.toPublic[b]; ok {
			return nil, fmt.Errorf("backend attribute %q aliased by both %q and %q", b, prev, public)
		}
		m.toBackend[p] = b
		m.toPublic[b] = public
	}
	for public := range m.toBackend {
		if _, ok := m.toPublic[public]; ok {
			return nil, fmt.Errorf("alias %q is also a backend attribute name", public)
		}
	}
	return m, nil
}

// ToBackend returns the backend attribute name for a public field name.
func (m *AliasMapper) ToBackend(name string) string {
	if b, ok := m.toBackend[strings.ToLower(name)]; ok {
		return b
	}
	return name
}

// ToPublic returns the public field name for a backend attribute name.
func (m *AliasMapper) ToPublic(name string) string {
	if p, ok := m.toPublic[strings.ToLower(name)]; ok {
		return p
	}
	return name
}

// Names maps a requested-attribute list to backend names.
func (m *AliasMapper) Names(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = m.ToBackend(n)
	}
	return out
}

// Payload maps the keys of a write payload to backend names.
func (m *AliasMapper) Payload(attrs interfaces.Attributes) interfaces.Attributes {
	out := make(interfaces.Attributes, len(attrs))
	for k, v := range attrs {
		out.Set(m.ToBackend(k), v...)
	}
	return out
}

// Filter returns a copy of f with public attribute names replaced by backend names.
func (m *AliasMapper) Filter(f *filter.Filter) *filter.Filter {
	return f.Rename(m.ToBackend)
}

// FilterText rewrites the attribute names of filter text. Values are left untouched.
func (m *AliasMapper) FilterText(text string) (string, error) {
	f, err := filter.Parse(text)
	if err != nil {
		return "", err
	}
	return m.Filter(f).String(), nil
}

// Result maps the keys of a result entry back to public names.
func (m *AliasMapper) Result(attrs interfaces.Attributes) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		out[m.ToPublic(k)] = v
	}
	return out
}
