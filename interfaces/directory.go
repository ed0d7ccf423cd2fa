package interfaces

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/ruteri/host-directory/filter"
)

// EntryID is the opaque backend identifier of an entry (its distinguished name).
type EntryID string

// String returns the identifier as a string.
func (id EntryID) String() string {
	return string(id)
}

// Child returns the identifier of an entry directly below id.
func (id EntryID) Child(rdnAttr, rdnValue string) EntryID {
	return EntryID(rdnAttr + "=" + rdnValue + "," + string(id))
}

// Under reports whether id is base itself or lies below it.
func (id EntryID) Under(base EntryID) bool {
	if base == "" {
		return true
	}
	a, b := strings.ToLower(string(id)), strings.ToLower(string(base))
	return a == b || strings.HasSuffix(a, ","+b)
}

// Parent returns the identifier one level up, or "" for a single RDN.
func (id EntryID) Parent() EntryID {
	_, rest, ok := strings.Cut(string(id), ",")
	if !ok {
		return ""
	}
	return EntryID(rest)
}

// AllAttributes requests every stored attribute.
const AllAttributes = "*"

// Attributes maps lowercase backend attribute names to their values.
type Attributes map[string][]string

// Get returns the first value of name, or "".
func (a Attributes) Get(name string) string {
	if v := a[strings.ToLower(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether name carries at least one value.
func (a Attributes) Has(name string) bool {
	return len(a[strings.ToLower(name)]) > 0
}

// Set replaces the values of name.
func (a Attributes) Set(name string, values ...string) {
	a[strings.ToLower(name)] = values
}

// Delete removes name.
func (a Attributes) Delete(name string) {
	delete(a, strings.ToLower(name))
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = slices.Clone(v)
	}
	return c
}

// Project keeps only the requested attribute names. Nil, empty or "*" keeps everything.
func (a Attributes) Project(names []string) Attributes {
	if len(names) == 0 || slices.Contains(names, AllAttributes) {
		return a.Clone()
	}
	out := make(Attributes, len(names))
	for _, n := range names {
		n = strings.ToLower(n)
		if v, ok := a[n]; ok {
			out[n] = slices.Clone(v)
		}
	}
	return out
}

// Entry is a directory entry as exchanged with the backend.
type Entry struct {
	ID    EntryID
	Attrs Attributes
}

// Scope limits a search relative to its base.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

// SearchRequest describes one page of a paginated search.
type SearchRequest struct {
	Base      EntryID
	Scope     Scope
	Filter    *filter.Filter
	Attrs     []string
	SizeLimit int
	// Cursor continues a previous page; empty starts from the beginning.
	Cursor string
}

// SearchPage is one page of search results.
type SearchPage struct {
	Entries   []*Entry
	Cursor    string
	Truncated bool
}

// DirectoryBackend is the sole I/O boundary of the host pipeline.
// All attribute names crossing it are backend names.
type DirectoryBackend interface {
	// GetEntry fetches an entry by identifier. Returns ErrNotFound if absent.
	GetEntry(ctx context.Context, id EntryID, attrs []string) (*Entry, error)

	// FindByAttribute returns the first entry below base whose attribute equals value
	// and that carries every object class listed. Returns ErrNotFound if none matches.
	FindByAttribute(ctx context.Context, attr, value string, objectClasses []string, attrs []string, base EntryID) (*Entry, error)

	// Search returns a single page; callers loop while Truncated is set.
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)

	// CreateEntry adds a new entry. Returns ErrAlreadyExists if the identifier is taken.
	CreateEntry(ctx context.Context, entry *Entry) error

	// UpdateEntry replaces the listed attributes; an empty value list removes the attribute.
	UpdateEntry(ctx context.Context, id EntryID, attrs Attributes) error

	// DeleteEntry removes an entry.
	DeleteEntry(ctx context.Context, id EntryID) error

	// RemoveKeyMaterial clears the principal keys of an entry. Returns ErrNotFound if none present.
	RemoveKeyMaterial(ctx context.Context, id EntryID) error
}

// PageFunc fetches the page following cursor; an empty cursor requests the first page.
type PageFunc[P any] func(ctx context.Context, cursor string) (page P, next string, truncated bool, err error)

// Pages walks a cursor-based listing lazily, one fetch per page. Ranging over the
// sequence again starts from the first page, so it can be restarted after the
// underlying data changed. Iteration stops after the first error.
func Pages[P any](ctx context.Context, fetch PageFunc[P]) iter.Seq2[P, error] {
	return func(yield func(P, error) bool) {
		cursor := ""
		for {
			page, next, truncated, err := fetch(ctx, cursor)
			if err != nil {
				yield(page, err)
				return
			}
			if !yield(page, nil) || !truncated {
				return
			}
			cursor = next
		}
	}
}
