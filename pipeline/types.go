package pipeline

import (
	"context"
	"log/slog"

	"github.com/ruteri/host-directory/filter"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/schema"
)

// Kind is the operation kind of a command.
type Kind string

const (
	KindAdd     Kind = "add"
	KindMod     Kind = "mod"
	KindDel     Kind = "del"
	KindFind    Kind = "find"
	KindShow    Kind = "show"
	KindDisable Kind = "disable"
)

// Options are the flags a caller passes next to the payload.
type Options struct {
	// Force skips external existence checks on add.
	Force bool
	// All returns every stored attribute instead of the default set.
	All bool
	// Criteria is a free-text term matched against the search attributes.
	Criteria string
	// Filter is additional filter text in public field names.
	Filter string
	// Attrs restricts the returned fields.
	Attrs []string
	// SizeLimit caps the number of find results; zero means the pipeline default.
	SizeLimit int
}

// Request is one invocation of a command.
type Request struct {
	Key     string
	Fields  map[string][]string
	Options Options
}

// Call is the state of an invocation as it passes through the hooks. Attrs,
// Filter and AttrsList use backend attribute names.
type Call struct {
	Command string
	Kind    Kind
	Options Options

	// Key is the normalized primary key. After resolution it is the canonical key
	// stored on the entry.
	Key string
	ID  interfaces.EntryID

	Attrs         interfaces.Attributes
	ObjectClasses schema.ObjectClassSet

	Filter    *filter.Filter
	AttrsList []string

	Schema  *schema.EntitySchema
	Backend interfaces.DirectoryBackend
	Log     *slog.Logger
}

// PreHook runs before the backend primitive. It may change the call or reject
// it. A non-empty returned set replaces the object classes written by the
// call; an empty set leaves them unchanged.
type PreHook func(ctx context.Context, call *Call) (schema.ObjectClassSet, error)

// PostHook runs on every entry returned by the backend, before shaping. Derived
// fields are added under their public names.
type PostHook func(ctx context.Context, call *Call, entry *interfaces.Entry) error

// Executor replaces the backend primitive of a command entirely.
type Executor func(ctx context.Context, call *Call) (*Result, error)

// Strategy is the set of hooks bound to one operation kind.
type Strategy struct {
	Pre     PreHook
	Post    PostHook
	Execute Executor
	// Summary renders the result summary.
	Summary func(call *Call, res *Result) string
}

// Command binds a name to an entity schema, an operation kind and its hooks.
type Command struct {
	Name     string
	Kind     Kind
	Schema   *schema.EntitySchema
	Strategy Strategy
}

// Record is one shaped entry. Values are []string, or bool for boolean fields.
type Record map[string]any

// RecordOf wraps plain attribute values as a record.
func RecordOf(attrs map[string][]string) Record {
	out := make(Record, len(attrs))
	for name, values := range attrs {
		out[name] = values
	}
	return out
}

// Result is the shaped outcome of a command. Field names are public names.
type Result struct {
	Summary   string   `json:"summary" yaml:"summary"`
	Value     string   `json:"value" yaml:"value"`
	Entry     Record   `json:"result,omitempty" yaml:"result,omitempty"`
	Entries   []Record `json:"results,omitempty" yaml:"results,omitempty"`
	Status    bool     `json:"status,omitempty" yaml:"status,omitempty"`
	Count     int      `json:"count,omitempty" yaml:"count,omitempty"`
	Truncated bool     `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}
