package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/host-directory/filter"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/schema"
)

// DefaultSizeLimit caps find results when neither the caller nor the pipeline sets a limit.
const DefaultSizeLimit = 100

// Pipeline runs commands against a directory backend: resolve the key,
// normalize the payload, run the pre-hook, call the backend, run the post-hook
// and shape the result. It holds no state between invocations.
type Pipeline struct {
	backend   interfaces.DirectoryBackend
	sizeLimit int
	log       *slog.Logger
}

// NewPipeline creates a pipeline over backend. sizeLimit is the default cap on
// find results.
func NewPipeline(backend interfaces.DirectoryBackend, sizeLimit int, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	return &Pipeline{
		backend:   backend,
		sizeLimit: sizeLimit,
		log:       log,
	}
}

// Run executes one invocation of cmd.
func (p *Pipeline) Run(ctx context.Context, cmd Command, req Request) (*Result, error) {
	start := time.Now()
	log := p.log.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("command", cmd.Name),
	)

	call := &Call{
		Command: cmd.Name,
		Kind:    cmd.Kind,
		Options: req.Options,
		Key:     req.Key,
		Schema:  cmd.Schema,
		Backend: p.backend,
		Log:     log,
	}

	res, err := p.run(ctx, cmd, call, req)
	if err != nil {
		log.Error("Command failed",
			slog.String("key", call.Key),
			slog.Duration("duration", time.Since(start)),
			"err", err)
		return nil, err
	}

	if cmd.Strategy.Summary != nil {
		res.Summary = cmd.Strategy.Summary(call, res)
	}

	log.Info("Command completed",
		slog.String("key", call.Key),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, cmd Command, call *Call, req Request) (*Result, error) {
	if cmd.Schema == nil {
		return nil, fmt.Errorf("command %s has no schema", cmd.Name)
	}
	if err := p.prepare(ctx, call, req); err != nil {
		return nil, err
	}

	if cmd.Strategy.Pre != nil {
		classes, err := cmd.Strategy.Pre(ctx, call)
		if err != nil {
			return nil, err
		}
		if classes.Len() > 0 {
			call.ObjectClasses = classes
		}
	}

	if cmd.Strategy.Execute != nil {
		return cmd.Strategy.Execute(ctx, call)
	}

	switch cmd.Kind {
	case KindAdd:
		return p.add(ctx, cmd, call)
	case KindMod:
		return p.modify(ctx, cmd, call)
	case KindDel:
		return p.delete(ctx, call)
	case KindFind:
		return p.find(ctx, cmd, call)
	case KindShow:
		return p.single(ctx, cmd, call)
	default:
		return nil, fmt.Errorf("command %s: operation kind %q needs an executor", cmd.Name, cmd.Kind)
	}
}

// prepare resolves the key and normalizes the payload. Validation failures are
// reported before any backend call.
func (p *Pipeline) prepare(ctx context.Context, call *Call, req Request) error {
	s := call.Schema

	switch call.Kind {
	case KindAdd:
		key, err := s.NormalizeKey(req.Key, true)
		if err != nil {
			return err
		}
		attrs, err := s.Normalize(req.Fields, schema.ModeCreate)
		if err != nil {
			return err
		}
		call.Key = key
		call.ID = s.DN(key)
		call.Attrs = attrs
		call.ObjectClasses = schema.NewObjectClassSet(s.ObjectClasses...)
		call.AttrsList = requestedAttrs(s, call.Options)
		return nil

	case KindMod:
		key, err := s.NormalizeKey(req.Key, true)
		if err != nil {
			return err
		}
		attrs, err := s.Normalize(req.Fields, schema.ModeUpdate)
		if err != nil {
			return err
		}
		if len(attrs) == 0 {
			return &interfaces.ValidationError{Field: s.PrimaryKey().Name, Value: key, Reason: "no modifications to be performed"}
		}
		call.Attrs = attrs
		call.AttrsList = requestedAttrs(s, call.Options)
		return p.resolve(ctx, call, key)

	case KindDel, KindShow, KindDisable:
		key, err := s.NormalizeKey(req.Key, false)
		if err != nil {
			return err
		}
		call.AttrsList = requestedAttrs(s, call.Options)
		return p.resolve(ctx, call, key)

	case KindFind:
		attrs, err := s.Normalize(req.Fields, schema.ModeSearch)
		if err != nil {
			return err
		}
		f, err := searchFilter(s, call.Options, attrs)
		if err != nil {
			return err
		}
		call.Key = call.Options.Criteria
		call.Attrs = attrs
		call.Filter = f
		// Find hooks see requested names as given.
		call.AttrsList = slices.Clone(call.Options.Attrs)
		if len(call.AttrsList) == 0 {
			call.AttrsList = requestedAttrs(s, call.Options)
		}
		return nil
	}

	return fmt.Errorf("unknown operation kind %q", call.Kind)
}

// resolve maps key to a backend identifier. A dotless key that does not resolve
// directly is matched against the short-name attribute of existing entries.
// Dotted keys never fall back: the first label of web.example.org would
// otherwise select web.example.com.
func (p *Pipeline) resolve(ctx context.Context, call *Call, key string) error {
	s := call.Schema
	pk := s.PrimaryKey().Attribute
	call.Key = key

	entry, err := p.backend.GetEntry(ctx, s.DN(key), []string{pk})
	if errors.Is(err, interfaces.ErrNotFound) && s.ShortNameAttribute != "" && !strings.Contains(key, ".") {
		entry, err = p.backend.FindByAttribute(ctx, s.ShortNameAttribute, key, s.ObjectClasses, []string{pk}, s.ContainerDN())
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		return &interfaces.NotFoundError{Key: key, Reason: s.Name + " not found"}
	}
	if err != nil {
		return &interfaces.BackendError{Op: call.Command, Key: key, Err: err}
	}

	call.ID = entry.ID
	if canonical := entry.Attrs.Get(pk); canonical != "" {
		call.Key = canonical
	}
	call.Log.Debug("Resolved key", slog.String("key", call.Key), slog.String("dn", call.ID.String()))
	return nil
}

func (p *Pipeline) add(ctx context.Context, cmd Command, call *Call) (*Result, error) {
	call.Attrs.Set(call.Schema.PrimaryKey().Attribute, call.Key)
	if call.ObjectClasses.Len() > 0 {
		call.Attrs.Set(schema.AttrObjectClass, call.ObjectClasses.Values()...)
	}

	if err := p.backend.CreateEntry(ctx, &interfaces.Entry{ID: call.ID, Attrs: call.Attrs}); err != nil {
		return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
	}
	return p.single(ctx, cmd, call)
}

func (p *Pipeline) modify(ctx context.Context, cmd Command, call *Call) (*Result, error) {
	if call.ObjectClasses.Len() > 0 {
		call.Attrs.Set(schema.AttrObjectClass, call.ObjectClasses.Values()...)
	}

	if err := p.backend.UpdateEntry(ctx, call.ID, call.Attrs); err != nil {
		return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
	}
	return p.single(ctx, cmd, call)
}

func (p *Pipeline) delete(ctx context.Context, call *Call) (*Result, error) {
	if err := p.backend.DeleteEntry(ctx, call.ID); err != nil {
		return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
	}
	return &Result{Value: call.Key, Status: true}, nil
}

// single fetches the entry of the call and returns it shaped.
func (p *Pipeline) single(ctx context.Context, cmd Command, call *Call) (*Result, error) {
	entry, err := p.backend.GetEntry(ctx, call.ID, call.AttrsList)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, &interfaces.NotFoundError{Key: call.Key, Reason: call.Schema.Name + " not found"}
	}
	if err != nil {
		return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
	}

	if cmd.Strategy.Post != nil {
		if err := cmd.Strategy.Post(ctx, call, entry); err != nil {
			return nil, err
		}
	}

	return &Result{Value: call.Key, Entry: shape(call.Schema, entry.Attrs)}, nil
}

func (p *Pipeline) find(ctx context.Context, cmd Command, call *Call) (*Result, error) {
	limit := call.Options.SizeLimit
	if limit <= 0 {
		limit = p.sizeLimit
	}

	pages := interfaces.Pages(ctx, func(ctx context.Context, cursor string) (*interfaces.SearchPage, string, bool, error) {
		page, err := p.backend.Search(ctx, interfaces.SearchRequest{
			Base:      call.Schema.ContainerDN(),
			Scope:     interfaces.ScopeSubtree,
			Filter:    call.Filter,
			Attrs:     call.AttrsList,
			SizeLimit: limit,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, "", false, err
		}
		return page, page.Cursor, page.Truncated, nil
	})

	res := &Result{Entries: []Record{}}
collect:
	for page, err := range pages {
		if err != nil {
			return nil, &interfaces.BackendError{Op: call.Command, Key: call.Key, Err: err}
		}
		for _, entry := range page.Entries {
			if len(res.Entries) == limit {
				res.Truncated = true
				break collect
			}
			if cmd.Strategy.Post != nil {
				if err := cmd.Strategy.Post(ctx, call, entry); err != nil {
					return nil, err
				}
			}
			res.Entries = append(res.Entries, shape(call.Schema, entry.Attrs))
		}
	}

	res.Count = len(res.Entries)
	return res, nil
}

// requestedAttrs returns the backend attributes a read should fetch.
func requestedAttrs(s *schema.EntitySchema, opts Options) []string {
	switch {
	case len(opts.Attrs) > 0:
		return s.Aliases().Names(opts.Attrs)
	case opts.All:
		return []string{interfaces.AllAttributes}
	default:
		return slices.Clone(s.DefaultAttributes)
	}
}

// searchFilter combines the entity's object classes, the criteria term, field
// equalities and the caller's filter text into one conjunction.
func searchFilter(s *schema.EntitySchema, opts Options, attrs interfaces.Attributes) (*filter.Filter, error) {
	var terms []*filter.Filter
	for _, class := range s.ObjectClasses {
		terms = append(terms, filter.NewEquality(schema.AttrObjectClass, class))
	}

	if opts.Criteria != "" {
		matches := make([]*filter.Filter, 0, len(s.SearchAttributes))
		for _, attr := range s.SearchAttributes {
			matches = append(matches, filter.NewContains(attr, opts.Criteria))
		}
		terms = append(terms, filter.NewOr(matches...))
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		values := attrs[name]
		switch len(values) {
		case 0:
			continue
		case 1:
			terms = append(terms, filter.NewEquality(name, values[0]))
		default:
			alts := make([]*filter.Filter, len(values))
			for i, v := range values {
				alts[i] = filter.NewEquality(name, v)
			}
			terms = append(terms, filter.NewOr(alts...))
		}
	}

	if opts.Filter != "" {
		f, err := filter.Parse(opts.Filter)
		if err != nil {
			return nil, &interfaces.ValidationError{Field: "filter", Value: opts.Filter, Reason: err.Error()}
		}
		terms = append(terms, f)
	}

	return filter.NewAnd(terms...), nil
}

// shape drops sensitive attributes and renames the rest to public field names.
// Binary values are base64 encoded.
func shape(s *schema.EntitySchema, attrs interfaces.Attributes) Record {
	clean := attrs.Clone()
	for _, name := range s.SensitiveAttributes() {
		clean.Delete(name)
	}

	out := make(Record, len(clean))
	for name, values := range s.Aliases().Result(clean) {
		if f, ok := s.Field(name); ok {
			name = f.Name
			if f.Boolean {
				out[name] = len(values) > 0 && strings.EqualFold(values[0], "true")
				continue
			}
			if f.Binary {
				encoded := make([]string, len(values))
				for i, v := range values {
					encoded[i] = base64.StdEncoding.EncodeToString([]byte(v))
				}
				values = encoded
			}
		}
		out[name] = values
	}
	return out
}
