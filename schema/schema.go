// Package schema declares entity field sets: public and backend names, primary
// key, normalizers, validators and immutability classes. Schemas are built once
// at startup and are read-only afterwards.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ruteri/host-directory/interfaces"
)

// Immutability classifies how a field may be written.
type Immutability int

const (
	// Mutable fields may be set and changed freely.
	Mutable Immutability = iota
	// WriteOnce fields may be set exactly once.
	WriteOnce
	// Derived fields are maintained by the system or computed on output only.
	Derived
)

func (i Immutability) String() string {
	switch i {
	case Mutable:
		return "mutable"
	case WriteOnce:
		return "write-once"
	case Derived:
		return "derived"
	default:
		return "unknown"
	}
}

// Mode selects which field flags apply when normalizing a payload.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
	ModeSearch
)

// Field declares one entity field.
type Field struct {
	// Name is the public field name.
	Name string
	// Attribute is the backend attribute name. Empty for output-only fields.
	Attribute string
	Label     string

	PrimaryKey   bool
	Required     bool
	Binary       bool
	Sensitive    bool
	Immutability Immutability
	// Boolean fields hold "true" or "false" and are output as booleans.
	Boolean bool

	NoCreate bool
	NoUpdate bool
	NoSearch bool

	// Normalizer rewrites each value before validation.
	Normalizer func(string) string
	// Validate is a go-playground/validator tag applied to each value.
	Validate string
	// Message replaces the generic validation failure reason.
	Message string
}

// Stored reports whether the field has a backend attribute.
func (f Field) Stored() bool {
	return f.Attribute != ""
}

// EntitySchema describes an entity kind stored in the directory.
type EntitySchema struct {
	Name       string
	PluralName string

	// Container is the location of entries relative to the base DN.
	Container interfaces.EntryID
	BaseDN    interfaces.EntryID

	ObjectClasses     []string
	SearchAttributes  []string
	DefaultAttributes []string

	// ShortNameAttribute holds the first label of the primary key. Keys that do
	// not resolve directly are looked up through it.
	ShortNameAttribute string

	fields   []Field
	byName   map[string]int
	byAttr   map[string]int
	primary  int
	aliases  *AliasMapper
	validate *validator.Validate
}

// NewEntitySchema indexes fields and builds the alias table. Exactly one field
// must be the primary key.
func NewEntitySchema(name, plural string, container, baseDN interfaces.EntryID, fields ...Field) (*EntitySchema, error) {
	s := &EntitySchema{
		Name:       name,
		PluralName: plural,
		Container:  container,
		BaseDN:     baseDN,
		fields:     fields,
		byName:     make(map[string]int, len(fields)),
		byAttr:     make(map[string]int, len(fields)),
		primary:    -1,
		validate:   validator.New(),
	}

	aliases := map[string]string{}
	for i, f := range fields {
		lname := strings.ToLower(f.Name)
		if _, dup := s.byName[lname]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		s.byName[lname] = i
		if f.Stored() {
			s.byAttr[strings.ToLower(f.Attribute)] = i
			if !strings.EqualFold(f.Name, f.Attribute) {
				aliases[f.Name] = f.Attribute
			}
		}
		if f.PrimaryKey {
			if s.primary >= 0 {
				return nil, errors.New("more than one primary key field")
			}
			s.primary = i
		}
	}
	if s.primary < 0 {
		return nil, errors.New("no primary key field")
	}

	mapper, err := NewAliasMapper(aliases)
	if err != nil {
		return nil, err
	}
	s.aliases = mapper
	return s, nil
}

// Aliases returns the alias mapper derived from the field declarations.
func (s *EntitySchema) Aliases() *AliasMapper {
	return s.aliases
}

// Fields returns the declared fields.
func (s *EntitySchema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// PrimaryKey returns the primary key field.
func (s *EntitySchema) PrimaryKey() Field {
	return s.fields[s.primary]
}

// Field looks a field up by public name or backend attribute name.
func (s *EntitySchema) Field(name string) (Field, bool) {
	lname := strings.ToLower(name)
	if i, ok := s.byName[lname]; ok {
		return s.fields[i], true
	}
	if i, ok := s.byAttr[lname]; ok {
		return s.fields[i], true
	}
	return Field{}, false
}

// ContainerDN returns the absolute container of the entity's entries.
func (s *EntitySchema) ContainerDN() interfaces.EntryID {
	if s.BaseDN == "" {
		return s.Container
	}
	return interfaces.EntryID(string(s.Container) + "," + string(s.BaseDN))
}

// DN computes the identifier an entry with primary key value key has.
func (s *EntitySchema) DN(key string) interfaces.EntryID {
	return s.ContainerDN().Child(s.PrimaryKey().Attribute, key)
}

// NormalizeKey strips a single trailing dot and applies the primary key normalizer.
// With validate set the key must also pass the primary key validator.
func (s *EntitySchema) NormalizeKey(key string, validate bool) (string, error) {
	pk := s.PrimaryKey()
	key = strings.TrimSuffix(strings.TrimSpace(key), ".")
	if pk.Normalizer != nil {
		key = pk.Normalizer(key)
	}
	if key == "" {
		return "", &interfaces.ValidationError{Field: pk.Name, Reason: "required"}
	}
	if validate {
		if err := s.check(pk, key); err != nil {
			return "", err
		}
	}
	return key, nil
}

// Normalize validates a payload keyed by public field names and returns it keyed
// by backend attribute names. It fails on the first violation.
func (s *EntitySchema) Normalize(payload map[string][]string, mode Mode) (interfaces.Attributes, error) {
	out := make(interfaces.Attributes, len(payload))
	for name, values := range payload {
		f, ok := s.Field(name)
		if !ok {
			return nil, &interfaces.ValidationError{Field: name, Reason: "unknown field"}
		}
		if err := s.allowed(f, mode); err != nil {
			return nil, err
		}
		if f.PrimaryKey && mode != ModeSearch {
			return nil, &interfaces.ValidationError{Field: f.Name, Reason: "primary key is given as the entry key"}
		}

		normalized := make([]string, 0, len(values))
		for _, v := range values {
			if f.Normalizer != nil {
				v = f.Normalizer(v)
			}
			if v == "" {
				continue
			}
			if err := s.check(f, v); err != nil {
				return nil, err
			}
			normalized = append(normalized, v)
		}
		if len(normalized) == 0 && mode == ModeCreate {
			continue
		}
		out.Set(f.Attribute, normalized...)
	}

	if mode == ModeCreate {
		for _, f := range s.fields {
			if f.Required && !f.PrimaryKey && !out.Has(f.Attribute) {
				return nil, &interfaces.ValidationError{Field: f.Name, Reason: "required"}
			}
		}
	}
	return out, nil
}

func (s *EntitySchema) allowed(f Field, mode Mode) error {
	if !f.Stored() {
		return &interfaces.ValidationError{Field: f.Name, Reason: "output-only field"}
	}
	switch mode {
	case ModeCreate:
		if f.NoCreate || f.Immutability == Derived {
			return &interfaces.ValidationError{Field: f.Name, Reason: "cannot be set on creation"}
		}
	case ModeUpdate:
		if f.NoUpdate || f.Immutability == Derived {
			return &interfaces.ValidationError{Field: f.Name, Reason: "cannot be modified"}
		}
	case ModeSearch:
		if f.NoSearch {
			return &interfaces.ValidationError{Field: f.Name, Reason: "cannot be searched"}
		}
	}
	return nil
}

func (s *EntitySchema) check(f Field, value string) error {
	if f.Validate == "" {
		return nil
	}
	if err := s.validate.Var(value, f.Validate); err != nil {
		reason := f.Message
		if reason == "" {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				reason = fmt.Sprintf("failed '%s' check", verrs[0].Tag())
			} else {
				reason = err.Error()
			}
		}
		shown := value
		if f.Sensitive {
			shown = ""
		}
		return &interfaces.ValidationError{Field: f.Name, Value: shown, Reason: reason}
	}
	return nil
}

// IsImmutableViolation reports whether writing newValue over oldValue breaks the
// field's immutability class.
func (s *EntitySchema) IsImmutableViolation(field, oldValue, newValue string) bool {
	f, ok := s.Field(field)
	if !ok {
		return false
	}
	switch f.Immutability {
	case WriteOnce:
		return oldValue != "" && newValue != ""
	case Derived:
		return newValue != oldValue
	default:
		return false
	}
}

// SensitiveAttributes lists backend attributes that never leave the pipeline.
func (s *EntitySchema) SensitiveAttributes() []string {
	var out []string
	for _, f := range s.fields {
		if f.Sensitive && f.Stored() {
			out = append(out, strings.ToLower(f.Attribute))
		}
	}
	return out
}
