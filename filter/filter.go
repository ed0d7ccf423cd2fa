// Package filter implements LDAP search filter text (RFC 4515 subset): parsing,
// serialization, attribute renaming and evaluation against attribute maps.
package filter

import (
	"strings"
)

// Type is the kind of a filter node.
type Type int

const (
	And Type = iota
	Or
	Not
	Equality
	Substring
	Present
	GreaterOrEqual
	LessOrEqual
)

// String returns the name of the filter type.
func (t Type) String() string {
	switch t {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Not:
		return "NOT"
	case Equality:
		return "EQUALITY"
	case Substring:
		return "SUBSTRING"
	case Present:
		return "PRESENT"
	case GreaterOrEqual:
		return "GREATER_OR_EQUAL"
	case LessOrEqual:
		return "LESS_OR_EQUAL"
	default:
		return "UNKNOWN"
	}
}

// Filter is a node of a parsed search filter. Nodes are treated as values:
// Rename returns a new tree and never modifies the receiver.
type Filter struct {
	Type      Type
	Attribute string
	Value     string
	Children  []*Filter // And, Or
	Child     *Filter   // Not

	// Substring components.
	Initial string
	Any     []string
	Final   string
}

// NewAnd creates an AND filter.
func NewAnd(children ...*Filter) *Filter {
	return &Filter{Type: And, Children: children}
}

// NewOr creates an OR filter.
func NewOr(children ...*Filter) *Filter {
	return &Filter{Type: Or, Children: children}
}

// NewNot creates a NOT filter.
func NewNot(child *Filter) *Filter {
	return &Filter{Type: Not, Child: child}
}

// NewEquality creates an (attr=value) filter.
func NewEquality(attr, value string) *Filter {
	return &Filter{Type: Equality, Attribute: attr, Value: value}
}

// NewPresent creates an (attr=*) filter.
func NewPresent(attr string) *Filter {
	return &Filter{Type: Present, Attribute: attr}
}

// NewContains creates an (attr=*value*) filter.
func NewContains(attr, value string) *Filter {
	return &Filter{Type: Substring, Attribute: attr, Any: []string{value}}
}

// String serializes the filter back to its text form.
func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Type {
	case And, Or:
		if f.Type == And {
			b.WriteByte('&')
		} else {
			b.WriteByte('|')
		}
		for _, c := range f.Children {
			c.write(b)
		}
	case Not:
		b.WriteByte('!')
		f.Child.write(b)
	case Equality:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		b.WriteString(Escape(f.Value))
	case GreaterOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString(">=")
		b.WriteString(Escape(f.Value))
	case LessOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString("<=")
		b.WriteString(Escape(f.Value))
	case Present:
		b.WriteString(f.Attribute)
		b.WriteString("=*")
	case Substring:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		b.WriteString(Escape(f.Initial))
		b.WriteByte('*')
		for _, a := range f.Any {
			b.WriteString(Escape(a))
			b.WriteByte('*')
		}
		b.WriteString(Escape(f.Final))
	}
	b.WriteByte(')')
}

// Rename returns a copy of the filter with every attribute name passed through fn.
func (f *Filter) Rename(fn func(string) string) *Filter {
	if f == nil {
		return nil
	}
	c := *f
	if c.Attribute != "" {
		c.Attribute = fn(c.Attribute)
	}
	if f.Child != nil {
		c.Child = f.Child.Rename(fn)
	}
	if f.Children != nil {
		c.Children = make([]*Filter, len(f.Children))
		for i, ch := range f.Children {
			c.Children[i] = ch.Rename(fn)
		}
	}
	if f.Any != nil {
		c.Any = append([]string(nil), f.Any...)
	}
	return &c
}

// Walk calls fn for every node in depth-first order.
func (f *Filter) Walk(fn func(*Filter)) {
	if f == nil {
		return
	}
	fn(f)
	f.Child.Walk(fn)
	for _, c := range f.Children {
		c.Walk(fn)
	}
}

const hexDigits = "0123456789abcdef"

// Escape encodes the characters that are special in filter values.
func Escape(value string) string {
	if !strings.ContainsAny(value, "*()\\\x00") {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '*', '(', ')', '\\', 0:
			b.WriteByte('\\')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
