package filter

import (
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidFilter    = errors.New("invalid filter syntax")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrMissingAttribute = errors.New("missing attribute name")
	ErrInvalidEscape    = errors.New("invalid escape sequence")
)

// Parse parses filter text. A bare "attr=value" without parentheses is accepted.
func Parse(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}
	return parseFilter(s)
}

func parseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}

	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		if strings.ContainsAny(s, "()") {
			return nil, ErrInvalidFilter
		}
		s = "(" + s + ")"
	}

	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, ErrEmptyFilter
	}

	switch inner[0] {
	case '&', '|':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, ErrInvalidFilter
		}
		if inner[0] == '&' {
			return NewAnd(children...), nil
		}
		return NewOr(children...), nil
	case '!':
		child, err := parseFilter(inner[1:])
		if err != nil {
			return nil, err
		}
		return NewNot(child), nil
	default:
		return parseSimple(inner)
	}
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)

	for len(s) > 0 {
		if s[0] != '(' {
			return nil, ErrInvalidFilter
		}

		depth, end := 0, -1
		for i := 0; i < len(s) && end < 0; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = i
				}
			}
		}
		if end == -1 {
			return nil, ErrUnbalancedParens
		}

		f, err := parseFilter(s[:end+1])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		s = strings.TrimSpace(s[end+1:])
	}

	return filters, nil
}

func parseSimple(s string) (*Filter, error) {
	idx := strings.Index(s, "=")
	if idx < 0 {
		return nil, ErrInvalidFilter
	}

	typ := Equality
	attrEnd := idx
	if idx > 0 {
		switch s[idx-1] {
		case '>':
			typ, attrEnd = GreaterOrEqual, idx-1
		case '<':
			typ, attrEnd = LessOrEqual, idx-1
		}
	}

	attr := strings.TrimSpace(s[:attrEnd])
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	raw := s[idx+1:]

	if typ != Equality {
		value, err := Unescape(raw)
		if err != nil {
			return nil, err
		}
		return &Filter{Type: typ, Attribute: attr, Value: value}, nil
	}

	if raw == "*" {
		return NewPresent(attr), nil
	}
	if !strings.Contains(raw, "*") {
		value, err := Unescape(raw)
		if err != nil {
			return nil, err
		}
		return NewEquality(attr, value), nil
	}

	parts := strings.Split(raw, "*")
	f := &Filter{Type: Substring, Attribute: attr}
	for i, part := range parts {
		value, err := Unescape(part)
		if err != nil {
			return nil, err
		}
		switch {
		case i == 0:
			f.Initial = value
		case i == len(parts)-1:
			f.Final = value
		case value != "":
			f.Any = append(f.Any, value)
		}
	}
	return f, nil
}

// Unescape decodes \XX hex escapes in a filter value.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", ErrInvalidEscape
		}
		decoded, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return "", ErrInvalidEscape
		}
		b.Write(decoded)
		i += 2
	}
	return b.String(), nil
}
