package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"gopkg.in/yaml.v3"
)

// Exit codes by error kind. Anything unclassified is a backend failure.
const (
	exitBackend    = 1
	exitValidation = 2
	exitNotFound   = 3
	exitConflict   = 4
	exitDependency = 5
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrBackend):
		return exitBackend
	case errors.Is(err, interfaces.ErrValidation):
		return exitValidation
	case errors.Is(err, interfaces.ErrNotFound):
		return exitNotFound
	case errors.Is(err, interfaces.ErrImmutable), errors.Is(err, interfaces.ErrDuplicate):
		return exitConflict
	case errors.Is(err, interfaces.ErrDependencyCheck):
		return exitDependency
	default:
		return exitBackend
	}
}

// parseFields turns repeated name=value arguments into a payload. An empty
// value is kept so that the field is cleared.
func parseFields(values []string) (map[string][]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	fields := make(map[string][]string, len(values))
	for _, value := range values {
		name, v, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &interfaces.ValidationError{Field: value, Value: value, Reason: "expected name=value"}
		}
		fields[name] = append(fields[name], v)
	}
	return fields, nil
}

func writeResult(w io.Writer, format string, res *pipeline.Result) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return &interfaces.ValidationError{Field: "output", Value: format, Reason: fmt.Sprintf("unsupported format %q", format)}
	}
}
