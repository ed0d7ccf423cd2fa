package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownCommand is returned when executing a name that was never registered.
var ErrUnknownCommand = errors.New("unknown command")

// Registry holds the commands available to a front end. It is built once at
// startup and handed to callers; it is not safe to register concurrently with
// Execute.
type Registry struct {
	pipeline *Pipeline
	commands map[string]Command
}

// NewRegistry creates an empty registry executing commands through p.
func NewRegistry(p *Pipeline) *Registry {
	return &Registry{
		pipeline: p,
		commands: make(map[string]Command),
	}
}

// Register adds commands. Names must be unique.
func (r *Registry) Register(cmds ...Command) error {
	for _, cmd := range cmds {
		if cmd.Name == "" {
			return errors.New("command without a name")
		}
		if _, ok := r.commands[cmd.Name]; ok {
			return fmt.Errorf("command %q already registered", cmd.Name)
		}
		r.commands[cmd.Name] = cmd
	}
	return nil
}

// Command looks up a registered command.
func (r *Registry) Command(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute runs the command registered under name.
func (r *Registry) Execute(ctx context.Context, name string, req Request) (*Result, error) {
	cmd, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return r.pipeline.Run(ctx, cmd, req)
}
