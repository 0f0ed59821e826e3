package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Handler executes one tool invocation over validated, normalized arguments.
// Handlers return a plain outputs map; failures are ordinary error values,
// preferably *InvokeError so their taxonomy kind survives to the wire.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registration binds a tool name to its parameter schema and handler. The
// registry is populated once at process start; no reflection happens at call
// time.
type Registration struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry is the static set of exposed tools. It is read-only after
// initialization and safe for concurrent lookups.
type Registry struct {
	byName map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Registration)}
}

// Register adds a tool. Registration happens during startup wiring; duplicate
// or anonymous registrations are programming errors and fail loudly.
func (r *Registry) Register(reg Registration) error {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return fmt.Errorf("tool: registration requires a name")
	}
	if reg.Handler == nil {
		return fmt.Errorf("tool: registration %q requires a handler", name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("tool: %q is already registered", name)
	}
	reg.Name = name
	r.byName[name] = reg
	return nil
}

// MustRegister is Register for startup paths where a failure is fatal wiring.
func (r *Registry) MustRegister(regs ...Registration) {
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
}

// Get looks up a registration by name.
func (r *Registry) Get(name string) (Registration, bool) {
	reg, ok := r.byName[name]
	return reg, ok
}

// List returns all registrations sorted by name.
func (r *Registry) List() []Registration {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	regs := make([]Registration, 0, len(names))
	for _, name := range names {
		regs = append(regs, r.byName[name])
	}
	return regs
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.byName)
}
