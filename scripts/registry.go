// Package scripts holds the motion programs the controller can run and the
// runner that executes them.
package scripts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"litesim"
)

// Script is a motion program. It drives the arm only through the command
// surface and must return promptly once a command reports cancellation.
type Script interface {
	Name() string
	Run(ctx context.Context, arm litesim.Commander) error
}

type funcScript struct {
	name string
	fn   func(ctx context.Context, arm litesim.Commander) error
}

func (s funcScript) Name() string { return s.name }

func (s funcScript) Run(ctx context.Context, arm litesim.Commander) error {
	return s.fn(ctx, arm)
}

// New wraps fn as a Script.
func New(name string, fn func(ctx context.Context, arm litesim.Commander) error) Script {
	return funcScript{name: name, fn: fn}
}

// Registry maps script names to scripts.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]Script
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scripts: make(map[string]Script)}
}

// Register adds s. Names must be unique.
func (r *Registry) Register(s Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Name() == "" {
		return fmt.Errorf("script name must not be empty")
	}
	if _, exists := r.scripts[s.Name()]; exists {
		return fmt.Errorf("script %q already registered", s.Name())
	}
	r.scripts[s.Name()] = s
	return nil
}

// Lookup returns the script registered under name.
func (r *Registry) Lookup(name string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	return s, ok
}

// Names lists the registered scripts alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default holds the built-in example programs.
var Default = NewRegistry()

// Register adds s to the default registry.
func Register(s Script) error { return Default.Register(s) }

// Lookup finds a script in the default registry.
func Lookup(name string) (Script, bool) { return Default.Lookup(name) }

// Names lists the default registry.
func Names() []string { return Default.Names() }
