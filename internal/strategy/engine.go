package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/fxmc/internal/core"
)

// Builder validates a Config and returns a factory for it
type Builder func(cfg Config) (Factory, error)

// Engine maps strategy names to their builders
type Engine struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewEngine creates an empty strategy engine
func NewEngine() *Engine {
	return &Engine{
		builders: make(map[string]Builder),
	}
}

// Register adds a strategy builder under name
func (e *Engine) Register(name string, b Builder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builders[name] = b
}

// Get retrieves a builder by name
func (e *Engine) Get(name string) (Builder, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.builders[name]
	return b, ok
}

// Names returns all registered strategy names, sorted
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.builders))
	for name := range e.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up cfg.Name and returns a validated factory
func (e *Engine) Build(cfg Config) (Factory, error) {
	b, ok := e.Get(cfg.Name)
	if !ok {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("unknown strategy %q (want one of %s)", cfg.Name, strings.Join(e.Names(), ", ")))
	}
	return b(cfg)
}
