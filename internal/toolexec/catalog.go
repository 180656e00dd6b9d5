// Package toolexec registers tool definitions and executes invocations with
// timeouts and a concurrency-capped worker pool.
package toolexec

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

// Definition is a named, callable capability exposed to the orchestrator.
type Definition struct {
	// Name is the catalog key for this tool.
	Name string
	// Execute runs the tool. The context carries the effective deadline.
	Execute func(ctx context.Context, params map[string]any) (any, error)
	// Timeout overrides the scheduler default for this tool when > 0.
	Timeout time.Duration
	// Permissions lists permission tags checked before execution.
	Permissions []string
}

// Catalog is the in-memory tool registry. Registration is non-persistent;
// the catalog starts empty on every process start.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Definition)}
}

// Register adds a tool to the catalog. Registering a name that already
// exists overwrites the previous definition; the overwrite is logged, not
// an error.
func (c *Catalog) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: tool name is required", models.ErrValidation)
	}
	if def.Execute == nil {
		return fmt.Errorf("%w: tool %q has no execute function", models.ErrValidation, def.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[def.Name]; exists {
		log.Printf("[toolexec] overwriting existing tool %q", def.Name)
	}
	c.tools[def.Name] = def
	return nil
}

// Unregister removes a tool from the catalog. Unknown names are a NotFound
// failure.
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[name]; !exists {
		return fmt.Errorf("%w: tool %q", models.ErrNotFound, name)
	}
	delete(c.tools, name)
	return nil
}

// Get returns the named tool definition.
func (c *Catalog) Get(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.tools[name]
	return def, ok
}

// List returns all registered tools sorted by name.
func (c *Catalog) List() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Definition, 0, len(c.tools))
	for _, def := range c.tools {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
