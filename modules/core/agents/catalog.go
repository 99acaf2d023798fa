package agents

import (
	"fmt"
	"sync"
)

// Catalog holds the agentic flows known to the client, in backend order
type Catalog struct {
	mu    sync.RWMutex
	flows []AgenticFlow
	index map[string]int
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Load replaces the catalog content
func (c *Catalog) Load(flows []AgenticFlow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flows = make([]AgenticFlow, 0, len(flows))
	c.index = make(map[string]int, len(flows))
	for _, f := range flows {
		if f.Name == "" {
			continue
		}
		if i, ok := c.index[f.Name]; ok {
			c.flows[i] = f
			continue
		}
		c.index[f.Name] = len(c.flows)
		c.flows = append(c.flows, f)
	}
}

// List returns all flows
func (c *Catalog) List() []AgenticFlow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AgenticFlow, len(c.flows))
	copy(out, c.flows)
	return out
}

// Get returns a flow by name
func (c *Catalog) Get(name string) (AgenticFlow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[name]
	if !ok {
		return AgenticFlow{}, false
	}
	return c.flows[i], true
}

// Resolve returns the flow with the given name
func (c *Catalog) Resolve(name string) (AgenticFlow, error) {
	if f, ok := c.Get(name); ok {
		return f, nil
	}
	return AgenticFlow{}, fmt.Errorf("unknown agent: %s", name)
}

// Default returns the first flow, false if the catalog is empty
func (c *Catalog) Default() (AgenticFlow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.flows) == 0 {
		return AgenticFlow{}, false
	}
	return c.flows[0], true
}

// DisplayName resolves an agent name to its display identity.
// Unknown names are returned unchanged.
func (c *Catalog) DisplayName(name string) string {
	if f, ok := c.Get(name); ok {
		return f.DisplayName()
	}
	return name
}
