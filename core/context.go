package core

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Well-known ActionContext property keys.
const (
	PropMemory        = "memory"
	PropAgentRegistry = "agent_registry"
	PropToolRegistry  = "action_registry"
	PropModel         = "llm"
	PropTimeZone      = "time_zone"
	PropAuthToken     = "auth_token"
	PropUserConfig    = "user_config"
)

// ActionContext is the bag of named shared resources (memory, registries,
// credentials, the model) passed through every tool call and capability hook
// of a run. The identifier is fixed at construction; properties are mutable.
//
// ActionContext is safe for concurrent use, although the agent loop itself
// only touches it from one goroutine at a time.
type ActionContext struct {
	id         string
	mu         sync.RWMutex
	properties map[string]any
}

// NewActionContext creates a context with a fresh identifier. The supplied
// map is copied; later changes to it are not observed.
func NewActionContext(properties map[string]any) *ActionContext {
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	return &ActionContext{
		id:         uuid.NewString(),
		properties: props,
	}
}

// ID returns the immutable context identifier.
func (c *ActionContext) ID() string { return c.id }

// Get returns the property stored under key or def when it is absent.
func (c *ActionContext) Get(key string, def any) any {
	if v, ok := c.Lookup(key); ok {
		return v
	}

	return def
}

// Lookup returns the property stored under key and whether it was present.
func (c *ActionContext) Lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.properties[key]

	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c *ActionContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.properties[key] = value
}

// Keys returns the property names in lexical order.
func (c *ActionContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.properties))
	for k := range c.properties {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Properties returns a shallow copy of all properties.
func (c *ActionContext) Properties() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	props := make(map[string]any, len(c.properties))
	for k, v := range c.properties {
		props[k] = v
	}

	return props
}

// Memory returns the Memory stored under PropMemory or nil.
func (c *ActionContext) Memory() Memory {
	m, _ := c.Get(PropMemory, nil).(Memory)
	return m
}

// AgentRegistry returns the registry stored under PropAgentRegistry or nil.
func (c *ActionContext) AgentRegistry() *AgentRegistry {
	r, _ := c.Get(PropAgentRegistry, nil).(*AgentRegistry)
	return r
}

// Derive returns a new context (with its own identifier) holding only the
// named properties. Keys absent from the receiver are skipped.
func (c *ActionContext) Derive(keys ...string) *ActionContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	props := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := c.properties[k]; ok {
			props[k] = v
		}
	}

	return NewActionContext(props)
}

// Without returns a new context (with its own identifier) holding every
// property except the named ones.
func (c *ActionContext) Without(keys ...string) *ActionContext {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	props := make(map[string]any, len(c.properties))
	for k, v := range c.properties {
		if _, skip := drop[k]; !skip {
			props[k] = v
		}
	}

	return NewActionContext(props)
}
