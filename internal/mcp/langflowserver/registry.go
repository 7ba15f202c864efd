package langflowserver

import (
	"fmt"
)

// Registry holds the tool handlers by name, in registration order.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handlers. A duplicate name is an error and nothing after it is
// registered.
func (r *Registry) Register(handlers ...Handler) error {
	for _, h := range handlers {
		name := h.Definition().Name
		if name == "" {
			return fmt.Errorf("tool with empty name")
		}
		if _, exists := r.handlers[name]; exists {
			return fmt.Errorf("tool %q registered twice", name)
		}
		r.handlers[name] = h
		r.order = append(r.order, name)
	}
	return nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Handlers() []Handler {
	out := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// DefaultRegistry registers every Langflow tool.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	groups := [][]Handler{
		flowTools(),
		executionTools(),
		projectTools(),
		componentTools(),
		monitoringTools(),
		utilityTools(),
		builderTools(),
	}
	for _, g := range groups {
		if err := r.Register(g...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
