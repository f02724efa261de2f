package registry

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// Registry is the single source of truth for what may be invoked. It is
// populated at startup, sealed, and read-only thereafter.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]*models.ToolSpec
	schemas  map[string]*jsonschema.Schema
	handlers map[string]ports.ToolHandler
	order    []string
	sealed   bool
}

func New() *Registry {
	return &Registry{
		specs:    make(map[string]*models.ToolSpec),
		schemas:  make(map[string]*jsonschema.Schema),
		handlers: make(map[string]ports.ToolHandler),
	}
}

// Register adds a tool and its handler. The argument schema is compiled
// immediately so a malformed schema fails at startup, not at plan time.
func (r *Registry) Register(spec *models.ToolSpec, handler ports.ToolHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return domain.NewDomainError(domain.ErrInvalidInput, "registry is sealed")
	}
	if spec.Name == "" {
		return domain.NewDomainError(domain.ErrInvalidInput, "tool name is required")
	}
	if _, exists := r.specs[spec.Name]; exists {
		return domain.NewDomainError(domain.ErrDuplicateTool, spec.Name)
	}
	if !models.ValidRiskTier(string(spec.Risk)) {
		return domain.NewDomainError(domain.ErrInvalidInput, fmt.Sprintf("tool %s: unknown risk tier %q", spec.Name, spec.Risk))
	}
	if handler == nil {
		return domain.NewDomainError(domain.ErrInvalidInput, fmt.Sprintf("tool %s: handler is required", spec.Name))
	}

	schema, err := compileSchema(spec.Name, spec.ArgSchema)
	if err != nil {
		return domain.NewDomainError(domain.ErrInvalidSchema, fmt.Sprintf("tool %s: %v", spec.Name, err))
	}

	r.specs[spec.Name] = spec
	r.schemas[spec.Name] = schema
	r.handlers[spec.Name] = handler
	r.order = append(r.order, spec.Name)
	return nil
}

// Seal freezes the registry. Further Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Lookup(name string) (*models.ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrToolNotFound, name)
	}
	return spec, nil
}

func (r *Registry) Handler(name string) (ports.ToolHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrToolNotFound, name)
	}
	return h, nil
}

// ValidateArgs checks args against the tool's compiled schema.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return domain.NewDomainError(domain.ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.Validate(normalize(args)); err != nil {
		return domain.NewDomainError(domain.ErrSchemaViolation, err.Error())
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Risk       models.RiskTier
	SideEffect models.SideEffect
}

// List returns registered specs in registration order, filtered.
func (r *Registry) List(filter Filter) []*models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		if filter.Risk != "" && spec.Risk != filter.Risk {
			continue
		}
		if filter.SideEffect != "" && spec.SideEffect != filter.SideEffect {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Grammar renders the registry as a JSON Schema whose root is the ActionPlan
// shape: a oneOf across all registered tools, each branch pinning tool_name
// to a constant and args to that tool's schema. Regenerated after startup
// registration completes and handed to the language model as the decoding
// constraint.
func (r *Registry) Grammar() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branches := make([]any, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		argSchema := spec.ArgSchema
		if argSchema == nil {
			argSchema = map[string]any{"type": "object"}
		}
		branches = append(branches, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tool_name": map[string]any{"const": name},
				"args":      argSchema,
			},
			"required":             []any{"tool_name", "args"},
			"additionalProperties": false,
		})
	}
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"oneOf":   branches,
	}
}

func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	if doc == nil {
		doc = map[string]any{"type": "object"}
	}
	c := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := c.AddResource(url, normalize(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// normalize rewrites Go-native values into the shapes the validator expects
// (json.Unmarshal equivalents: map[string]any, []any, float64).
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
