package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"
)

type entry struct {
	pt   *PromptTemplate
	tmpl *template.Template
}

// Registry holds loaded prompts and schemas. Templates are parsed on
// registration so a broken override fails at load time, not mid-request.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]entry
	schemas map[string]*ResponseSchema
}

func NewRegistry() *Registry {
	return &Registry{
		prompts: make(map[string]entry),
		schemas: make(map[string]*ResponseSchema),
	}
}

// Register adds or replaces a prompt.
func (r *Registry) Register(pt *PromptTemplate) error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}
	tmpl, err := template.New(pt.ID).Option("missingkey=zero").Parse(pt.UserPromptTmpl)
	if err != nil {
		return fmt.Errorf("prompt %s: %w", pt.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[pt.ID] = entry{pt: pt, tmpl: tmpl}
	return nil
}

func (r *Registry) RegisterSchema(schema *ResponseSchema) error {
	if schema.ID == "" {
		return fmt.Errorf("schema ID cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.ID] = schema
	return nil
}

func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.prompts[id]; ok {
		return e.pt, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

func (r *Registry) GetSchema(id string) (*ResponseSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("schema not found: %s", id)
}

// Render returns the system prompt and the rendered user prompt for id.
func (r *Registry) Render(id string, ctx *PromptExecutionContext) (system, user string, err error) {
	r.mu.RLock()
	e, ok := r.prompts[id]
	r.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("prompt not found: %s", id)
	}

	vars, err := e.pt.resolve(ctx)
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", id, err)
	}
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("render %s: %w", id, err)
	}
	return e.pt.SystemPrompt, buf.String(), nil
}

// ListPrompts returns all registered prompt IDs, sorted.
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}
