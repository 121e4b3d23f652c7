// Package prompt holds the narrative prompt library. Prompts are JSON files
// embedded as defaults and optionally overridden from a directory at runtime.
package prompt

import "fmt"

// IDs of the prompts the narrative layer depends on.
const (
	NarrativeValuation = "narrative.valuation"
	NarrativeOffer     = "narrative.offer_insights"
)

// PromptTemplate is one prompt file. UserPromptTmpl is a text/template
// executed against the variables of a PromptExecutionContext.
type PromptTemplate struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Description      string           `json:"description"`
	SystemPrompt     string           `json:"system_prompt"`
	UserPromptTmpl   string           `json:"user_prompt_template"`
	ResponseSchemaID string           `json:"response_schema_ref"`
	Variables        []PromptVariable `json:"variables"`
	Version          string           `json:"version"`
}

type PromptVariable struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string|array
	Required bool   `json:"required"`
	Default  string `json:"default"`
}

// ResponseSchema is the raw JSON schema a prompt asks the model to follow.
type ResponseSchema struct {
	ID         string `json:"id"`
	JSONSchema string `json:"json_schema"`
}

// PromptExecutionContext carries template variables for one render.
type PromptExecutionContext struct {
	Variables map[string]interface{}
}

func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{Variables: make(map[string]interface{})}
}

// Set adds a variable and returns the context for chaining.
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// resolve returns the variables with declared defaults filled in. The
// context itself is left unchanged.
func (pt *PromptTemplate) resolve(ctx *PromptExecutionContext) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pt.Variables))
	if ctx != nil {
		for k, v := range ctx.Variables {
			vars[k] = v
		}
	}
	for _, v := range pt.Variables {
		if _, ok := vars[v.Name]; ok {
			continue
		}
		switch {
		case v.Default != "":
			vars[v.Name] = v.Default
		case v.Required:
			return nil, fmt.Errorf("missing required variable %s", v.Name)
		}
	}
	return vars, nil
}
