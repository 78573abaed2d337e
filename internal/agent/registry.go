// Package agent implements the tool-calling conversation engine: the
// tool registry, the tool executor that fronts the backend clients, the
// per-customer context store, and the orchestrator loop that drives the
// model.
package agent

import (
	"encoding/json"
	"fmt"

	"github.com/glintcart/glintbot/internal/llm"
)

// ValidationError reports tool arguments that fail schema validation.
// It is surfaced to the model as a tool result, never to the customer.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// ToolSpec describes one callable tool: its wire definition plus the
// argument fields Validate enforces.
type ToolSpec struct {
	Name        string
	Description string
	Schema      string
	Required    []string
}

// Registry holds the tool set offered to the model on each turn.
type Registry struct {
	order []string
	specs map[string]ToolSpec
}

func NewRegistry(specs ...ToolSpec) *Registry {
	r := &Registry{specs: make(map[string]ToolSpec, len(specs))}
	for _, s := range specs {
		if _, dup := r.specs[s.Name]; dup {
			continue
		}
		r.order = append(r.order, s.Name)
		r.specs[s.Name] = s
	}
	return r
}

// Definitions returns the wire-format tool list in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		s := r.specs[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Schema:      s.Schema,
		})
	}
	return defs
}

func (r *Registry) Lookup(name string) (ToolSpec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Validate checks that raw is a JSON object carrying every required
// field as a non-empty value. Unknown fields pass through untouched.
func (r *Registry) Validate(name, raw string) (map[string]any, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, &ValidationError{Tool: name, Reason: "unknown tool"}
	}

	var args map[string]any
	if raw == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &ValidationError{Tool: name, Reason: "arguments are not a JSON object"}
	}

	for _, field := range spec.Required {
		v, present := args[field]
		if !present {
			return nil, &ValidationError{Tool: name, Reason: "missing required field " + field}
		}
		if s, isStr := v.(string); isStr && s == "" {
			return nil, &ValidationError{Tool: name, Reason: "required field " + field + " is empty"}
		}
	}
	return args, nil
}

// DefaultSpecs is the commerce tool set: catalog search and lookup,
// order status and history, FAQ search, and shipment tracking.
func DefaultSpecs() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "search_catalog",
			Description: "Search the product catalog by keywords. Returns matching products with name, price, and stock availability.",
			Schema: `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search keywords, e.g. 'silver earrings'"},
    "limit": {"type": "integer", "description": "Maximum number of results, default 5"}
  },
  "required": ["query"]
}`,
			Required: []string{"query"},
		},
		{
			Name:        "get_product",
			Description: "Fetch full details for one product by its product ID.",
			Schema: `{
  "type": "object",
  "properties": {
    "product_id": {"type": "string", "description": "The product ID from a catalog search result"}
  },
  "required": ["product_id"]
}`,
			Required: []string{"product_id"},
		},
		{
			Name:        "get_order_status",
			Description: "Look up the current status of a customer's order by order ID.",
			Schema: `{
  "type": "object",
  "properties": {
    "order_id": {"type": "string", "description": "The order ID, e.g. 'ORD-1001'"}
  },
  "required": ["order_id"]
}`,
			Required: []string{"order_id"},
		},
		{
			Name:        "get_order_history",
			Description: "List the customer's recent orders. Uses the phone number of the customer in this conversation.",
			Schema: `{
  "type": "object",
  "properties": {
    "limit": {"type": "integer", "description": "Maximum number of orders, default 5"}
  }
}`,
		},
		{
			Name:        "search_faq",
			Description: "Search the store's FAQ and policy knowledge base for questions about returns, shipping, payments, and store policies.",
			Schema: `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "The customer's question"}
  },
  "required": ["query"]
}`,
			Required: []string{"query"},
		},
		{
			Name:        "track_shipment",
			Description: "Track a shipment by its air waybill (AWB) number.",
			Schema: `{
  "type": "object",
  "properties": {
    "awb": {"type": "string", "description": "The air waybill number from the order"}
  },
  "required": ["awb"]
}`,
			Required: []string{"awb"},
		},
	}
}
