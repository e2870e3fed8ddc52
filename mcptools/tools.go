// Package mcptools exposes folding queries and command planning as MCP
// tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/folding"
)

// ToolDef describes an MCP tool.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Handler     func(ctx context.Context, params json.RawMessage) (any, error)
}

// Registry holds the folding tools.
type Registry struct {
	provider commands.RangeProvider
	options  commands.Options
	tools    []ToolDef
}

// NewRegistry creates a registry. provider serves tool calls that pass a
// uri instead of ranges and may be nil; options are the defaults for
// fold_plan.
func NewRegistry(provider commands.RangeProvider, options commands.Options) *Registry {
	r := &Registry{provider: provider, options: options}
	r.tools = []ToolDef{
		r.toolLevels(),
		r.toolEnclose(),
		r.toolForest(),
		r.toolCover(),
		r.toolPlan(),
	}
	return r
}

// Tools returns all registered MCP tools.
func (r *Registry) Tools() []ToolDef {
	return r.tools
}

// HandleTool dispatches a tool call by name.
func (r *Registry) HandleTool(ctx context.Context, name string, params json.RawMessage) (any, error) {
	for _, t := range r.tools {
		if t.Name == name {
			return t.Handler(ctx, params)
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

// rangesInput is the document part shared by every tool.
type rangesInput struct {
	URI    string          `json:"uri,omitempty"`
	Ranges []folding.Range `json:"ranges,omitempty"`
}

func (r *Registry) ranges(ctx context.Context, in rangesInput) ([]folding.Range, error) {
	if in.Ranges != nil {
		return in.Ranges, nil
	}
	if in.URI == "" {
		return nil, errors.New("either ranges or uri is required")
	}
	if r.provider == nil {
		return nil, commands.ErrNoProvider
	}
	return r.provider.FoldingRanges(ctx, in.URI)
}

func unmarshal(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// Schema fragments.
const (
	rangesProps = `
		"uri": {
			"type": "string",
			"description": "Document to fetch folding ranges for (file:// URI or path). Used when ranges is omitted."
		},
		"ranges": {
			"type": "array",
			"description": "Folding ranges sorted by start line, nested or disjoint.",
			"items": {
				"type": "object",
				"properties": {
					"start": {"type": "integer", "description": "First line (0-based)."},
					"end": {"type": "integer", "description": "Last line, inclusive."}
				},
				"required": ["start", "end"]
			}
		}`
	selectionItems = `
			"items": {
				"type": "object",
				"properties": {
					"start": {"type": "integer"},
					"end": {"type": "integer"}
				},
				"required": ["start", "end"]
			}`
	planSelectionsProp = `
		"selections": {
			"type": "array",
			"description": "Selected line spans. Defaults to the cursor line.",` + selectionItems + `
		}`
	coverSelectionsProp = `
		"selections": {
			"type": "array",
			"description": "Selected line spans to resolve; at least one.",
			"minItems": 1,` + selectionItems + `
		}`
)

// --- Tool definitions ---

func (r *Registry) toolLevels() ToolDef {
	return ToolDef{
		Name:        "fold_levels",
		Description: "Groups folding ranges by nesting depth. Level 1 holds the top-level blocks.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + rangesProps + `
			}
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p rangesInput
			if err := unmarshal(params, &p); err != nil {
				return nil, err
			}
			ranges, err := r.ranges(ctx, p)
			if err != nil {
				return nil, err
			}
			groups := folding.GroupLevels(ranges)
			return map[string]any{
				"depth":  groups.Depth(),
				"levels": groups,
			}, nil
		},
	}
}

func (r *Registry) toolEnclose() ToolDef {
	return ToolDef{
		Name:        "fold_enclose",
		Description: "Lists the blocks containing a line, outermost first, with their depth. The last one is the innermost block.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + rangesProps + `,
				"line": {"type": "integer", "description": "Line to locate (0-based)."}
			},
			"required": ["line"]
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p struct {
				rangesInput
				Line *int `json:"line"`
			}
			if err := unmarshal(params, &p); err != nil {
				return nil, err
			}
			if p.Line == nil {
				return nil, errors.New("line is required")
			}
			ranges, err := r.ranges(ctx, p.rangesInput)
			if err != nil {
				return nil, err
			}
			path := folding.GroupLevels(ranges).Enclose(*p.Line)
			if path == nil {
				path = folding.EnclosurePath{}
			}
			return map[string]any{
				"line":  *p.Line,
				"depth": path.Depth(),
				"path":  path,
			}, nil
		},
	}
}

func (r *Registry) toolForest() ToolDef {
	return ToolDef{
		Name:        "fold_forest",
		Description: "Builds the parent/child tree of folding ranges.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + rangesProps + `
			}
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p rangesInput
			if err := unmarshal(params, &p); err != nil {
				return nil, err
			}
			ranges, err := r.ranges(ctx, p)
			if err != nil {
				return nil, err
			}
			forest := folding.BuildForest(ranges)
			if forest == nil {
				forest = folding.Forest{}
			}
			return map[string]any{"forest": forest, "count": forest.Len()}, nil
		},
	}
}

func (r *Registry) toolCover() ToolDef {
	return ToolDef{
		Name:        "fold_cover",
		Description: "Finds the top-most blocks covered by selections. Loose matches any touched block; strict only blocks a selection fully encloses.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + rangesProps + `,` + coverSelectionsProp + `,
				"policy": {"type": "string", "enum": ["loose", "strict"], "default": "loose"}
			},
			"required": ["selections"]
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p struct {
				rangesInput
				Selections []folding.Selection `json:"selections"`
				Policy     folding.Policy      `json:"policy"`
			}
			if err := unmarshal(params, &p); err != nil {
				return nil, err
			}
			if len(p.Selections) == 0 {
				return nil, errors.New("selections must not be empty")
			}
			ranges, err := r.ranges(ctx, p.rangesInput)
			if err != nil {
				return nil, err
			}
			for i, s := range p.Selections {
				p.Selections[i] = folding.NewSelection(s.Start, s.End)
			}
			matched := folding.Cover(folding.BuildForest(ranges), p.Selections, p.Policy)
			if matched == nil {
				matched = []folding.Range{}
			}
			return map[string]any{"policy": p.Policy, "ranges": matched}, nil
		},
	}
}

func (r *Registry) toolPlan() ToolDef {
	return ToolDef{
		Name:        "fold_plan",
		Description: "Plans a cursor-folding command and returns the fold instructions it would send to the editor, without applying them.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {
					"type": "string",
					"description": "Command id, e.g. foldAllExceptCursor or cursor-folding.foldLevelN."
				},` + rangesProps + `,` + planSelectionsProp + `,
				"cursor": {"type": "integer", "description": "Cursor line (0-based)."},
				"level": {"type": "integer", "description": "Depth for foldLevelN, starting at 1."},
				"options": {"type": "object", "description": "Command options keyed by their configuration names."}
			},
			"required": ["command"]
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			p := struct {
				Command string `json:"command"`
				commands.Request
			}{Request: commands.Request{Options: r.options}}
			if err := unmarshal(params, &p); err != nil {
				return nil, err
			}
			if p.Command == "" {
				return nil, errors.New("command is required")
			}
			plan, err := commands.NewDispatcher(r.provider, nil).Execute(ctx, p.Command, p.Request)
			if err != nil {
				return nil, err
			}
			if plan == nil {
				plan = commands.Plan{}
			}
			return map[string]any{"command": p.Command, "plan": plan}, nil
		},
	}
}
