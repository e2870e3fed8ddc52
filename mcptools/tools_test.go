package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

var sample = []folding.Range{
	{Start: 1, End: 10},
	{Start: 2, End: 4},
	{Start: 6, End: 9},
	{Start: 11, End: 15},
}

type staticProvider []folding.Range

func (p staticProvider) FoldingRanges(context.Context, string) ([]folding.Range, error) {
	return p, nil
}

func call(t *testing.T, r *Registry, name string, params map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	result, err := r.HandleTool(context.Background(), name, raw)
	require.NoError(t, err)
	// Round-trip through JSON to inspect the result the way a client would.
	data, err := json.Marshal(result)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestToolsRegistered(t *testing.T) {
	r := NewRegistry(nil, commands.Options{})
	var names []string
	for _, def := range r.Tools() {
		names = append(names, def.Name)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(def.InputSchema, &schema), "schema of %s", def.Name)
		assert.Equal(t, "object", schema["type"])
	}
	assert.Equal(t, []string{"fold_levels", "fold_enclose", "fold_forest", "fold_cover", "fold_plan"}, names)
}

func TestFoldLevels(t *testing.T) {
	out := call(t, NewRegistry(nil, commands.Options{}), "fold_levels", map[string]any{"ranges": sample})
	assert.EqualValues(t, 2, out["depth"])
	assert.Len(t, out["levels"], 2)
}

func TestFoldEnclose(t *testing.T) {
	r := NewRegistry(staticProvider(sample), commands.Options{})
	out := call(t, r, "fold_enclose", map[string]any{"uri": "file:///a.go", "line": 3})
	assert.EqualValues(t, 2, out["depth"])

	out = call(t, r, "fold_enclose", map[string]any{"ranges": sample, "line": 40})
	assert.EqualValues(t, 0, out["depth"])
	assert.Equal(t, []any{}, out["path"])
}

func TestFoldForest(t *testing.T) {
	out := call(t, NewRegistry(nil, commands.Options{}), "fold_forest", map[string]any{"ranges": sample})
	assert.EqualValues(t, 4, out["count"])
	assert.Len(t, out["forest"], 2)
}

func TestFoldCover(t *testing.T) {
	r := NewRegistry(nil, commands.Options{})
	out := call(t, r, "fold_cover", map[string]any{
		"ranges":     sample,
		"selections": []map[string]int{{"start": 11, "end": 13}},
	})
	assert.Equal(t, "loose", out["policy"])
	assert.Equal(t, []any{map[string]any{"start": 11.0, "end": 15.0}}, out["ranges"])

	out = call(t, r, "fold_cover", map[string]any{
		"ranges":     sample,
		"selections": []map[string]int{{"start": 11, "end": 13}},
		"policy":     "strict",
	})
	assert.Equal(t, []any{}, out["ranges"])
}

func TestFoldCoverRequiresSelections(t *testing.T) {
	r := NewRegistry(staticProvider(sample), commands.Options{})
	ctx := context.Background()

	_, err := r.HandleTool(ctx, "fold_cover", json.RawMessage(`{"ranges":[{"start":1,"end":10}]}`))
	assert.ErrorContains(t, err, "selections")
	_, err = r.HandleTool(ctx, "fold_cover", json.RawMessage(`{"uri":"file:///a.go","selections":[]}`))
	assert.ErrorContains(t, err, "selections")

	for _, def := range r.Tools() {
		if def.Name != "fold_cover" {
			continue
		}
		var schema struct {
			Properties map[string]struct {
				Description string `json:"description"`
				MinItems    int    `json:"minItems"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(def.InputSchema, &schema))
		sel := schema.Properties["selections"]
		assert.NotContains(t, sel.Description, "cursor")
		assert.Equal(t, 1, sel.MinItems)
	}
}

func TestFoldPlan(t *testing.T) {
	r := NewRegistry(staticProvider(sample), commands.Options{IgnoreChildrenExceptCursor: true})
	out := call(t, r, "fold_plan", map[string]any{"command": "foldAllExceptCursor", "uri": "file:///a.go", "cursor": 3})
	plan := out["plan"].([]any)
	require.Len(t, plan, 1)
	assert.Equal(t, []any{11.0, 6.0}, plan[0].(map[string]any)["lines"])

	// A level beyond the document folds nothing.
	out = call(t, r, "fold_plan", map[string]any{"command": "foldLevelN", "ranges": sample, "level": 5})
	assert.Equal(t, []any{}, out["plan"])
}

func TestToolErrors(t *testing.T) {
	r := NewRegistry(nil, commands.Options{})
	ctx := context.Background()

	_, err := r.HandleTool(ctx, "fold_everything", nil)
	assert.Error(t, err)

	_, err = r.HandleTool(ctx, "fold_levels", json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = r.HandleTool(ctx, "fold_levels", json.RawMessage(`{"uri":"file:///a.go"}`))
	assert.ErrorIs(t, err, commands.ErrNoProvider)

	_, err = r.HandleTool(ctx, "fold_enclose", json.RawMessage(`{"ranges":[]}`))
	assert.Error(t, err)

	_, err = r.HandleTool(ctx, "fold_plan", json.RawMessage(`{"command":"foldLevelN","ranges":[],"level":0}`))
	assert.ErrorIs(t, err, commands.ErrInvalidLevel)

	_, err = r.HandleTool(ctx, "fold_plan", json.RawMessage(`{"command":"nope"}`))
	assert.ErrorIs(t, err, commands.ErrUnknownCommand)

	_, err = r.HandleTool(ctx, "fold_cover", json.RawMessage(`{"ranges":[],"policy":"fuzzy"}`))
	assert.Error(t, err)
}

func TestServerHandler(t *testing.T) {
	s := NewServer(ServerConfig{Logger: cflog.Discard()})
	h := s.handler("fold_cover")

	req := mcp.CallToolRequest{}
	req.Params.Name = "fold_cover"
	req.Params.Arguments = map[string]any{
		"ranges":     sample,
		"selections": []map[string]int{{"start": 3, "end": 7}},
	}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out struct {
		Ranges []folding.Range `json:"ranges"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	assert.Equal(t, []folding.Range{sample[1], sample[2]}, out.Ranges)

	req.Params.Arguments = map[string]any{"selections": []any{}}
	res, err = h(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
