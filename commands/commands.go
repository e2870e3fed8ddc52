package commands

import "strings"

// Prefix is the namespace of every command identifier.
const Prefix = "cursor-folding."

// Command is one entry of the command table.
type Command struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	// NeedsRanges is false for commands that go straight to the editor.
	NeedsRanges bool                        `json:"needsRanges"`
	Plan        func(Request) (Plan, error) `json:"-"`
}

var table = []Command{
	{ID: Prefix + "foldAll", Title: "Fold All", Category: "Editor", Plan: planFoldAll},
	{ID: Prefix + "unfoldAll", Title: "Unfold All", Category: "Editor", Plan: planUnfoldAll},
	{ID: Prefix + "foldCurrentBlock", Title: "Fold Current Block", Category: "Editor", Plan: planFoldCurrent},
	{ID: Prefix + "unfoldCurrentBlock", Title: "Unfold Current Block", Category: "Editor", Plan: planUnfoldCurrent},
	{ID: Prefix + "toggleFoldCurrentBlock", Title: "Toggle Fold Current Block", Category: "Editor", Plan: planToggleCurrent},
	{ID: Prefix + "foldLevelN", Title: "Fold Level N", Category: "Level", NeedsRanges: true, Plan: planFoldLevel},
	{ID: Prefix + "foldAllUpperBlocks", Title: "Fold All Upper Blocks", Category: "Level", NeedsRanges: true, Plan: planFoldUpper},
	{ID: Prefix + "foldAllDeeperBlocks", Title: "Fold All Deeper Blocks", Category: "Level", NeedsRanges: true, Plan: planFoldDeeper},
	{ID: Prefix + "foldAllEnclosingDeeperBlocks", Title: "Fold Deeper Blocks In Current Block", Category: "Level", NeedsRanges: true, Plan: planFoldDeeperEnclosing},
	{ID: Prefix + "foldSameIndent", Title: "Fold Blocks At Cursor Level", Category: "Level", NeedsRanges: true, Plan: planFoldSameLevel},
	{ID: Prefix + "foldAllExceptCursor", Title: "Fold All Except Cursor", Category: "Cursor", NeedsRanges: true, Plan: planFoldExceptCursor},
	{ID: Prefix + "foldUntilCursor", Title: "Fold Blocks Above Cursor", Category: "Cursor", NeedsRanges: true, Plan: planFoldUntilCursor},
	{ID: Prefix + "foldPastCursor", Title: "Fold Blocks Below Cursor", Category: "Cursor", NeedsRanges: true, Plan: planFoldPastCursor},
	{ID: Prefix + "foldSelection", Title: "Fold Selection", Category: "Selection", NeedsRanges: true, Plan: planFoldSelection},
	{ID: Prefix + "unfoldSelection", Title: "Unfold Selection", Category: "Selection", NeedsRanges: true, Plan: planUnfoldSelection},
}

// All returns the full command table in registration order.
func All() []Command {
	out := make([]Command, len(table))
	copy(out, table)
	return out
}

// Lookup finds a command by full or short identifier
// ("cursor-folding.foldAll" or "foldAll").
func Lookup(id string) (Command, bool) {
	full := id
	if !strings.HasPrefix(full, Prefix) {
		full = Prefix + id
	}
	for _, c := range table {
		if c.ID == full {
			return c, true
		}
	}
	return Command{}, false
}

// ShortID strips the command prefix.
func (c Command) ShortID() string {
	return strings.TrimPrefix(c.ID, Prefix)
}
