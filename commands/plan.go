package commands

import "github.com/odvcencio/cursorfold/folding"

// Action names the editor primitive an instruction invokes.
type Action string

const (
	ActionFold      Action = "fold"
	ActionUnfold    Action = "unfold"
	ActionFoldAll   Action = "foldAll"
	ActionUnfoldAll Action = "unfoldAll"
	ActionToggle    Action = "toggleFold"
)

// Direction tells the applier which way Levels propagates from each line.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Instruction is one fold/unfold request for the editor: fold (or unfold)
// the regions at Lines, propagating Levels regions in Direction.
type Instruction struct {
	Action    Action    `json:"action"`
	Levels    int       `json:"levels,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Lines     []int     `json:"lines,omitempty"`
}

// Empty reports whether applying the instruction would do nothing.
func (in Instruction) Empty() bool {
	switch in.Action {
	case ActionFoldAll, ActionUnfoldAll:
		return false
	default:
		return len(in.Lines) == 0
	}
}

// Plan is the ordered list of instructions a command produces.
type Plan []Instruction

// Lines returns the target lines of every instruction, in order.
func (p Plan) Lines() []int {
	var lines []int
	for _, in := range p {
		lines = append(lines, in.Lines...)
	}
	return lines
}

// Options are the user settings that pick between command variants.
type Options struct {
	// Leave the cursor's own parent unfolded in foldAllUpperBlocks.
	IgnoreParentOnUpperBlocks bool `json:"ignoreParentOnFoldAllUpperBlocks" yaml:"ignoreParentOnFoldAllUpperBlocks"`
	// Leave ranges deeper than the cursor alone in foldAllExceptCursor.
	IgnoreChildrenExceptCursor bool `json:"ignoreChildFoldsOnFoldAllExceptCursor" yaml:"ignoreChildFoldsOnFoldAllExceptCursor"`
	// Unfold the cursor block's direct children after foldAllExceptCursor.
	UnfoldChildrenExceptCursor bool `json:"unfoldChildFoldsOnFoldAllExceptCursor" yaml:"unfoldChildFoldsOnFoldAllExceptCursor"`
	// Skip ranges containing the cursor in foldUntilCursor.
	ExcludeCursorBlockUntil bool `json:"excludeCursorBlockOnFoldUntilCursor" yaml:"excludeCursorBlockOnFoldUntilCursor"`
	// Skip ranges containing the cursor in foldPastCursor.
	ExcludeCursorBlockPast bool `json:"excludeCursorBlockOnFoldPastCursor" yaml:"excludeCursorBlockOnFoldPastCursor"`
	// Use strict (full enclosure) coverage for selection commands.
	RequireFullSelection bool `json:"onlyFoldSelectionsWhenFullyCapped" yaml:"onlyFoldSelectionsWhenFullyCapped"`
}

// Policy returns the coverage policy selection commands use.
func (o Options) Policy() folding.Policy {
	if o.RequireFullSelection {
		return folding.Strict
	}
	return folding.Loose
}

// Request carries everything a command needs from the editor.
type Request struct {
	// URI identifies the document for the range provider and applier.
	URI string `json:"uri,omitempty"`
	// Ranges, when non-nil, are used instead of asking the provider.
	Ranges []folding.Range `json:"ranges,omitempty"`
	// Cursor is the line of the primary cursor.
	Cursor int `json:"cursor"`
	// Selections are the multi-cursor selections; empty means the cursor.
	Selections []folding.Selection `json:"selections,omitempty"`
	// Level is the 1-based depth for foldLevelN.
	Level   int     `json:"level,omitempty"`
	Options Options `json:"options"`
}

func (r Request) selections() []folding.Selection {
	if len(r.Selections) == 0 {
		return []folding.Selection{folding.Cursor(r.Cursor)}
	}
	return r.Selections
}
