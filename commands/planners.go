package commands

import (
	"fmt"

	"github.com/odvcencio/cursorfold/folding"
)

func foldLines(lines []int) Plan {
	return linesPlan(ActionFold, lines)
}

func linesPlan(action Action, lines []int) Plan {
	if len(lines) == 0 {
		return nil
	}
	return Plan{{Action: action, Levels: 1, Direction: DirectionUp, Lines: lines}}
}

// without returns level minus the entry at idx.
func without(level []folding.Range, idx int) []folding.Range {
	out := make([]folding.Range, 0, len(level))
	out = append(out, level[:idx]...)
	return append(out, level[idx+1:]...)
}

// inside returns the ranges of level enclosed by parent.
func inside(level []folding.Range, parent folding.Range) []folding.Range {
	var out []folding.Range
	for _, r := range level {
		if parent.Encloses(r) {
			out = append(out, r)
		}
	}
	return out
}

func planFoldAll(Request) (Plan, error) {
	return Plan{{Action: ActionFoldAll}}, nil
}

func planUnfoldAll(Request) (Plan, error) {
	return Plan{{Action: ActionUnfoldAll}}, nil
}

func planFoldCurrent(req Request) (Plan, error) {
	return linesPlan(ActionFold, []int{req.Cursor}), nil
}

func planUnfoldCurrent(req Request) (Plan, error) {
	return linesPlan(ActionUnfold, []int{req.Cursor}), nil
}

func planToggleCurrent(req Request) (Plan, error) {
	return Plan{{Action: ActionToggle, Levels: 1, Lines: []int{req.Cursor}}}, nil
}

// planFoldLevel folds every range at the requested depth.
func planFoldLevel(req Request) (Plan, error) {
	if req.Level < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, req.Level)
	}
	return foldLines(folding.GroupLevels(req.Ranges).Starts(req.Level)), nil
}

// planFoldUpper folds the level above the cursor's block.
func planFoldUpper(req Request) (Plan, error) {
	groups := folding.GroupLevels(req.Ranges)
	path := groups.Enclose(req.Cursor)
	if path.Depth() <= 1 {
		return nil, nil
	}
	parent := path[path.Depth()-2]
	targets := groups.Level(parent.Depth)
	if req.Options.IgnoreParentOnUpperBlocks {
		targets = without(targets, parent.Index)
	}
	return foldLines(folding.Starts(targets)), nil
}

// planFoldDeeper folds the level below the cursor's block, document wide.
func planFoldDeeper(req Request) (Plan, error) {
	groups := folding.GroupLevels(req.Ranges)
	depth := groups.Enclose(req.Cursor).Depth()
	if depth >= groups.Depth() {
		return nil, nil
	}
	return foldLines(groups.Starts(depth + 1)), nil
}

// planFoldDeeperEnclosing folds the level below the cursor's block, only
// inside that block.
func planFoldDeeperEnclosing(req Request) (Plan, error) {
	groups := folding.GroupLevels(req.Ranges)
	path := groups.Enclose(req.Cursor)
	winner, ok := path.Winner()
	if !ok || path.Depth() >= groups.Depth() {
		return nil, nil
	}
	return foldLines(folding.Starts(inside(groups.Level(winner.Depth+1), winner.Range))), nil
}

// planFoldSameLevel folds every range at the cursor block's depth.
func planFoldSameLevel(req Request) (Plan, error) {
	groups := folding.GroupLevels(req.Ranges)
	winner, ok := groups.Enclose(req.Cursor).Winner()
	if !ok {
		return nil, nil
	}
	return foldLines(groups.Starts(winner.Depth)), nil
}

// planFoldExceptCursor folds everything but the blocks enclosing the
// cursor.
func planFoldExceptCursor(req Request) (Plan, error) {
	groups := folding.GroupLevels(req.Ranges)
	path := groups.Enclose(req.Cursor)
	winner, ok := path.Winner()
	if !ok {
		return nil, nil
	}

	var targets []folding.Range
	for depth := 1; depth <= groups.Depth(); depth++ {
		level := groups.Level(depth)
		switch {
		case depth <= path.Depth():
			targets = append(targets, without(level, path[depth-1].Index)...)
		case !req.Options.IgnoreChildrenExceptCursor:
			targets = append(targets, level...)
		}
	}
	plan := foldLines(folding.Starts(targets))

	if req.Options.UnfoldChildrenExceptCursor && groups.Depth() > path.Depth() {
		children := inside(groups.Level(winner.Depth+1), winner.Range)
		plan = append(plan, linesPlan(ActionUnfold, folding.Starts(children))...)
	}
	return plan, nil
}

// planFoldUntilCursor folds the ranges starting at or above the cursor.
func planFoldUntilCursor(req Request) (Plan, error) {
	var lines []int
	for _, r := range req.Ranges {
		if req.Options.ExcludeCursorBlockUntil && r.Contains(req.Cursor) {
			continue
		}
		if r.Start > req.Cursor {
			break
		}
		lines = append(lines, r.Start)
	}
	return foldLines(lines), nil
}

// planFoldPastCursor folds the ranges starting at or below the cursor.
func planFoldPastCursor(req Request) (Plan, error) {
	var lines []int
	for _, r := range req.Ranges {
		if req.Options.ExcludeCursorBlockPast && r.Contains(req.Cursor) {
			continue
		}
		if r.Start < req.Cursor {
			continue
		}
		lines = append(lines, r.Start)
	}
	return foldLines(lines), nil
}

func planFoldSelection(req Request) (Plan, error) {
	return selectionPlan(ActionFold, req), nil
}

func planUnfoldSelection(req Request) (Plan, error) {
	return selectionPlan(ActionUnfold, req), nil
}

// selectionPlan targets the top-most ranges covered by the selections.
func selectionPlan(action Action, req Request) Plan {
	forest := folding.BuildForest(req.Ranges)
	matched := folding.Cover(forest, req.selections(), req.Options.Policy())
	return linesPlan(action, folding.Starts(matched))
}
