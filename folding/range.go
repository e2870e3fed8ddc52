// Package folding builds hierarchical structure over a document's folding
// ranges and answers enclosure and selection-coverage queries against it.
//
// Inputs are flat lists of line ranges sorted ascending by start that form a
// laminar family: any two ranges are either nested or disjoint. Every
// function in this package treats its input as an immutable snapshot and
// returns freshly allocated results; nothing is cached between calls.
package folding

import (
	"errors"
	"fmt"
	"sort"
)

// Range is an inclusive line interval [Start, End] describing one
// collapsible block. Lines are zero-based.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether line lies inside the range. Both ends count.
func (r Range) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Encloses reports whether other lies entirely inside r.
func (r Range) Encloses(other Range) bool {
	return r.Start <= other.Start && r.End >= other.End
}

// Lines returns the number of lines spanned by the range.
func (r Range) Lines() int {
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Selection is a contiguous line span selected by one cursor. An empty
// selection (a bare cursor) has Start == End.
type Selection struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// NewSelection returns the selection between two lines in either order, so
// a selection made upwards (anchor below the cursor) is still Start <= End.
func NewSelection(a, b int) Selection {
	if a > b {
		a, b = b, a
	}
	return Selection{Start: a, End: b}
}

// Cursor returns the empty selection at line.
func Cursor(line int) Selection {
	return Selection{Start: line, End: line}
}

// SortRanges orders ranges ascending by start. Ranges sharing a start line
// are ordered outermost first so that a parent precedes its children.
func SortRanges(ranges []Range) {
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		return ranges[i].End > ranges[j].End
	})
}

// ErrInvariantViolation is wrapped by every error returned from Validate.
var ErrInvariantViolation = errors.New("folding ranges violate the laminar invariant")

// InvariantError describes the first pair of ranges breaking the sorted
// laminar invariant.
type InvariantError struct {
	Index  int // index of the offending range
	Prev   Range
	Next   Range
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Reason == "inverted range" {
		return fmt.Sprintf("%v: range %d %s is inverted", ErrInvariantViolation, e.Index, e.Next)
	}
	return fmt.Sprintf("%v: range %d %s after %s: %s", ErrInvariantViolation, e.Index, e.Next, e.Prev, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// Validate checks that ranges are well formed, sorted by start and laminar.
// Grouping and forest building trust these properties without checking
// them; callers that cannot vouch for their provider can run Validate
// first and fail loudly instead of silently misgrouping.
func Validate(ranges []Range) error {
	// open holds the chain of ranges enclosing the current position.
	var open []Range
	for i, r := range ranges {
		if r.End < r.Start {
			return &InvariantError{Index: i, Next: r, Reason: "inverted range"}
		}
		if i > 0 && r.Start < ranges[i-1].Start {
			return &InvariantError{Index: i, Prev: ranges[i-1], Next: r, Reason: "not sorted by start"}
		}
		for len(open) > 0 && open[len(open)-1].End < r.Start {
			open = open[:len(open)-1]
		}
		if len(open) > 0 && !open[len(open)-1].Encloses(r) {
			return &InvariantError{Index: i, Prev: open[len(open)-1], Next: r, Reason: "partial overlap"}
		}
		open = append(open, r)
	}
	return nil
}

// Normalize returns a sorted laminar copy of ranges, suitable for every
// function in this package. Inverted ranges are dropped, and so is any
// range that partially overlaps one kept before it.
func Normalize(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.End >= r.Start {
			sorted = append(sorted, r)
		}
	}
	SortRanges(sorted)

	out := sorted[:0]
	var open []Range
	for _, r := range sorted {
		for len(open) > 0 && open[len(open)-1].End < r.Start {
			open = open[:len(open)-1]
		}
		if len(open) > 0 && !open[len(open)-1].Encloses(r) {
			continue
		}
		open = append(open, r)
		out = append(out, r)
	}
	return out
}
