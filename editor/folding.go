package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/folding"
)

// FoldRegion represents a foldable region of text.
type FoldRegion struct {
	StartLine int  `json:"startLine"`
	EndLine   int  `json:"endLine"`
	Folded    bool `json:"folded"`
}

// Range returns the line span of the region.
func (r FoldRegion) Range() folding.Range {
	return folding.Range{Start: r.StartLine, End: r.EndLine}
}

// FoldState tracks which regions of one document are folded. It applies
// command instructions and is safe for concurrent use.
type FoldState struct {
	mu      sync.Mutex
	regions []FoldRegion // sorted by start, outermost first
}

// NewFoldState creates an empty fold state.
func NewFoldState() *FoldState {
	return &FoldState{}
}

// SetRegions replaces the fold regions (e.g. from a range provider).
// Preserves fold state for regions that match by start line.
func (fs *FoldState) SetRegions(regions []FoldRegion) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldFolded := make(map[int]bool)
	for _, r := range fs.regions {
		if r.Folded {
			oldFolded[r.StartLine] = true
		}
	}
	next := make([]FoldRegion, len(regions))
	copy(next, regions)
	for i := range next {
		if oldFolded[next[i].StartLine] {
			next[i].Folded = true
		}
	}
	sortRegions(next)
	fs.regions = next
}

// SetRanges replaces the fold regions with unfolded regions for ranges,
// keeping the fold state of regions whose start line survives.
func (fs *FoldState) SetRanges(ranges []folding.Range) {
	regions := make([]FoldRegion, len(ranges))
	for i, r := range ranges {
		regions[i] = FoldRegion{StartLine: r.Start, EndLine: r.End}
	}
	fs.SetRegions(regions)
}

func sortRegions(regions []FoldRegion) {
	ranges := make([]folding.Range, len(regions))
	folded := make(map[folding.Range]int)
	for i, r := range regions {
		ranges[i] = r.Range()
		if r.Folded {
			folded[ranges[i]]++
		}
	}
	folding.SortRanges(ranges)
	for i, r := range ranges {
		regions[i] = FoldRegion{StartLine: r.Start, EndLine: r.End}
		if folded[r] > 0 {
			regions[i].Folded = true
			folded[r]--
		}
	}
}

// Toggle folds/unfolds the region starting at the given line, or else the
// innermost region containing it.
func (fs *FoldState) Toggle(line int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i := fs.target(line)
	if i < 0 {
		return false
	}
	fs.regions[i].Folded = !fs.regions[i].Folded
	return true
}

// FoldAll folds all regions.
func (fs *FoldState) FoldAll() {
	fs.setAll(true)
}

// UnfoldAll unfolds all regions.
func (fs *FoldState) UnfoldAll() {
	fs.setAll(false)
}

func (fs *FoldState) setAll(folded bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.regions {
		fs.regions[i].Folded = folded
	}
}

// IsLineHidden returns true if the given line is inside a folded region
// (not the start line, which remains visible).
func (fs *FoldState) IsLineHidden(line int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hidden(line)
}

func (fs *FoldState) hidden(line int) bool {
	for _, r := range fs.regions {
		if r.Folded && line > r.StartLine && line <= r.EndLine {
			return true
		}
	}
	return false
}

// Regions returns a copy of all fold regions.
func (fs *FoldState) Regions() []FoldRegion {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]FoldRegion, len(fs.regions))
	copy(out, fs.regions)
	return out
}

// Folded returns the start lines of the folded regions.
func (fs *FoldState) Folded() []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var lines []int
	for _, r := range fs.regions {
		if r.Folded {
			lines = append(lines, r.StartLine)
		}
	}
	return lines
}

// target returns the index of the innermost region starting at line, or
// failing that the innermost region containing it, or -1.
func (fs *FoldState) target(line int) int {
	best := -1
	for i, r := range fs.regions {
		if r.StartLine == line {
			best = i
			continue
		}
		if best >= 0 && fs.regions[best].StartLine == line {
			continue
		}
		if line > r.StartLine && line <= r.EndLine {
			best = i
		}
	}
	return best
}

// chain returns the indices of the regions containing line, outermost
// first.
func (fs *FoldState) chain(line int) []int {
	var out []int
	for i, r := range fs.regions {
		if r.StartLine > line {
			break
		}
		if line <= r.EndLine {
			out = append(out, i)
		}
	}
	return out
}

// VisibleLines returns which original line indices are visible after folding.
func (fs *FoldState) VisibleLines(totalLines int) []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	visible := make([]int, 0, totalLines)
	for i := 0; i < totalLines; i++ {
		if !fs.hidden(i) {
			visible = append(visible, i)
		}
	}
	return visible
}

// Apply performs a command instruction. The uri is ignored: a FoldState
// holds a single document.
func (fs *FoldState) Apply(_ context.Context, _ string, in commands.Instruction) error {
	switch in.Action {
	case commands.ActionFoldAll:
		fs.FoldAll()
	case commands.ActionUnfoldAll:
		fs.UnfoldAll()
	case commands.ActionToggle:
		for _, line := range in.Lines {
			fs.Toggle(line)
		}
	case commands.ActionFold, commands.ActionUnfold:
		folded := in.Action == commands.ActionFold
		levels := max(in.Levels, 1)
		fs.mu.Lock()
		for _, line := range in.Lines {
			fs.setLevels(line, levels, in.Direction, folded)
		}
		fs.mu.Unlock()
	default:
		return fmt.Errorf("unsupported fold action %q", in.Action)
	}
	return nil
}

// setLevels updates the innermost region containing line and then walks
// levels-1 further regions: ancestors for DirectionUp, descendants for
// DirectionDown.
func (fs *FoldState) setLevels(line, levels int, dir commands.Direction, folded bool) {
	chain := fs.chain(line)
	if len(chain) == 0 {
		return
	}
	inner := chain[len(chain)-1]
	if dir == commands.DirectionDown {
		fs.setDescendants(inner, levels, folded)
		return
	}
	for i := len(chain) - 1; i >= 0 && i >= len(chain)-levels; i-- {
		fs.regions[chain[i]].Folded = folded
	}
}

func (fs *FoldState) setDescendants(root, levels int, folded bool) {
	outer := fs.regions[root].Range()
	fs.regions[root].Folded = folded
	// open holds the regions between root and the current one.
	var open []folding.Range
	for i := root + 1; i < len(fs.regions) && fs.regions[i].StartLine <= outer.End; i++ {
		r := fs.regions[i].Range()
		for len(open) > 0 && !open[len(open)-1].Encloses(r) {
			open = open[:len(open)-1]
		}
		if len(open)+1 < levels {
			fs.regions[i].Folded = folded
		}
		open = append(open, r)
	}
}
