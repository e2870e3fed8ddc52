package editor

import (
	"context"
	"reflect"
	"testing"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/folding"
)

func TestFoldToggle(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 0, EndLine: 5},
		{StartLine: 10, EndLine: 15},
	})

	if fs.Toggle(0) != true {
		t.Error("Toggle should return true for existing region")
	}
	if !fs.regions[0].Folded {
		t.Error("region 0 should be folded after Toggle")
	}

	if fs.Toggle(0) != true {
		t.Error("Toggle should return true for existing region")
	}
	if fs.regions[0].Folded {
		t.Error("region 0 should be unfolded after second Toggle")
	}

	if fs.Toggle(99) != false {
		t.Error("Toggle should return false for non-existing line")
	}
}

func TestFoldAllUnfoldAll(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 0, EndLine: 5},
		{StartLine: 10, EndLine: 15},
	})

	fs.FoldAll()
	for _, r := range fs.Regions() {
		if !r.Folded {
			t.Errorf("region at line %d should be folded", r.StartLine)
		}
	}

	fs.UnfoldAll()
	for _, r := range fs.Regions() {
		if r.Folded {
			t.Errorf("region at line %d should be unfolded", r.StartLine)
		}
	}
}

func TestIsLineHidden(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 2, EndLine: 5, Folded: true},
	})

	tests := []struct {
		line   int
		hidden bool
	}{
		{0, false},
		{1, false},
		{2, false}, // start line is visible
		{3, true},
		{4, true},
		{5, true},
		{6, false},
	}
	for _, tt := range tests {
		if got := fs.IsLineHidden(tt.line); got != tt.hidden {
			t.Errorf("IsLineHidden(%d) = %v, want %v", tt.line, got, tt.hidden)
		}
	}
}

func TestSetRegionsPreservesFoldState(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 0, EndLine: 5},
		{StartLine: 10, EndLine: 15},
	})
	fs.regions[0].Folded = true

	// Update regions with same start lines
	fs.SetRanges([]folding.Range{
		{Start: 0, End: 6},   // same start, different end
		{Start: 10, End: 20}, // same start, different end
		{Start: 25, End: 30}, // new region
	})

	if !fs.regions[0].Folded {
		t.Error("region at line 0 should preserve folded state")
	}
	if fs.regions[1].Folded {
		t.Error("region at line 10 was not folded, should stay unfolded")
	}
	if fs.regions[2].Folded {
		t.Error("new region at line 25 should not be folded")
	}
}

func TestSetRegionsSorts(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 6, EndLine: 9, Folded: true},
		{StartLine: 1, EndLine: 10},
		{StartLine: 2, EndLine: 4},
	})
	want := []FoldRegion{
		{StartLine: 1, EndLine: 10},
		{StartLine: 2, EndLine: 4},
		{StartLine: 6, EndLine: 9, Folded: true},
	}
	if got := fs.Regions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Regions = %+v, want %+v", got, want)
	}
}

func TestVisibleLines(t *testing.T) {
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 1, EndLine: 3, Folded: true},
	})

	got := fs.VisibleLines(6)
	want := []int{0, 1, 4, 5} // lines 2,3 are hidden
	if !reflect.DeepEqual(got, want) {
		t.Errorf("VisibleLines = %v, want %v", got, want)
	}
}

func TestApplySingleLevel(t *testing.T) {
	ctx := context.Background()
	fs := NewFoldState()
	fs.SetRegions([]FoldRegion{
		{StartLine: 0, EndLine: 10},
		{StartLine: 2, EndLine: 5}, // inner region
	})

	// Folding at line 3 folds only the innermost containing region
	if err := fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionFold, Lines: []int{3}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !fs.regions[1].Folded {
		t.Error("inner region should be folded")
	}
	if fs.regions[0].Folded {
		t.Error("outer region should not be folded")
	}

	// A line outside every region changes nothing
	if err := fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionUnfold, Lines: []int{20}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(fs.Folded(), []int{2}) {
		t.Errorf("Folded = %v, want [2]", fs.Folded())
	}

	if err := fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionUnfold, Lines: []int{5}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if fs.regions[1].Folded {
		t.Error("inner region should be unfolded")
	}
}

func nested() *FoldState {
	fs := NewFoldState()
	fs.SetRanges([]folding.Range{
		{Start: 0, End: 20},
		{Start: 1, End: 10},
		{Start: 2, End: 4},
		{Start: 6, End: 9},
		{Start: 12, End: 18},
	})
	return fs
}

func TestApplyFoldUp(t *testing.T) {
	fs := nested()
	err := fs.Apply(context.Background(), "", commands.Instruction{
		Action: commands.ActionFold, Levels: 1, Direction: commands.DirectionUp, Lines: []int{2, 12},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fs.Folded(), []int{2, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}

	err = fs.Apply(context.Background(), "", commands.Instruction{
		Action: commands.ActionFold, Levels: 2, Direction: commands.DirectionUp, Lines: []int{7},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fs.Folded(), []int{1, 2, 6, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}
}

func TestApplyFoldDown(t *testing.T) {
	fs := nested()
	err := fs.Apply(context.Background(), "", commands.Instruction{
		Action: commands.ActionFold, Levels: 2, Direction: commands.DirectionDown, Lines: []int{0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fs.Folded(), []int{0, 1, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}
}

func TestApplyUnfoldAndToggle(t *testing.T) {
	fs := nested()
	ctx := context.Background()
	_ = fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionFoldAll})
	_ = fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionUnfold, Levels: 1, Lines: []int{1, 13}})
	if got, want := fs.Folded(), []int{0, 2, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}
	_ = fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionToggle, Lines: []int{6, 12}})
	if got, want := fs.Folded(), []int{0, 2, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}
	_ = fs.Apply(ctx, "", commands.Instruction{Action: commands.ActionUnfoldAll})
	if got := fs.Folded(); len(got) != 0 {
		t.Errorf("Folded = %v, want none", got)
	}
	if err := fs.Apply(ctx, "", commands.Instruction{Action: "explode"}); err == nil {
		t.Error("unknown action should fail")
	}
}

type staticRanges []folding.Range

func (s staticRanges) FoldingRanges(context.Context, string) ([]folding.Range, error) {
	return s, nil
}

func TestDispatchIntoFoldState(t *testing.T) {
	ranges := staticRanges{
		{Start: 1, End: 10},
		{Start: 2, End: 4},
		{Start: 6, End: 9},
		{Start: 11, End: 15},
	}
	fs := NewFoldState()
	fs.SetRanges(ranges)
	d := commands.NewDispatcher(ranges, fs)

	_, err := d.Execute(context.Background(), "foldAllExceptCursor", commands.Request{Cursor: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fs.Folded(), []int{6, 11}; !reflect.DeepEqual(got, want) {
		t.Errorf("Folded = %v, want %v", got, want)
	}
	if got, want := fs.VisibleLines(17), []int{0, 1, 2, 3, 4, 5, 6, 10, 11, 16}; !reflect.DeepEqual(got, want) {
		t.Errorf("VisibleLines = %v, want %v", got, want)
	}
}
