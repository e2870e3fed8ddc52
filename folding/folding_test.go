package folding

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

// sample is the four-range document used throughout these tests:
//
//	[1,10]
//	  [2,4]
//	  [6,9]
//	[11,15]
var sample = []Range{
	{Start: 1, End: 10},
	{Start: 2, End: 4},
	{Start: 6, End: 9},
	{Start: 11, End: 15},
}

func TestGroupLevels(t *testing.T) {
	got := GroupLevels(sample)
	want := LevelGroups{
		{{Start: 1, End: 10}, {Start: 11, End: 15}},
		{{Start: 2, End: 4}, {Start: 6, End: 9}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GroupLevels = %v, want %v", got, want)
	}
	if got.Depth() != 2 {
		t.Errorf("Depth = %d, want 2", got.Depth())
	}
}

func TestGroupLevelsEmpty(t *testing.T) {
	got := GroupLevels(nil)
	if got.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", got.Depth())
	}
	if got.Level(1) != nil {
		t.Errorf("Level(1) = %v, want nil", got.Level(1))
	}
	if path := got.Enclose(3); len(path) != 0 {
		t.Errorf("Enclose on empty groups = %v, want empty", path)
	}
}

func TestGroupLevelsIdenticalSpan(t *testing.T) {
	got := GroupLevels([]Range{{Start: 2, End: 4}, {Start: 2, End: 4}})
	want := LevelGroups{{{Start: 2, End: 4}}, {{Start: 2, End: 4}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupLevels = %v, want %v", got, want)
	}
}

func TestGroupLevelsReturnsToShallowerDepth(t *testing.T) {
	ranges := []Range{
		{Start: 0, End: 20},
		{Start: 1, End: 8},
		{Start: 2, End: 3},
		{Start: 5, End: 6},
		{Start: 10, End: 15},
		{Start: 21, End: 22},
	}
	got := GroupLevels(ranges)
	want := LevelGroups{
		{{Start: 0, End: 20}, {Start: 21, End: 22}},
		{{Start: 1, End: 8}, {Start: 10, End: 15}},
		{{Start: 2, End: 3}, {Start: 5, End: 6}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupLevels = %v, want %v", got, want)
	}
}

func TestLevel(t *testing.T) {
	g := GroupLevels(sample)
	tests := []struct {
		depth int
		want  []int
	}{
		{0, nil},
		{1, []int{1, 11}},
		{2, []int{2, 6}},
		{3, nil},
		{-1, nil},
	}
	for _, tt := range tests {
		if got := g.Starts(tt.depth); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Starts(%d) = %v, want %v", tt.depth, got, tt.want)
		}
	}
}

func TestEnclose(t *testing.T) {
	g := GroupLevels(sample)
	tests := []struct {
		line   int
		path   []Range
		winner Enclosure
	}{
		{1, []Range{{1, 10}}, Enclosure{Range{1, 10}, 1, 0}},
		{3, []Range{{1, 10}, {2, 4}}, Enclosure{Range{2, 4}, 2, 0}},
		{4, []Range{{1, 10}, {2, 4}}, Enclosure{Range{2, 4}, 2, 0}},
		{5, []Range{{1, 10}}, Enclosure{Range{1, 10}, 1, 0}},
		{7, []Range{{1, 10}, {6, 9}}, Enclosure{Range{6, 9}, 2, 1}},
		{9, []Range{{1, 10}, {6, 9}}, Enclosure{Range{6, 9}, 2, 1}},
		{11, []Range{{11, 15}}, Enclosure{Range{11, 15}, 1, 1}},
		{13, []Range{{11, 15}}, Enclosure{Range{11, 15}, 1, 1}},
		{15, []Range{{11, 15}}, Enclosure{Range{11, 15}, 1, 1}},
	}
	for _, tt := range tests {
		path := g.Enclose(tt.line)
		if got := path.Ranges(); !reflect.DeepEqual(got, tt.path) {
			t.Errorf("Enclose(%d) = %v, want %v", tt.line, got, tt.path)
			continue
		}
		winner, ok := path.Winner()
		if !ok || winner != tt.winner {
			t.Errorf("Enclose(%d).Winner() = %+v, %v, want %+v", tt.line, winner, ok, tt.winner)
		}
		if path.Depth() != tt.winner.Depth {
			t.Errorf("Enclose(%d).Depth() = %d, want %d", tt.line, path.Depth(), tt.winner.Depth)
		}
	}
}

func TestEncloseOutside(t *testing.T) {
	g := GroupLevels(sample)
	for _, line := range []int{-4, 0, 16, 1000} {
		path := g.Enclose(line)
		if len(path) != 0 {
			t.Errorf("Enclose(%d) = %v, want empty", line, path)
		}
		if _, ok := path.Winner(); ok {
			t.Errorf("Enclose(%d).Winner() reported a winner", line)
		}
	}
}

func TestBuildForest(t *testing.T) {
	got := BuildForest(sample)
	want := Forest{
		{Range: Range{1, 10}, Children: []*Node{
			{Range: Range{2, 4}},
			{Range: Range{6, 9}},
		}},
		{Range: Range{11, 15}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildForest = %s, want %s", dumpForest(got), dumpForest(want))
	}
}

func TestBuildForestLeavesInputAlone(t *testing.T) {
	in := append([]Range(nil), sample...)
	first := BuildForest(in)
	second := BuildForest(in)
	if !reflect.DeepEqual(in, sample) {
		t.Errorf("input modified: %v", in)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second build differs: %s vs %s", dumpForest(first), dumpForest(second))
	}
}

func TestBuildForestWithin(t *testing.T) {
	forest, consumed := BuildForestWithin(sample[1:], 10)
	if consumed != 2 {
		t.Errorf("consumed = %d, want 2", consumed)
	}
	if got, want := forest.Roots(), []Range{{2, 4}, {6, 9}}; !reflect.DeepEqual(got, want) {
		t.Errorf("roots = %v, want %v", got, want)
	}
}

func TestBuildForestEmpty(t *testing.T) {
	if f := BuildForest(nil); len(f) != 0 {
		t.Errorf("BuildForest(nil) = %v, want empty", f)
	}
}

func TestBuildForestDeepNesting(t *testing.T) {
	const n = 200000
	ranges := make([]Range, n)
	for i := range ranges {
		ranges[i] = Range{Start: i, End: 2*n - i}
	}
	forest := BuildForest(ranges)
	if len(forest) != 1 {
		t.Fatalf("roots = %d, want 1", len(forest))
	}
	if forest.Len() != n {
		t.Errorf("Len = %d, want %d", forest.Len(), n)
	}
	maxDepth := 0
	forest.Walk(func(_ *Node, depth int) bool {
		maxDepth = max(maxDepth, depth)
		return true
	})
	if maxDepth != n {
		t.Errorf("max depth = %d, want %d", maxDepth, n)
	}
	if g := GroupLevels(ranges); g.Depth() != n {
		t.Errorf("GroupLevels depth = %d, want %d", g.Depth(), n)
	}
}

func TestCoverLoose(t *testing.T) {
	forest := BuildForest(sample)
	tests := []struct {
		name       string
		selections []Selection
		want       []Range
	}{
		{"cursor and span", []Selection{Cursor(3), NewSelection(1, 5)}, []Range{{1, 10}}},
		{"everything", []Selection{NewSelection(1, 15)}, []Range{{1, 10}, {11, 15}}},
		{"second root start", []Selection{NewSelection(11, 13)}, []Range{{11, 15}}},
		{"between children", []Selection{NewSelection(3, 7)}, []Range{{2, 4}, {6, 9}}},
		{"inside a leaf", []Selection{Cursor(3)}, nil},
		{"reversed selection", []Selection{NewSelection(7, 3)}, []Range{{2, 4}, {6, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cover(forest, tt.selections, Loose)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cover loose = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoverStrict(t *testing.T) {
	forest := BuildForest(sample)
	tests := []struct {
		name       string
		selections []Selection
		want       []Range
	}{
		{"cursor and span", []Selection{Cursor(3), NewSelection(1, 5)}, []Range{{2, 4}}},
		{"everything", []Selection{NewSelection(1, 15)}, []Range{{1, 10}, {11, 15}}},
		{"part of second root", []Selection{NewSelection(11, 13)}, nil},
		{"whole second root", []Selection{NewSelection(11, 15)}, []Range{{11, 15}}},
		{"between children", []Selection{NewSelection(3, 7)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cover(forest, tt.selections, Strict)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Cover strict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Loose, "loose": Loose, "strict": Strict} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("fuzzy"); err == nil {
		t.Error("ParsePolicy(fuzzy) should fail")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(sample); err != nil {
		t.Fatalf("Validate(sample) = %v", err)
	}
	tests := []struct {
		name   string
		ranges []Range
		index  int
	}{
		{"inverted", []Range{{1, 4}, {6, 5}}, 1},
		{"unsorted", []Range{{6, 9}, {1, 4}}, 1},
		{"partial overlap", []Range{{1, 5}, {3, 8}}, 1},
		{"overlap with ancestor", []Range{{0, 10}, {1, 3}, {2, 12}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ranges)
			if !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("Validate = %v, want ErrInvariantViolation", err)
			}
			var ie *InvariantError
			if !errors.As(err, &ie) {
				t.Fatalf("Validate error %T is not *InvariantError", err)
			}
			if ie.Index != tt.index {
				t.Errorf("Index = %d, want %d", ie.Index, tt.index)
			}
		})
	}
}

func TestSortRanges(t *testing.T) {
	ranges := []Range{{6, 9}, {2, 3}, {1, 10}, {2, 4}, {11, 15}}
	SortRanges(ranges)
	want := []Range{{1, 10}, {2, 4}, {2, 3}, {6, 9}, {11, 15}}
	if !reflect.DeepEqual(ranges, want) {
		t.Errorf("SortRanges = %v, want %v", ranges, want)
	}
}

func TestNormalize(t *testing.T) {
	in := []Range{{11, 15}, {6, 9}, {8, 12}, {5, 3}, {1, 10}, {2, 4}}
	got := Normalize(in)
	if !reflect.DeepEqual(got, sample) {
		t.Errorf("Normalize = %v, want %v", got, sample)
	}
	if err := Validate(got); err != nil {
		t.Errorf("Validate(Normalize) = %v", err)
	}
	if in[0] != (Range{11, 15}) {
		t.Error("Normalize reordered its input")
	}
	if got := Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", got)
	}
}

// genLaminar appends a random sorted laminar family inside [lo, hi].
// Children may share their parent's first or last line but never start on
// its last line, which would make them siblings.
func genLaminar(rng *rand.Rand, lo, hi, depth int, parent *Range, out *[]Range) {
	line := lo
	for line <= hi {
		start := line + rng.Intn(3)
		if start > hi || (parent != nil && start >= parent.End) {
			return
		}
		r := Range{Start: start, End: start + rng.Intn(min(hi-start, 15)+1)}
		if parent != nil && r == *parent {
			r.End--
		}
		*out = append(*out, r)
		if depth < 6 && r.End > r.Start {
			genLaminar(rng, r.Start+rng.Intn(2), r.End-rng.Intn(2), depth+1, &r, out)
		}
		line = r.End + 1
	}
}

func randomRanges(seed int64) []Range {
	var out []Range
	genLaminar(rand.New(rand.NewSource(seed)), 0, 300, 0, nil, &out)
	return out
}

// depthOf counts the ranges enclosing r, r included.
func depthOf(ranges []Range, r Range) int {
	d := 0
	for _, o := range ranges {
		if o.Encloses(r) {
			d++
		}
	}
	return d
}

func TestPropertiesOnRandomInput(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		ranges := randomRanges(seed)
		if err := Validate(ranges); err != nil {
			t.Fatalf("seed %d: generator produced invalid input: %v", seed, err)
		}
		groups := GroupLevels(ranges)

		all := groups.All()
		SortRanges(all)
		if !reflect.DeepEqual(all, ranges) {
			t.Fatalf("seed %d: grouping lost or duplicated ranges", seed)
		}
		for d := 1; d <= groups.Depth(); d++ {
			level := groups.Level(d)
			for i, r := range level {
				if got := depthOf(ranges, r); got != d {
					t.Fatalf("seed %d: %v placed at depth %d, nesting depth is %d", seed, r, d, got)
				}
				if i > 0 && level[i-1].End >= r.Start {
					t.Fatalf("seed %d: siblings %v and %v overlap", seed, level[i-1], r)
				}
			}
		}

		for line := -1; line <= 302; line++ {
			path := groups.Enclose(line)
			for _, r := range ranges {
				if r.Contains(line) && !path.Contains(r) {
					t.Fatalf("seed %d: line %d: %v missing from path %v", seed, line, r, path.Ranges())
				}
			}
			for i, e := range path {
				if e.Depth != i+1 || !e.Range.Contains(line) {
					t.Fatalf("seed %d: line %d: bad path entry %+v", seed, line, e)
				}
			}
		}

		forest := BuildForest(ranges)
		if got := forest.Flatten(); !reflect.DeepEqual(got, ranges) {
			t.Fatalf("seed %d: Flatten does not reproduce the input", seed)
		}
		forest.Walk(func(n *Node, _ int) bool {
			for _, c := range n.Children {
				if !n.Range.Encloses(c.Range) {
					t.Fatalf("seed %d: child %v outside parent %v", seed, c.Range, n.Range)
				}
			}
			return true
		})
	}
}

func TestCoverageMinimalityOnRandomInput(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		ranges := randomRanges(seed)
		forest := BuildForest(ranges)
		rng := rand.New(rand.NewSource(seed + 1000))
		selections := []Selection{
			NewSelection(rng.Intn(300), rng.Intn(300)),
			NewSelection(rng.Intn(300), rng.Intn(300)),
		}
		for _, policy := range []Policy{Loose, Strict} {
			got := Cover(forest, selections, policy)
			match := policy.Match()
			for _, r := range got {
				matched := false
				for _, s := range selections {
					matched = matched || match(r, s)
				}
				if !matched {
					t.Fatalf("seed %d %s: %v returned without a matching selection", seed, policy, r)
				}
			}
			for i, a := range got {
				for j, b := range got {
					if i != j && a.Encloses(b) {
						t.Fatalf("seed %d %s: %v and its descendant %v both returned", seed, policy, a, b)
					}
				}
			}
		}
	}
}

// referenceCover resolves selections by containment alone: the outermost
// ranges are tried first and an unmatched range defers to the ranges
// nested in it.
func referenceCover(ranges []Range, selections []Selection, match MatchFunc) []Range {
	var out []Range
	var resolve func(within []Range)
	resolve = func(within []Range) {
		for _, r := range outermost(within) {
			matched := false
			for _, sel := range selections {
				matched = matched || match(r, sel)
			}
			if matched {
				out = append(out, r)
				continue
			}
			var inner []Range
			for _, o := range within {
				if o != r && r.Encloses(o) {
					inner = append(inner, o)
				}
			}
			resolve(inner)
		}
	}
	resolve(ranges)
	return out
}

// outermost returns the ranges not enclosed by another one, in order.
func outermost(ranges []Range) []Range {
	var out []Range
	for _, r := range ranges {
		top := true
		for _, o := range ranges {
			if o != r && o.Encloses(r) {
				top = false
				break
			}
		}
		if top {
			out = append(out, r)
		}
	}
	return out
}

func TestGeneratorSharesBoundaries(t *testing.T) {
	var sharedStart, sharedEnd bool
	for seed := int64(0); seed < 50; seed++ {
		ranges := randomRanges(seed)
		for i, r := range ranges {
			for _, o := range ranges[i+1:] {
				if o != r && r.Encloses(o) {
					sharedStart = sharedStart || o.Start == r.Start
					sharedEnd = sharedEnd || o.End == r.End
				}
			}
		}
	}
	if !sharedStart || !sharedEnd {
		t.Fatalf("generator never nests on a shared line: start %v, end %v", sharedStart, sharedEnd)
	}
}

func TestCoverMatchesContainmentResolver(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		ranges := randomRanges(seed)
		if err := Validate(ranges); err != nil {
			t.Fatalf("seed %d: generator produced invalid input: %v", seed, err)
		}
		forest := BuildForest(ranges)
		rng := rand.New(rand.NewSource(seed + 5000))

		selections := make([]Selection, 1+rng.Intn(3))
		for i := range selections {
			if rng.Intn(3) == 0 {
				selections[i] = Cursor(rng.Intn(302))
			} else {
				selections[i] = NewSelection(rng.Intn(302), rng.Intn(302))
			}
		}
		for _, policy := range []Policy{Loose, Strict} {
			got := Cover(forest, selections, policy)
			want := referenceCover(ranges, selections, policy.Match())
			if len(got) == 0 && len(want) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("seed %d %s %v:\n got %v\nwant %v", seed, policy, selections, got, want)
			}
		}
	}
}

func dumpForest(f Forest) string {
	s := ""
	f.Walk(func(n *Node, depth int) bool {
		s += n.Range.String()
		s += "@"
		s += string(rune('0' + depth))
		s += " "
		return true
	})
	return s
}
