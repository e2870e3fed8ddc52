package folding

// LevelGroups buckets ranges by nesting depth. Bucket i holds the ranges at
// depth i+1, so LevelGroups[0] are the top-level ranges. Each bucket is
// sorted by start, and because siblings at one depth never overlap it is
// also sorted by end.
type LevelGroups [][]Range

// GroupLevels groups a sorted laminar range list by nesting depth in a
// single pass.
//
// The scan keeps a stack of the ranges that are still open. Before placing
// a range it pops every ancestor the range starts after. If the range then
// starts before the end of the last range placed at the current depth, it
// is nested inside that range: the range becomes an ancestor and the scan
// moves one depth down. A range with the same span as its only child still
// produces two depths.
func GroupLevels(ranges []Range) LevelGroups {
	var (
		groups    LevelGroups
		ancestors []Range
		depth     int // 0-based index of the bucket receiving ranges
	)
	for _, r := range ranges {
		for len(ancestors) > 0 && r.Start > ancestors[len(ancestors)-1].End {
			ancestors = ancestors[:len(ancestors)-1]
			depth--
		}
		if depth < len(groups) {
			if bucket := groups[depth]; len(bucket) > 0 && bucket[len(bucket)-1].End > r.Start {
				ancestors = append(ancestors, bucket[len(bucket)-1])
				depth++
			}
		}
		if depth == len(groups) {
			groups = append(groups, nil)
		}
		groups[depth] = append(groups[depth], r)
	}
	return groups
}

// Depth returns the number of nesting levels.
func (g LevelGroups) Depth() int {
	return len(g)
}

// Level returns the ranges at the given 1-based depth, or nil when the
// depth does not exist.
func (g LevelGroups) Level(depth int) []Range {
	if depth < 1 || depth > len(g) {
		return nil
	}
	return g[depth-1]
}

// Starts returns the start lines of the ranges at the given 1-based depth.
func (g LevelGroups) Starts(depth int) []int {
	return Starts(g.Level(depth))
}

// All flattens the groups in depth order.
func (g LevelGroups) All() []Range {
	var n int
	for _, bucket := range g {
		n += len(bucket)
	}
	out := make([]Range, 0, n)
	for _, bucket := range g {
		out = append(out, bucket...)
	}
	return out
}

// Starts maps ranges to their start lines, the form fold operations take.
func Starts(ranges []Range) []int {
	if len(ranges) == 0 {
		return nil
	}
	lines := make([]int, len(ranges))
	for i, r := range ranges {
		lines[i] = r.Start
	}
	return lines
}
