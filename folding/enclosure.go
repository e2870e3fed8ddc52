package folding

// Enclosure is one step of an enclosure path: a range containing the
// queried line, its 1-based depth and its index inside that depth's bucket.
type Enclosure struct {
	Range Range `json:"range"`
	Depth int   `json:"depth"`
	Index int   `json:"index"`
}

// EnclosurePath lists the ranges containing a line from depth 1 down to the
// innermost one. Its length is the enclosing depth of the line.
type EnclosurePath []Enclosure

// Enclose finds the chain of ranges containing line. Each depth is searched
// independently with a binary search; siblings are disjoint and sorted, so
// a depth holds at most one match. The line may be out of document bounds,
// in which case the path is simply empty.
func (g LevelGroups) Enclose(line int) EnclosurePath {
	var path EnclosurePath
	for i, bucket := range g {
		if idx, ok := search(bucket, line); ok {
			path = append(path, Enclosure{Range: bucket[idx], Depth: i + 1, Index: idx})
		}
	}
	return path
}

func search(bucket []Range, line int) (int, bool) {
	lo, hi := 0, len(bucket)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch r := bucket[mid]; {
		case line < r.Start:
			hi = mid
		case line > r.End:
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return 0, false
}

// Winner returns the innermost range containing the line.
func (p EnclosurePath) Winner() (Enclosure, bool) {
	if len(p) == 0 {
		return Enclosure{}, false
	}
	return p[len(p)-1], true
}

// Depth returns the enclosing depth of the queried line; 0 means no range
// contains it.
func (p EnclosurePath) Depth() int {
	return len(p)
}

// Ranges returns the ranges on the path, outermost first.
func (p EnclosurePath) Ranges() []Range {
	if len(p) == 0 {
		return nil
	}
	out := make([]Range, len(p))
	for i, e := range p {
		out[i] = e.Range
	}
	return out
}

// Contains reports whether r is on the path.
func (p EnclosurePath) Contains(r Range) bool {
	for _, e := range p {
		if e.Range == r {
			return true
		}
	}
	return false
}
