package folding

import "fmt"

// Policy decides when a selection counts as covering a range.
type Policy int

const (
	// Loose matches any range a selection touches, even partially.
	Loose Policy = iota
	// Strict matches only ranges a selection fully encloses.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Loose:
		return "loose"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "loose" or "strict".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "loose", "":
		return Loose, nil
	case "strict":
		return Strict, nil
	default:
		return Loose, fmt.Errorf("unknown coverage policy %q (want loose or strict)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MatchFunc reports whether a selection matches a range.
type MatchFunc func(r Range, s Selection) bool

// Match returns the predicate of the policy.
func (p Policy) Match() MatchFunc {
	if p == Strict {
		return MatchStrict
	}
	return MatchLoose
}

// MatchLoose matches when the selection overlaps the range's start line,
// overlaps its end line, or spans the whole range. The three clauses are
// kept as written even though the last is implied by the first two.
func MatchLoose(r Range, s Selection) bool {
	return (s.Start <= r.Start && s.End >= r.Start) ||
		(s.Start <= r.End && s.End >= r.End) ||
		(s.Start <= r.Start && s.End >= r.End)
}

// MatchStrict matches only when the selection fully encloses the range.
func MatchStrict(r Range, s Selection) bool {
	return s.Start <= r.Start && s.End >= r.End
}

// Cover returns the top-most ranges of the forest matched by any of the
// selections under the policy.
func Cover(forest Forest, selections []Selection, policy Policy) []Range {
	return CoverFunc(forest, selections, policy.Match())
}

// CoverFunc walks the forest depth-first. A node matched by any selection
// is emitted and its subtree is skipped; an unmatched node contributes
// whatever its children yield. Results come out left to right in input
// order.
func CoverFunc(forest Forest, selections []Selection, match MatchFunc) []Range {
	var out []Range
	forest.Walk(func(n *Node, _ int) bool {
		for _, s := range selections {
			if match(n.Range, s) {
				out = append(out, n.Range)
				return false
			}
		}
		return true
	})
	return out
}
