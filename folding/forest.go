package folding

import "math"

// Node is one range of a relation forest together with the ranges nested
// immediately inside it, in input order.
type Node struct {
	Range    Range   `json:"range"`
	Children []*Node `json:"children,omitempty"`
}

// Forest is an ordered list of root nodes: the top-level ranges and
// everything nested under them.
type Forest []*Node

// frame is one level of the builder's explicit stack: the siblings
// collected so far, the last line they may extend to and the node that will
// own them once the level closes.
type frame struct {
	siblings []*Node
	bound    int
	owner    *Node
}

// BuildForest converts a sorted laminar range list into a parent/child
// forest. The input slice is read through a cursor and never modified.
func BuildForest(ranges []Range) Forest {
	forest, _ := BuildForestWithin(ranges, math.MaxInt)
	return forest
}

// BuildForestWithin builds the forest of the leading ranges that start at
// or before bound. It returns the forest and the number of ranges consumed;
// ranges past the bound belong to an enclosing block and are left alone.
//
// A range whose start lies before the end of the last sibling is nested in
// that sibling, so a new level bounded by the sibling's end is opened. A
// level closes as soon as a range starts past its bound. The levels live on
// an explicit stack, so arbitrarily deep nesting cannot exhaust the call
// stack.
func BuildForestWithin(ranges []Range, bound int) (Forest, int) {
	stack := []frame{{bound: bound}}
	i := 0
	for i < len(ranges) {
		top := &stack[len(stack)-1]
		r := ranges[i]
		switch {
		case r.Start > top.bound:
			if len(stack) == 1 {
				return Forest(top.siblings), i
			}
			top.owner.Children = top.siblings
			stack = stack[:len(stack)-1]
		case len(top.siblings) > 0 && top.siblings[len(top.siblings)-1].Range.End > r.Start:
			last := top.siblings[len(top.siblings)-1]
			stack = append(stack, frame{bound: last.Range.End, owner: last})
		default:
			top.siblings = append(top.siblings, &Node{Range: r})
			i++
		}
	}
	for len(stack) > 1 {
		top := stack[len(stack)-1]
		top.owner.Children = top.siblings
		stack = stack[:len(stack)-1]
	}
	return Forest(stack[0].siblings), i
}

// Walk visits the forest in pre-order, passing each node's 1-based depth.
// Returning false from fn skips that node's children.
func (f Forest) Walk(fn func(n *Node, depth int) bool) {
	type item struct {
		node  *Node
		depth int
	}
	stack := make([]item, 0, len(f))
	for i := len(f) - 1; i >= 0; i-- {
		stack = append(stack, item{f[i], 1})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(it.node, it.depth) {
			continue
		}
		for i := len(it.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.node.Children[i], it.depth + 1})
		}
	}
}

// Flatten lists every range in pre-order: a node, then its children. For
// a forest built from sorted input this reproduces the input order.
func (f Forest) Flatten() []Range {
	var out []Range
	f.Walk(func(n *Node, _ int) bool {
		out = append(out, n.Range)
		return true
	})
	return out
}

// Len counts the nodes in the forest.
func (f Forest) Len() int {
	n := 0
	f.Walk(func(*Node, int) bool {
		n++
		return true
	})
	return n
}

// Roots returns the ranges of the top-level nodes.
func (f Forest) Roots() []Range {
	if len(f) == 0 {
		return nil
	}
	out := make([]Range, len(f))
	for i, n := range f {
		out[i] = n.Range
	}
	return out
}
