// Package mnsi computes the Modified Nested Set Index over a forest of
// stream-reach trees: for every reach, a (root, discover, finish) triple
// such that reach u is upstream of reach v iff they share a root and u's
// interval is contained in v's.
//
// The algorithm was developed on the basis described in
// https://doi.org/10.1016/j.envsoft.2017.06.009 — this package follows the
// same scheme as the original implementation (see
// _examples/original_source/src/global_hydrography/delineation/mnsi.py) but
// replaces the recursive, dictionary-keyed traversal with an explicit stack
// over a struct-of-arrays table, since watershed trees can be tens of
// thousands of reaches deep along a single path.
package mnsi

import (
	"fmt"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// visitState tracks, per node, whether it has been discovered and/or
// finished — distinct from the zero Discover/Finish values on
// domain.StreamReach so a legitimately-zero clock value is never
// mistaken for "unvisited" (the clock here starts at 1, so in practice
// this is belt-and-suspenders, but it keeps the state machine explicit).
type visitState struct {
	discovered bool
	finished   bool
}

// Compute runs the modified nested set index algorithm over reaches,
// returning a new slice (input order preserved) with RootID, Discover, and
// Finish populated on every reach.
//
// reaches must already form a forest where us_left/us_right are the exact
// inverse edges of ds_link. Compute does not mutate its input slice.
func Compute(reaches []domain.StreamReach) ([]domain.StreamReach, error) {
	byID := make(map[int64]int, len(reaches))
	for i, r := range reaches {
		byID[r.LinkID] = i
	}

	// Validate referential integrity up front so the traversal itself never
	// needs to special-case a missing index lookup.
	for _, r := range reaches {
		if r.DSLink != domain.NoLink {
			if _, ok := byID[r.DSLink]; !ok {
				return nil, &domain.DanglingReferenceError{LinkID: r.LinkID, Field: "ds_link", Target: r.DSLink}
			}
		}
		if r.USLeft != domain.NoLink {
			if _, ok := byID[r.USLeft]; !ok {
				return nil, &domain.DanglingReferenceError{LinkID: r.LinkID, Field: "us_left", Target: r.USLeft}
			}
		}
		if r.USRight != domain.NoLink {
			if _, ok := byID[r.USRight]; !ok {
				return nil, &domain.DanglingReferenceError{LinkID: r.LinkID, Field: "us_right", Target: r.USRight}
			}
		}
	}

	out := make([]domain.StreamReach, len(reaches))
	copy(out, reaches)
	states := make([]visitState, len(reaches))

	for i := range out {
		if out[i].IsRoot() {
			if err := computeForRoot(out, states, byID, i); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// computeForRoot runs the explicit-stack DFS for a single tree, rooted at
// out[rootIdx]. clock starts at 1 and advances on every visit, discovery
// and finish alike — the classic two-timestamp nested-set encoding. A node
// is peeked, not popped, on its first visit: since it stays in place on the
// stack, it naturally resurfaces once all of its children have been popped,
// at which point it is finished and removed.
func computeForRoot(out []domain.StreamReach, states []visitState, byID map[int64]int, rootIdx int) error {
	clock := int32(1)
	stack := []int{rootIdx}
	rootID := out[rootIdx].LinkID

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		node := &out[idx]
		st := &states[idx]

		switch {
		case !st.discovered:
			st.discovered = true
			node.RootID = rootID
			node.Discover = clock
			clock++

			// Push children on top so they are visited, and popped, before
			// this node resurfaces at the top of the stack for its finish
			// visit. Push us_right before us_left so that, with a LIFO
			// stack, us_left is visited (and thus discovered) first.
			if node.USRight != domain.NoLink {
				stack = append(stack, byID[node.USRight])
			}
			if node.USLeft != domain.NoLink {
				stack = append(stack, byID[node.USLeft])
			}

		case !st.finished:
			st.finished = true
			node.Finish = clock
			clock++
			stack = stack[:len(stack)-1]

		default:
			// Already finished, reached again — same node appears twice
			// with both discover and finish set, which can only happen if
			// the input graph has a cycle feeding back into an ancestor.
			return &domain.CycleError{LinkID: node.LinkID}
		}
	}

	return nil
}

// ElementCount returns finish - discover for a finished reach: an upper
// bound on its subtree size. The dissolve planner does not use it; it
// counts ungrouped upstream basins directly.
func ElementCount(r domain.StreamReach) (int32, error) {
	if !r.Finished() {
		return 0, fmt.Errorf("mnsi: link_id %d has no finish time", r.LinkID)
	}
	return r.Finish - r.Discover, nil
}
