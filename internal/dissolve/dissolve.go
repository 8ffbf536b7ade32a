// Package dissolve partitions an MNSI-annotated basin set into contiguous
// upstream groups sized within [min_elements, max_elements], so their
// geometries can be pre-unioned to accelerate watershed-boundary queries.
//
// Grounded on the original implementation's greedy top-down grouping loop
// (_examples/original_source/src/global_hydrography/delineation/process.py,
// function create_dissolved_groups), including its progress-guard decay of
// min_elements on stalled iterations.
package dissolve

import (
	"errors"
	"fmt"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// minElementsFloor is the lowest min_elements the progress guard will decay
// to before giving up on a basin and leaving it ungrouped.
const minElementsFloor = 2

// progressDecay is how much the progress guard lowers min_elements by on a
// stalled iteration (no group formed).
const progressDecay = 25

// ErrInvalidMinElements is returned when min_elements < 2 at entry — a
// programmer error, not a data condition.
var ErrInvalidMinElements = errors.New("dissolve: min_elements must be >= 2")

// Plan augments basins with DissolveRootID, grouping ungrouped upstream
// subtrees as large as possible without exceeding maxElements, preferring
// groups no smaller than minElements. Grouping stops once no ungrouped
// basin's element count exceeds maxElements, or once the progress guard has
// lowered min_elements to the floor without finding a group root; basins
// still ungrouped then are returned with DissolveRootID ==
// domain.DissolveRootNone.
//
// basins must already carry MNSI fields (root, discover, finish) from the
// basin joiner; Plan does not mutate its input slice.
func Plan(basins []domain.Basin, maxElements, minElements int32) ([]domain.Basin, error) {
	if minElements < minElementsFloor {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMinElements, minElements)
	}
	if minElements > maxElements {
		return nil, fmt.Errorf("dissolve: min_elements (%d) exceeds max_elements (%d)", minElements, maxElements)
	}

	out := make([]domain.Basin, len(basins))
	copy(out, basins)
	for i := range out {
		out[i].DissolveRootID = domain.DissolveRootNone
	}

	ungrouped := make([]int, len(out))
	for i := range ungrouped {
		ungrouped[i] = i
	}
	recomputeElementCounts(out, ungrouped)

	currentMin := minElements
	for {
		remaining := elementsAboveMax(out, ungrouped, maxElements)
		if len(remaining) == 0 {
			break
		}

		root, ok := pickGroupRoot(out, ungrouped, maxElements, currentMin)
		if !ok {
			if currentMin <= minElementsFloor {
				break
			}
			currentMin -= progressDecay
			if currentMin < minElementsFloor {
				currentMin = minElementsFloor
			}
			continue
		}

		before := len(ungrouped)
		ungrouped = groupUpstreamOf(out, ungrouped, root)
		recomputeElementCounts(out, ungrouped)

		if len(ungrouped) < before {
			currentMin = minElements
		} else {
			currentMin -= progressDecay
			if currentMin < minElementsFloor {
				currentMin = minElementsFloor
			}
		}
	}

	return out, nil
}

// pickGroupRoot finds, among ungrouped basins with element_count <= max,
// the one with the largest element_count that is also > min. Returns
// ok == false if none qualifies.
func pickGroupRoot(basins []domain.Basin, ungrouped []int, maxElements, minElements int32) (int, bool) {
	best := -1
	for _, idx := range ungrouped {
		ec := basins[idx].ElementCount
		if ec > maxElements || ec <= minElements {
			continue
		}
		if best == -1 || ec > basins[best].ElementCount {
			best = idx
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// groupUpstreamOf assigns DissolveRootID to every still-ungrouped basin
// upstream of root (including root itself), and returns the remaining
// ungrouped index set.
func groupUpstreamOf(basins []domain.Basin, ungrouped []int, root int) []int {
	rootBasin := basins[root]
	next := ungrouped[:0:0]
	for _, idx := range ungrouped {
		if domain.Upstream(toReach(basins[idx]), toReach(rootBasin)) {
			basins[idx].DissolveRootID = rootBasin.LinkID
			continue
		}
		next = append(next, idx)
	}
	return next
}

// recomputeElementCounts sets, for each ungrouped basin, the count of
// still-ungrouped basins upstream of it (including itself).
func recomputeElementCounts(basins []domain.Basin, ungrouped []int) {
	for _, i := range ungrouped {
		var count int32
		for _, j := range ungrouped {
			if domain.Upstream(toReach(basins[j]), toReach(basins[i])) {
				count++
			}
		}
		basins[i].ElementCount = count
	}
}

func elementsAboveMax(basins []domain.Basin, ungrouped []int, maxElements int32) []int {
	var out []int
	for _, idx := range ungrouped {
		if basins[idx].ElementCount > maxElements {
			out = append(out, idx)
		}
	}
	return out
}

// toReach adapts the MNSI fields on a Basin to the shape domain.Upstream
// expects, so the containment check is shared between MNSI engine
// consumers regardless of which table they read from.
func toReach(b domain.Basin) domain.StreamReach {
	return domain.StreamReach{RootID: b.RootID, Discover: b.Discover, Finish: b.Finish}
}
