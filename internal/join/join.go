// Package join transfers MNSI metadata from a stream-network table onto its
// matching basin polygons, and isolates stream reaches with no basin.
//
// Grounded on the original implementation's create_basins_mnsi
// (_examples/original_source/src/global_hydrography/delineation/process.py),
// which performs a pandas right-merge of basins onto the MNSI-annotated
// streams table keyed by link id.
package join

import (
	"errors"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// ErrSchemaMismatch is returned when both inputs are nil. LinkID is a typed
// field on both sides, so the join is otherwise total and never fails.
var ErrSchemaMismatch = errors.New("join: missing link_id join key")

// Result holds the two partitions produced by a basin join: Basins carries
// the MNSI fields onto matched basins, and OrphanStreams holds the
// stream reaches that had no matching basin.
type Result struct {
	Basins        []domain.Basin
	OrphanStreams []domain.StreamReach
}

// Streams right-outer-joins basins onto an MNSI-annotated stream-network
// table, keyed by LinkID. Every stream reach appears in exactly one of the
// two output sets; their union equals the input stream set.
func Streams(streams []domain.StreamReach, basins []domain.Basin) (Result, error) {
	if streams == nil && basins == nil {
		return Result{}, ErrSchemaMismatch
	}

	basinByLink := make(map[int64]domain.Basin, len(basins))
	for _, b := range basins {
		basinByLink[b.LinkID] = b
	}

	joined := make([]domain.Basin, 0, len(basins))
	orphans := make([]domain.StreamReach, 0)

	for _, s := range streams {
		b, ok := basinByLink[s.LinkID]
		if !ok {
			orphans = append(orphans, s)
			continue
		}
		b.RootID = s.RootID
		b.Discover = s.Discover
		b.Finish = s.Finish
		b.DissolveRootID = domain.DissolveRootNone
		joined = append(joined, b)
	}

	return Result{Basins: joined, OrphanStreams: orphans}, nil
}
