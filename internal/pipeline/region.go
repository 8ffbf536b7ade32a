package pipeline

import (
	"fmt"

	"github.com/wikiwatershed/tdxmnsi/internal/config"
	"github.com/wikiwatershed/tdxmnsi/internal/dissolve"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/geomutil"
	"github.com/wikiwatershed/tdxmnsi/internal/join"
	"github.com/wikiwatershed/tdxmnsi/internal/mnsi"
	"github.com/wikiwatershed/tdxmnsi/internal/rekey"
	"github.com/wikiwatershed/tdxmnsi/internal/table"
)

// RegionResult holds one region's fully processed output: the joined,
// dissolve-planned basin table, its geometry sidecar, and the stream
// reaches that had no matching basin.
type RegionResult struct {
	Basins           []domain.Basin
	BasinGeometry    []geomutil.BasinGeometry
	OrphanStreams    []domain.StreamReach
	StreamReachCount int
	BasinCount       int
}

// RunRegion executes the full per-region pipeline — rekey, MNSI, join,
// dissolve — on one region's input files. No partial output is returned on
// error: a failure here is fatal for this region only (see spec.md §7);
// the caller (Batch.Run) is responsible for continuing past it.
func RunRegion(files RegionFiles, region domain.RegionCode, headers rekey.HeaderTable, dcfg config.DissolveConfig, reader SourceReader) (*RegionResult, error) {
	streamRows, err := reader.ReadStreamRows(files.StreamnetPath)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}
	basinRows, polys, err := reader.ReadBasinRows(files.BasinsPath)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}

	streams, err := table.FromRawStreamRows(streamRows)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}
	basins, err := table.FromRawBasinRows(basinRows)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}
	if len(basins) != len(polys) {
		return nil, fmt.Errorf("region %d: %d basin rows but %d geometries", region, len(basins), len(polys))
	}

	streams, err = rekey.Streams(streams, region, headers)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}
	basins, err = rekey.Basins(basins, region, headers)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}

	// Geometry is keyed by link_id after rekeying, not by input row order,
	// so pair it up post-rekey.
	geoms := make([]geomutil.BasinGeometry, len(basins))
	for i, b := range basins {
		geoms[i] = geomutil.BasinGeometry{LinkID: b.LinkID, Polygon: polys[i]}
	}

	streams, err = mnsi.Compute(streams)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}

	joined, err := join.Streams(streams, basins)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}

	planned, err := dissolve.Plan(joined.Basins, dcfg.MaxElements, dcfg.MinElements)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", region, err)
	}

	// Drop the geometry of any basin that had no matching stream reach — it
	// never entered joined.Basins, so it has no place in the sidecar.
	joinedIDs := make(map[int64]bool, len(planned))
	for _, b := range planned {
		joinedIDs[b.LinkID] = true
	}
	keptGeoms := geoms[:0]
	for _, g := range geoms {
		if joinedIDs[g.LinkID] {
			keptGeoms = append(keptGeoms, g)
		}
	}

	return &RegionResult{
		Basins:           planned,
		BasinGeometry:    keptGeoms,
		OrphanStreams:    joined.OrphanStreams,
		StreamReachCount: len(streams),
		BasinCount:       len(planned),
	}, nil
}
