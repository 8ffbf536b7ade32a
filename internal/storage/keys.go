package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// Output objects live under two key families per region:
//
//   <region>/current/basins_mnsi.arrow          — overwritten every run,
//   <region>/current/streams_no_basin.arrow        read by the delineation API
//   <region>/snapshots/<RFC3339Nano>/basins_mnsi.arrow        — one immutable
//   <region>/snapshots/<RFC3339Nano>/streams_no_basin.arrow     copy per run,
//                                                                pruned by
//                                                                internal/retention
const (
	basinsFile         = "basins_mnsi.arrow"
	streamsNoBasinFile = "streams_no_basin.arrow"
	geometryFile       = "basins_mnsi.geojson"
	snapshotTimeLayout = time.RFC3339Nano
)

func regionPrefix(region domain.RegionCode) string {
	return fmt.Sprintf("%d", int64(region))
}

// CurrentBasinsKey is the stable key the delineation API reads for a region's
// latest joined-and-dissolve-planned basin table.
func CurrentBasinsKey(region domain.RegionCode) string {
	return regionPrefix(region) + "/current/" + basinsFile
}

// CurrentStreamsNoBasinKey is the stable key for a region's latest
// streams-with-no-matching-basin table.
func CurrentStreamsNoBasinKey(region domain.RegionCode) string {
	return regionPrefix(region) + "/current/" + streamsNoBasinFile
}

// CurrentGeometryKey is the stable key for a region's latest basin
// geometry sidecar (see internal/geomutil.WriteGeoJSON).
func CurrentGeometryKey(region domain.RegionCode) string {
	return regionPrefix(region) + "/current/" + geometryFile
}

// SnapshotPrefix returns the key prefix under which every snapshot for a
// region lives, for use with Sink.List.
func SnapshotPrefix(region domain.RegionCode) string {
	return regionPrefix(region) + "/snapshots/"
}

// SnapshotBasinsKey returns the immutable snapshot key for a run that
// completed at ts.
func SnapshotBasinsKey(region domain.RegionCode, ts time.Time) string {
	return SnapshotPrefix(region) + ts.UTC().Format(snapshotTimeLayout) + "/" + basinsFile
}

// SnapshotStreamsNoBasinKey returns the immutable snapshot key, matching
// SnapshotBasinsKey, for the streams-with-no-matching-basin table.
func SnapshotStreamsNoBasinKey(region domain.RegionCode, ts time.Time) string {
	return SnapshotPrefix(region) + ts.UTC().Format(snapshotTimeLayout) + "/" + streamsNoBasinFile
}

// SnapshotGeometryKey returns the immutable snapshot key, matching
// SnapshotBasinsKey, for the basin geometry sidecar.
func SnapshotGeometryKey(region domain.RegionCode, ts time.Time) string {
	return SnapshotPrefix(region) + ts.UTC().Format(snapshotTimeLayout) + "/" + geometryFile
}

// SnapshotTimestamps extracts and sorts (descending, most recent first) the
// distinct run timestamps present among keys returned by
// Sink.List(ctx, SnapshotPrefix(region)). Keys that don't parse as a
// snapshot timestamp directory are ignored.
func SnapshotTimestamps(region domain.RegionCode, keys []string) []time.Time {
	prefix := SnapshotPrefix(region)
	seen := make(map[string]bool)
	var out []time.Time
	for _, k := range keys {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			continue
		}
		if seen[parts[0]] {
			continue
		}
		ts, err := time.Parse(snapshotTimeLayout, parts[0])
		if err != nil {
			continue
		}
		seen[parts[0]] = true
		out = append(out, ts)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].After(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
