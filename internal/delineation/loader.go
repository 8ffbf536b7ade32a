package delineation

import (
	"context"
	"fmt"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/geomutil"
	"github.com/wikiwatershed/tdxmnsi/internal/storage"
	"github.com/wikiwatershed/tdxmnsi/internal/table"
)

// Sink is the subset of storage.Sink StorageLoader needs to read a region's
// current output.
type Sink interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// StorageLoader implements TableLoader over a storage.Sink, recombining the
// Arrow basins_mnsi table with its GeoJSON geometry sidecar by link_id.
type StorageLoader struct {
	sink Sink
}

// NewStorageLoader creates a StorageLoader reading a region's current
// output (see internal/storage's current/ key family) from sink.
func NewStorageLoader(sink Sink) *StorageLoader {
	return &StorageLoader{sink: sink}
}

func (l *StorageLoader) LoadRegionTable(ctx context.Context, region domain.RegionCode) (*RegionTable, error) {
	basinsData, err := l.sink.Get(ctx, storage.CurrentBasinsKey(region))
	if err != nil {
		return nil, fmt.Errorf("delineation: loading region %d basins: %w", region, err)
	}
	basins, err := table.ReadBasins(basinsData)
	if err != nil {
		return nil, fmt.Errorf("delineation: decoding region %d basins: %w", region, err)
	}

	geomData, err := l.sink.Get(ctx, storage.CurrentGeometryKey(region))
	if err != nil {
		return nil, fmt.Errorf("delineation: loading region %d geometry: %w", region, err)
	}
	geoms, err := geomutil.ReadGeoJSON(geomData)
	if err != nil {
		return nil, fmt.Errorf("delineation: decoding region %d geometry: %w", region, err)
	}

	polyByLinkID := make(map[int64]geomutil.BasinGeometry, len(geoms))
	for _, g := range geoms {
		polyByLinkID[g.LinkID] = g
	}

	rows := make([]Row, 0, len(basins))
	for _, b := range basins {
		g, ok := polyByLinkID[b.LinkID]
		if !ok {
			return nil, fmt.Errorf("delineation: region %d link_id %d has no matching geometry", region, b.LinkID)
		}
		rows = append(rows, Row{Basin: b, Polygon: g.Polygon})
	}

	return &RegionTable{Region: region, Rows: rows}, nil
}
