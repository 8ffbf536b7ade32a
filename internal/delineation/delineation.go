// Package delineation implements the three delineation queries over a
// region's MNSI-annotated, geometry-bearing basins table: locating the
// basin under a point, collecting its upstream subset by MNSI containment,
// and unioning that subset into a watershed boundary polygon.
package delineation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/wikiwatershed/tdxmnsi/internal/cache"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/geomutil"
)

// ErrLinkNotFound is returned when a link_id is not present in any loaded region.
var ErrLinkNotFound = errors.New("delineation: link_id not found in any loaded region")

// ErrRegionNotLoaded is an error a region table loader can return for a
// region_code that has no basins table. The point and link lookups skip such
// a region rather than return this error.
var ErrRegionNotLoaded = errors.New("delineation: region not loaded")

// Row is one basin: its MNSI-annotated record plus the geometry bound to it
// by internal/geomutil. The basin joiner and geomutil keep these as
// separate concerns; delineation is where they are recombined for querying.
type Row struct {
	domain.Basin
	Polygon orb.Polygon
}

// RegionTable is a single region's queryable basins: MNSI fields plus
// geometry, in the table order ties are broken by.
type RegionTable struct {
	Region domain.RegionCode
	Rows   []Row
}

// TableLoader fetches the current basins_mnsi table for a region. Implemented
// by a thin adapter over internal/storage + internal/table so this package
// never depends on the storage backend directly.
type TableLoader interface {
	LoadRegionTable(ctx context.Context, region domain.RegionCode) (*RegionTable, error)
}

// Service answers delineation queries over one or more regions' basins
// tables, loading and caching them on demand via a TableLoader.
type Service struct {
	loader TableLoader
	cache  *cache.Cache[domain.RegionCode, *RegionTable]

	mu          sync.RWMutex
	knownRegion []domain.RegionCode // regions ever successfully loaded, for LinkIDOfPoint's all-region fallback
}

// NewService creates a Service backed by loader, caching loaded region
// tables for cache.DefaultTTL so repeated queries against a freshly batch-run
// region don't re-read the sink on every request.
func NewService(loader TableLoader) *Service {
	return &Service{
		loader: loader,
		cache:  cache.New[domain.RegionCode, *RegionTable](cache.Options{}),
	}
}

func (s *Service) table(ctx context.Context, region domain.RegionCode) (*RegionTable, error) {
	if t, ok := s.cache.Get(region); ok {
		return t, nil
	}
	t, err := s.loader.LoadRegionTable(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("load region %d: %w", region, err)
	}
	s.cache.Set(region, t)

	s.mu.Lock()
	s.knownRegion = append(s.knownRegion, region)
	s.mu.Unlock()
	return t, nil
}

func (s *Service) loadedRegions() []domain.RegionCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RegionCode, len(s.knownRegion))
	copy(out, s.knownRegion)
	return out
}

// LinkIDOfPoint returns the link_id of the basin containing pt. If region is
// nonzero, only that region's table is searched; otherwise every
// already-loaded region is searched in load order, first match wins.
func (s *Service) LinkIDOfPoint(ctx context.Context, pt orb.Point, region domain.RegionCode) (int64, error) {
	regions := []domain.RegionCode{region}
	if region == 0 {
		regions = s.loadedRegions()
	}

	for _, r := range regions {
		t, err := s.table(ctx, r)
		if err != nil {
			continue
		}
		geoms := make([]geomutil.BasinGeometry, len(t.Rows))
		for i, row := range t.Rows {
			geoms[i] = geomutil.BasinGeometry{LinkID: row.LinkID, Polygon: row.Polygon}
		}
		id, err := geomutil.LinkIDOfPoint(geoms, pt)
		if errors.Is(err, geomutil.ErrPointNotInAnyBasin) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return id, nil
	}
	return 0, geomutil.ErrPointNotInAnyBasin
}

// findRow locates a basin row and the region table it belongs to, searching
// region first when given, otherwise every loaded region.
func (s *Service) findRow(ctx context.Context, linkID int64, region domain.RegionCode) (*RegionTable, *Row, error) {
	regions := []domain.RegionCode{region}
	if region == 0 {
		regions = s.loadedRegions()
	}

	for _, r := range regions {
		t, err := s.table(ctx, r)
		if err != nil {
			continue
		}
		for i := range t.Rows {
			if t.Rows[i].LinkID == linkID {
				return t, &t.Rows[i], nil
			}
		}
	}
	return nil, nil, ErrLinkNotFound
}

// UpstreamBasins returns every basin upstream of link_id (inclusive) by MNSI
// containment: same root, discover >= root row's discover, finish <= root
// row's finish.
func (s *Service) UpstreamBasins(ctx context.Context, linkID int64, region domain.RegionCode) ([]Row, error) {
	t, root, err := s.findRow(ctx, linkID, region)
	if err != nil {
		return nil, err
	}

	var subset []Row
	for _, row := range t.Rows {
		if row.RootID == root.RootID && row.Discover >= root.Discover && row.Finish <= root.Finish {
			subset = append(subset, row)
		}
	}
	return subset, nil
}

// WatershedBoundary unions the geometries of subset into a single watershed
// polygon. subset is assumed non-overlapping (the basins layer's
// construction), allowing the faster coverage-union algorithm.
func (s *Service) WatershedBoundary(subset []Row) (orb.MultiPolygon, error) {
	polys := make([]orb.Polygon, len(subset))
	for i, row := range subset {
		polys[i] = row.Polygon
	}
	return geomutil.CoverageUnion(polys)
}

// ErrRegionArg names an invalid or missing region_code. Nothing in this
// package returns it, and the HTTP handlers do not match on it.
var ErrRegionArg = errors.New("delineation: region_code required")
