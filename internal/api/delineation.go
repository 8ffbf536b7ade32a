package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/wikiwatershed/tdxmnsi/internal/delineation"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/geomutil"
)

// Delineation answers the three delineation queries. Implemented by
// internal/delineation.Service.
type Delineation interface {
	LinkIDOfPoint(ctx context.Context, pt orb.Point, region domain.RegionCode) (int64, error)
	UpstreamBasins(ctx context.Context, linkID int64, region domain.RegionCode) ([]delineation.Row, error)
	WatershedBoundary(subset []delineation.Row) (orb.MultiPolygon, error)
}

// basinResponse is the wire shape of a single basin row.
type basinResponse struct {
	LinkID         int64 `json:"link_id"`
	RootID         int64 `json:"root_id"`
	Discover       int32 `json:"discover"`
	Finish         int32 `json:"finish"`
	DissolveRootID int64 `json:"dissolve_root_id,omitempty"`
}

func toBasinResponse(r delineation.Row) basinResponse {
	resp := basinResponse{
		LinkID:   r.LinkID,
		RootID:   r.RootID,
		Discover: r.Discover,
		Finish:   r.Finish,
	}
	if r.DissolveRootID != domain.DissolveRootNone {
		resp.DissolveRootID = r.DissolveRootID
	}
	return resp
}

// HandlePoint handles GET /api/v1/point?lat=&lon=&region_code=, returning
// the link_id of the basin containing the point.
func (s *Server) HandlePoint(w http.ResponseWriter, r *http.Request) {
	if s.Delineation == nil {
		errorJSON(w, "delineation service not configured", "UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}

	lat, ok := parseFloatQuery(r, "lat")
	if !ok {
		errorJSON(w, "lat is required and must be a number", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	lon, ok := parseFloatQuery(r, "lon")
	if !ok {
		errorJSON(w, "lon is required and must be a number", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	region, _ := parseRegionQuery(r)

	linkID, err := s.Delineation.LinkIDOfPoint(r.Context(), orb.Point{lon, lat}, domain.RegionCode(region))
	if errors.Is(err, geomutil.ErrPointNotInAnyBasin) {
		errorJSON(w, "no basin contains the given point", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, "linkno_of_point failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"link_id": linkID})
}

// HandleUpstream handles GET /api/v1/upstream/{link_id}?region_code=,
// returning every basin upstream of link_id by MNSI containment.
func (s *Server) HandleUpstream(w http.ResponseWriter, r *http.Request) {
	if s.Delineation == nil {
		errorJSON(w, "delineation service not configured", "UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}

	linkID, err := strconv.ParseInt(chi.URLParam(r, "link_id"), 10, 64)
	if err != nil {
		errorJSON(w, "link_id must be an integer", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	region, _ := parseRegionQuery(r)

	subset, err := s.Delineation.UpstreamBasins(r.Context(), linkID, domain.RegionCode(region))
	if errors.Is(err, delineation.ErrLinkNotFound) {
		errorJSON(w, "link_id not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, "upstream_basins failed", err)
		return
	}

	resp := make([]basinResponse, len(subset))
	for i, row := range subset {
		resp[i] = toBasinResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"basins": resp})
}

// HandleBoundary handles GET /api/v1/boundary?link_id=&region_code=,
// returning the union polygon of link_id's upstream basins as GeoJSON.
func (s *Server) HandleBoundary(w http.ResponseWriter, r *http.Request) {
	if s.Delineation == nil {
		errorJSON(w, "delineation service not configured", "UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}

	linkID, err := strconv.ParseInt(r.URL.Query().Get("link_id"), 10, 64)
	if err != nil {
		errorJSON(w, "link_id is required and must be an integer", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	region, _ := parseRegionQuery(r)

	subset, err := s.Delineation.UpstreamBasins(r.Context(), linkID, domain.RegionCode(region))
	if errors.Is(err, delineation.ErrLinkNotFound) {
		errorJSON(w, "link_id not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, "upstream_basins failed", err)
		return
	}

	boundary, err := s.Delineation.WatershedBoundary(subset)
	if err != nil {
		internalError(w, "watershed_boundary failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"type": "MultiPolygon", "coordinates": boundary})
}
