package api_test

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/wikiwatershed/tdxmnsi/internal/delineation"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// stubDelineation is an in-memory api.Delineation for HTTP-layer tests; the
// delineation logic itself is tested in internal/delineation.
type stubDelineation struct {
	linkID      int64
	linkErr     error
	subset      []delineation.Row
	subsetErr   error
	boundary    orb.MultiPolygon
	boundaryErr error
}

func (s *stubDelineation) LinkIDOfPoint(_ context.Context, _ orb.Point, _ domain.RegionCode) (int64, error) {
	if s.linkErr != nil {
		return 0, s.linkErr
	}
	return s.linkID, nil
}

func (s *stubDelineation) UpstreamBasins(_ context.Context, _ int64, _ domain.RegionCode) ([]delineation.Row, error) {
	if s.subsetErr != nil {
		return nil, s.subsetErr
	}
	return s.subset, nil
}

func (s *stubDelineation) WatershedBoundary(_ []delineation.Row) (orb.MultiPolygon, error) {
	if s.boundaryErr != nil {
		return nil, s.boundaryErr
	}
	return s.boundary, nil
}

// errHealthChecker always fails, for readiness-probe tests.
type errHealthChecker struct{ err error }

func (h *errHealthChecker) HealthCheck(_ context.Context) error { return h.err }

// okHealthChecker always succeeds.
type okHealthChecker struct{}

func (h *okHealthChecker) HealthCheck(_ context.Context) error { return nil }

var errBoom = errors.New("boom")
