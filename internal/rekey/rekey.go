// Package rekey rewrites per-region reach ids into a single global
// namespace, so ids from different TDX Hydro regions never collide.
//
// Grounded on the original implementation's linear-shift scheme
// (_examples/original_source/src/global_hydrography/preprocess.py,
// TDXPreprocessor.tdx_to_global_linkno): LINKNO_NEW = LINKNO_OLD +
// header*10_000_000, with -1 preserved as the "no link" sentinel.
package rekey

import (
	"fmt"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// ErrUnknownRegion is returned when the caller-supplied header table has no
// entry for the requested region code.
var ErrUnknownRegion = fmt.Errorf("rekey: unknown region")

// HeaderTable maps a 10-digit TDX Hydro region code to its crosswalk header
// value. Produced by internal/crosswalk and trusted by this package to keep
// ids from distinct regions landing in disjoint id ranges.
type HeaderTable map[domain.RegionCode]int64

// Header looks up the header for a region, wrapping ErrUnknownRegion with
// the offending region code so callers can report it.
func (t HeaderTable) Header(region domain.RegionCode) (int64, error) {
	h, ok := t[region]
	if !ok {
		return 0, fmt.Errorf("%w: region %d", ErrUnknownRegion, region)
	}
	return h, nil
}

// shift rewrites a single id field: sentinels pass through unchanged,
// everything else is offset by header*GlobalOffset.
func shift(id, header int64) int64 {
	if id == domain.NoLink {
		return id
	}
	return id + header*domain.GlobalOffset
}

// Streams rewrites LinkID, DSLink, USLeft, and USRight on every reach to
// the global namespace for the given region. Applying this twice with a
// non-zero header is undefined — callers must guarantee single application.
func Streams(reaches []domain.StreamReach, region domain.RegionCode, headers HeaderTable) ([]domain.StreamReach, error) {
	header, err := headers.Header(region)
	if err != nil {
		return nil, err
	}

	out := make([]domain.StreamReach, len(reaches))
	for i, r := range reaches {
		out[i] = domain.StreamReach{
			LinkID:  shift(r.LinkID, header),
			DSLink:  shift(r.DSLink, header),
			USLeft:  shift(r.USLeft, header),
			USRight: shift(r.USRight, header),
		}
	}
	return out, nil
}

// Basins rewrites LinkID (the basins layer's "streamID" synonym field,
// already renamed to LinkID on ingest) to the global namespace.
func Basins(basins []domain.Basin, region domain.RegionCode, headers HeaderTable) ([]domain.Basin, error) {
	header, err := headers.Header(region)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Basin, len(basins))
	for i, b := range basins {
		out[i] = b
		out[i].LinkID = shift(b.LinkID, header)
	}
	return out, nil
}
