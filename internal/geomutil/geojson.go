package geomutil

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WriteGeoJSON serializes basin geometries to a GeoJSON FeatureCollection,
// one Polygon feature per basin with its link_id in Properties. This is
// the on-disk geometry sidecar for a region's basins_mnsi output: the
// Arrow table (internal/table) carries the MNSI/dissolve columns, this
// carries the polygons, joined back together by link_id on read.
func WriteGeoJSON(basins []BasinGeometry) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, b := range basins {
		f := geojson.NewFeature(b.Polygon)
		f.Properties = geojson.Properties{"link_id": b.LinkID}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("geomutil: marshal geojson: %w", err)
	}
	return data, nil
}

// ReadGeoJSON parses a FeatureCollection produced by WriteGeoJSON back
// into basin geometries.
func ReadGeoJSON(data []byte) ([]BasinGeometry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geomutil: unmarshal geojson: %w", err)
	}

	out := make([]BasinGeometry, 0, len(fc.Features))
	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("geomutil: feature %d geometry is %T, want orb.Polygon", i, f.Geometry)
		}

		linkID, err := propertyLinkID(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("geomutil: feature %d: %w", i, err)
		}

		out = append(out, BasinGeometry{LinkID: linkID, Polygon: poly})
	}
	return out, nil
}

func propertyLinkID(props geojson.Properties) (int64, error) {
	v, ok := props["link_id"]
	if !ok {
		return 0, fmt.Errorf("missing link_id property")
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("link_id property has unexpected type %T", v)
	}
}
