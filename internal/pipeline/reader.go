package pipeline

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SourceReader reads a region's raw stream-network and basin input files
// into the row-oriented shape internal/table's ingest functions expect.
// The concrete vector-file format (shapefile, GeoPackage, GeoJSON, ...) is
// deliberately kept behind this interface: TDX Hydro ships several of
// these, and this system only needs the columns, not the format.
type SourceReader interface {
	ReadStreamRows(path string) ([]map[string]int64, error)
	// ReadBasinRows returns basin attribute rows and their polygon
	// geometry in the same order; len(rows) == len(polygons).
	ReadBasinRows(path string) ([]map[string]int64, []orb.Polygon, error)
}

// GeoJSONReader implements SourceReader over GeoJSON FeatureCollection
// files, the format the region job ledger's fixture regions and local
// development deployments use. Properties are read as int64 via their
// JSON number value; a fractional property value is an error.
type GeoJSONReader struct{}

// ReadStreamRows reads a GeoJSON FeatureCollection of stream reaches,
// converting every feature's properties to an int64 row.
func (GeoJSONReader) ReadStreamRows(path string) ([]map[string]int64, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]int64, 0, len(fc.Features))
	for i, f := range fc.Features {
		row, err := propertiesToInt64(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s feature %d: %w", path, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadBasinRows reads a GeoJSON FeatureCollection of basin polygons,
// returning each feature's properties and its geometry. A feature whose
// geometry is not a Polygon is an error.
func (GeoJSONReader) ReadBasinRows(path string) ([]map[string]int64, []orb.Polygon, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]map[string]int64, 0, len(fc.Features))
	polys := make([]orb.Polygon, 0, len(fc.Features))
	for i, f := range fc.Features {
		row, err := propertiesToInt64(f.Properties)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: %s feature %d: %w", path, i, err)
		}
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, nil, fmt.Errorf("pipeline: %s feature %d: geometry is %T, want orb.Polygon", path, i, f.Geometry)
		}
		rows = append(rows, row)
		polys = append(polys, poly)
	}
	return rows, polys, nil
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parsing %s: %w", path, err)
	}
	return fc, nil
}

func propertiesToInt64(props geojson.Properties) (map[string]int64, error) {
	row := make(map[string]int64, len(props))
	for k, v := range props {
		switch n := v.(type) {
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("property %q has a non-integer value %v", k, n)
			}
			row[k] = int64(n)
		case int64:
			row[k] = n
		case int:
			row[k] = int64(n)
		default:
			// Non-numeric properties (e.g. string ids) are not part of
			// the wire contract's integer columns; skip rather than fail.
			continue
		}
	}
	return row, nil
}
