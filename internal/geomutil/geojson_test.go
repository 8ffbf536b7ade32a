package geomutil

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}}
}

func TestWriteReadGeoJSON_RoundTrips(t *testing.T) {
	basins := []BasinGeometry{
		{LinkID: 10, Polygon: unitSquare(0, 0)},
		{LinkID: 20, Polygon: unitSquare(5, 5)},
	}

	data, err := WriteGeoJSON(basins)
	require.NoError(t, err)

	got, err := ReadGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []int64{10, 20}, []int64{got[0].LinkID, got[1].LinkID})
}

func TestReadGeoJSON_MissingLinkID_Errors(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`)

	_, err := ReadGeoJSON(data)
	assert.Error(t, err)
}

func TestWriteGeoJSON_Empty_ProducesEmptyCollection(t *testing.T) {
	data, err := WriteGeoJSON(nil)
	require.NoError(t, err)

	got, err := ReadGeoJSON(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}
