package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// Round-trip: writing then reading a stream table yields the same values.
func TestStreams_RoundTrip(t *testing.T) {
	in := []domain.StreamReach{
		{LinkID: 10, DSLink: 20, USLeft: domain.NoLink, USRight: domain.NoLink, RootID: 50, Discover: 5, Finish: 6},
		{LinkID: 20, DSLink: 30, USLeft: 10, USRight: domain.NoLink, RootID: 50, Discover: 4, Finish: 7},
	}

	data, err := WriteStreams(in)
	require.NoError(t, err)

	out, err := ReadStreams(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStreams_EmptyRoundTrip(t *testing.T) {
	data, err := WriteStreams(nil)
	require.NoError(t, err)

	out, err := ReadStreams(data)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBasins_RoundTrip(t *testing.T) {
	in := []domain.Basin{
		{LinkID: 1, RootID: 1, Discover: 1, Finish: 6, DissolveRootID: 4, ElementCount: 3},
		{LinkID: 2, RootID: 1, Discover: 2, Finish: 3, DissolveRootID: domain.DissolveRootNone, ElementCount: 0},
	}

	data, err := WriteBasins(in)
	require.NoError(t, err)

	out, err := ReadBasins(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFromRawStreamRows_DropsUselessColumns(t *testing.T) {
	rows := []map[string]int64{
		{ColLinkID: 1, ColDSLink: domain.NoLink, ColUSLeft: domain.NoLink, ColUSRight: domain.NoLink, "WSNO": 999, "DSNODEID": 888},
	}

	out, err := FromRawStreamRows(rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].LinkID)
}

func TestFromRawStreamRows_MissingColumn(t *testing.T) {
	rows := []map[string]int64{{ColLinkID: 1, ColDSLink: domain.NoLink}}
	_, err := FromRawStreamRows(rows)
	require.Error(t, err)

	var mc *MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, ColUSLeft, mc.Column)
}

func TestFromRawBasinRows_RenamesStreamIDSynonym(t *testing.T) {
	rows := []map[string]int64{{"streamID": 42}}
	out, err := FromRawBasinRows(rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(42), out[0].LinkID)
}
