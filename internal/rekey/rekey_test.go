package rekey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// Region code 4020024190 maps to header 77 in this crosswalk.
func TestStreams_Rekey(t *testing.T) {
	headers := HeaderTable{4020024190: 77}

	in := []domain.StreamReach{
		{LinkID: 12, DSLink: domain.NoLink, USLeft: 13, USRight: domain.NoLink},
	}

	out, err := Streams(in, 4020024190, headers)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, int64(770000012), out[0].LinkID)
	assert.Equal(t, domain.NoLink, out[0].DSLink) // sentinel preserved
	assert.Equal(t, int64(770000013), out[0].USLeft)
}

func TestStreams_UnknownRegion(t *testing.T) {
	_, err := Streams(nil, 999, HeaderTable{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRegion))
}

// Sentinel preservation across arbitrary headers.
func TestShift_SentinelPreserved(t *testing.T) {
	headers := HeaderTable{1: 5}
	in := []domain.StreamReach{{LinkID: 1, DSLink: domain.NoLink, USLeft: domain.NoLink, USRight: domain.NoLink}}
	out, err := Streams(in, 1, headers)
	require.NoError(t, err)
	assert.Equal(t, domain.NoLink, out[0].DSLink)
	assert.Equal(t, domain.NoLink, out[0].USLeft)
	assert.Equal(t, domain.NoLink, out[0].USRight)
}

// Idempotent if applied with header 0.
func TestStreams_ZeroHeaderIdempotent(t *testing.T) {
	headers := HeaderTable{1: 0}
	in := []domain.StreamReach{{LinkID: 42, DSLink: domain.NoLink, USLeft: 7, USRight: domain.NoLink}}
	out, err := Streams(in, 1, headers)
	require.NoError(t, err)
	assert.Equal(t, in[0], out[0])
}

// Rekeyed id ranges are disjoint across distinct regions.
func TestStreams_InjectivityAcrossRegions(t *testing.T) {
	headers := HeaderTable{1: 10, 2: 20}
	a, err := Streams([]domain.StreamReach{{LinkID: 5, DSLink: domain.NoLink, USLeft: domain.NoLink, USRight: domain.NoLink}}, 1, headers)
	require.NoError(t, err)
	b, err := Streams([]domain.StreamReach{{LinkID: 5, DSLink: domain.NoLink, USLeft: domain.NoLink, USRight: domain.NoLink}}, 2, headers)
	require.NoError(t, err)

	assert.NotEqual(t, a[0].LinkID, b[0].LinkID)
	// Regions occupy disjoint decamillion-sized bands.
	assert.True(t, a[0].LinkID/domain.GlobalOffset != b[0].LinkID/domain.GlobalOffset)
}

func TestBasins_Rekey(t *testing.T) {
	headers := HeaderTable{4020024190: 77}
	in := []domain.Basin{{LinkID: 12}}
	out, err := Basins(in, 4020024190, headers)
	require.NoError(t, err)
	assert.Equal(t, int64(770000012), out[0].LinkID)
}
