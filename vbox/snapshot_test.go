package vbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshotListing(t *testing.T) {
	output := "   Name: base (UUID: 11111111-1111-1111-1111-111111111111)\n" +
		"      Name: boinc_120 (UUID: 22222222-2222-2222-2222-222222222222) *\n"

	candidates := parseSnapshotListing(output)
	require.Len(t, candidates, 2)

	assert.Equal(t, "11111111-1111-1111-1111-111111111111", candidates[0].ID)
	assert.False(t, candidates[0].Active)

	assert.Equal(t, "22222222-2222-2222-2222-222222222222", candidates[1].ID)
	assert.True(t, candidates[1].Active)
}

func TestParseSnapshotListingNoSnapshots(t *testing.T) {
	assert.Empty(t, parseSnapshotListing("This machine does not have any snapshots"))
}
