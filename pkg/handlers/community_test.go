package handlers

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbgateway/pkg/crowdbuilding"
)

func TestDetailPatternSweepsEveryMembersCopy(t *testing.T) {
	pattern := detailPattern(crowdbuilding.Groups, "g1")

	for _, key := range []string{
		detailKey(crowdbuilding.Groups, "g1", "m1"),
		detailKey(crowdbuilding.Groups, "g1", "m2"),
		detailKey(crowdbuilding.Groups, "g1", ""), // anonymous copy
	} {
		ok, err := path.Match(pattern, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	// other communities stay cached
	ok, err := path.Match(pattern, detailKey(crowdbuilding.Groups, "g2", "m1"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = path.Match(pattern, detailKey(crowdbuilding.Plots, "g1", "m1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
