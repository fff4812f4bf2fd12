package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyDropsEmptyCollections(t *testing.T) {
	collections := map[string][]int{
		"Gear":  {1, 2, 3},
		"Empty": {},
	}
	verified, err := Verify(collections, 3)
	require.NoError(t, err)
	require.NotContains(t, verified, "Empty")
	require.Len(t, verified, 1)
}

func TestVerifyDeduplicatesAcrossCollections(t *testing.T) {
	// Index 2 is claimed by both; the collection first in name order
	// keeps it.
	collections := map[string][]int{
		"Alpha": {1, 2},
		"Beta":  {2, 3},
	}
	verified, err := Verify(collections, 3)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, verified["Alpha"])
	require.Equal(t, []int{3}, verified["Beta"])
	assertPartition(t, verified, 3)
}

func TestVerifyBackfillsMissingIndices(t *testing.T) {
	collections := map[string][]int{
		"Gear": {1, 4},
	}
	verified, err := Verify(collections, 5)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 5}, verified[CatchAllName])
	assertPartition(t, verified, 5)
}

func TestVerifyDiscardsOutOfRangeIndices(t *testing.T) {
	collections := map[string][]int{
		"Gear": {0, 1, 2, 99},
	}
	verified, err := Verify(collections, 2)
	require.NoError(t, err)
	assertPartition(t, verified, 2)
	require.Equal(t, []int{1, 2}, verified["Gear"])
}

func TestVerifyMergesBackfillIntoExistingCatchAll(t *testing.T) {
	collections := map[string][]int{
		"Gear":       {1, 2},
		CatchAllName: {4},
	}
	verified, err := Verify(collections, 4)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, verified[CatchAllName])
	assertPartition(t, verified, 4)
}

func TestVerifyEmptyInput(t *testing.T) {
	verified, err := Verify(map[string][]int{}, 0)
	require.NoError(t, err)
	require.Empty(t, verified)
}
