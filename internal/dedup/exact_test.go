package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSet_ClaimKeepsLowestIndex(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, questionLine("same"))
	hash := records[0].Hash()
	set := NewHashSet()

	assert.True(t, set.Claim(hash, 5))
	assert.False(t, set.Claim(hash, 9))
	assert.True(t, set.Claim(hash, 2))
	assert.False(t, set.Claim(hash, 2))

	owner, exists := set.Owner(hash)
	require.True(t, exists)
	assert.Equal(t, 2, owner)
	assert.Equal(t, 1, set.Len())
}

func TestDeduplicateExact_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t,
		questionLine("A"),
		questionLine("A"),
		questionLine("A "),
		questionLine("B"),
	)

	result, err := DeduplicateExact(context.Background(), records, NewHashSet(), 4)
	require.NoError(t, err)

	require.Len(t, result.Survivors, 2)
	assert.Equal(t, "A", result.Survivors[0].Input)
	assert.Equal(t, 0, result.Survivors[0].Index)
	assert.Equal(t, "B", result.Survivors[1].Input)
	assert.Equal(t, 2, result.Removed)

	require.Len(t, result.Clusters, 1)
	cluster := result.Clusters[0]
	assert.Equal(t, ClusterExact, cluster.Kind)
	assert.Equal(t, 0, cluster.Canonical)
	assert.Equal(t, []int{1, 2}, cluster.Duplicates())
}

func TestDeduplicateExact_StableAcrossWorkerCounts(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 300)
	for index := 0; index < 300; index++ {
		lines = append(lines, questionLine(randomText(uint64(index%37), 12)))
	}
	records := decodeRecords(t, lines...)

	baseline, err := DeduplicateExact(context.Background(), records, NewHashSet(), 1)
	require.NoError(t, err)
	require.Len(t, baseline.Survivors, 37)

	for _, workers := range []int{2, 3, 8, 64} {
		result, err := DeduplicateExact(context.Background(), records, NewHashSet(), workers)
		require.NoError(t, err)
		assert.Equal(t, baseline.Clusters, result.Clusters, "workers=%d", workers)
		for position := range baseline.Survivors {
			assert.Equal(t, baseline.Survivors[position].Index, result.Survivors[position].Index)
		}
	}
	for position, survivor := range baseline.Survivors {
		assert.Equal(t, position, survivor.Index, "first occurrences are the first 37 lines")
	}
}

func TestDeduplicateExact_AtMostOneSurvivorPerText(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t,
		questionLine("x  y"),
		questionLine("x y"),
		questionLine(" x y "),
		questionLine("x\ty"),
	)
	result, err := DeduplicateExact(context.Background(), records, NewHashSet(), 2)
	require.NoError(t, err)
	assert.Len(t, result.Survivors, 1)
	assert.Equal(t, 3, result.Removed)
}

func TestDeduplicateExact_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := decodeRecords(t, questionLine("a"), questionLine("b"))
	_, err := DeduplicateExact(ctx, records, NewHashSet(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
