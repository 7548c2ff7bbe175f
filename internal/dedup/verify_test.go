package dedup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
)

func nearStage(t *testing.T, records []dataset.Record, workers int) NearResult {
	t.Helper()
	config := testConfig()
	ctx := context.Background()

	exact, err := DeduplicateExact(ctx, records, NewHashSet(), workers)
	require.NoError(t, err)
	signatures, err := SignRecords(ctx, NewMinHasher(config), exact.Survivors, workers)
	require.NoError(t, err)
	index, err := BuildIndex(ctx, signatures, config.Bands, config.Rows, workers)
	require.NoError(t, err)
	pairs, err := index.CandidatePairs(0)
	require.NoError(t, err)
	verified, err := VerifyPairs(ctx, exact.Survivors, pairs, config.Threshold, workers)
	require.NoError(t, err)
	return ClusterVerified(exact.Survivors, verified)
}

func TestNearDuplicates_MergesBelowThresholdOnly(t *testing.T) {
	t.Parallel()

	base := randomText(31, 100)
	paraphrase := base[:85] + strings.Repeat("X", 15)
	distant := strings.Repeat("7", 35) + base[35:]
	require.InDelta(t, 0.15, Ratio(base, paraphrase), 1e-9)
	require.InDelta(t, 0.35, Ratio(base, distant), 1e-9)

	records := decodeRecords(t,
		questionLine(base),
		questionLine(randomText(32, 100)),
		questionLine(paraphrase),
		questionLine(distant),
	)

	result := nearStage(t, records, 4)
	require.Len(t, result.Clusters, 1)
	cluster := result.Clusters[0]
	assert.Equal(t, ClusterNear, cluster.Kind)
	assert.Equal(t, []int{0, 2}, cluster.Members)
	assert.Equal(t, 0, cluster.Canonical)

	assert.Equal(t, 1, result.Removed)
	survivors := make([]int, 0, len(result.Survivors))
	for _, record := range result.Survivors {
		survivors = append(survivors, record.Index)
	}
	assert.Equal(t, []int{0, 1, 3}, survivors)
}

func TestNearDuplicates_CanonicalStableAcrossWorkers(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 80)
	for index := 0; index < 80; index++ {
		family := uint64(index % 8)
		base := randomText(700+family, 150)
		edit := randomText(uint64(800+index), 6)
		position := (index * 13) % 140
		lines = append(lines, questionLine(base[:position]+edit+base[position+6:]))
	}
	records := decodeRecords(t, lines...)

	baseline := nearStage(t, records, 1)
	require.NotEmpty(t, baseline.Clusters)
	for _, cluster := range baseline.Clusters {
		assert.Equal(t, cluster.Members[0], cluster.Canonical)
	}
	for _, workers := range []int{2, 5, 16} {
		result := nearStage(t, records, workers)
		assert.Equal(t, baseline.Clusters, result.Clusters, "workers=%d", workers)
		assert.Equal(t, len(baseline.Survivors), len(result.Survivors))
	}
}

func TestNearDuplicates_ClustersAreBackedByVerifiedEdges(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 60)
	for index := 0; index < 60; index++ {
		base := randomText(uint64(300+index%5), 120)
		position := (index * 7) % 110
		lines = append(lines, questionLine(base[:position]+randomText(uint64(400+index), 10)+base[position+10:]))
	}
	records := decodeRecords(t, lines...)
	config := testConfig()

	result := nearStage(t, records, 4)
	text := map[int]string{}
	for _, record := range records {
		text[record.Index] = record.IdentityText()
	}
	for _, pair := range result.Verified {
		assert.Less(t, pair.Ratio, config.Threshold)
	}
	for _, cluster := range result.Clusters {
		for _, member := range cluster.Members {
			closest := 1.0
			for _, other := range cluster.Members {
				if other != member {
					closest = min(closest, Ratio(text[member], text[other]))
				}
			}
			assert.Less(t, closest, config.Threshold, "member %d of cluster %d", member, cluster.Canonical)
		}
	}
}

func TestVerifyPairs_SkipsByLengthBound(t *testing.T) {
	t.Parallel()

	records := decodeRecords(t, questionLine("short"), questionLine("a much longer question text"))
	verified, err := VerifyPairs(context.Background(), records, []Pair{{Left: 0, Right: 1}}, 0.2, 2)
	require.NoError(t, err)
	assert.Empty(t, verified)
}

func TestClusterVerified_ChainsThroughIntermediateMember(t *testing.T) {
	t.Parallel()

	base := randomText(71, 100)
	middle := base[:85] + strings.Repeat("X", 15)
	far := strings.Repeat("7", 15) + middle[15:]
	records := decodeRecords(t, questionLine(base), questionLine(middle), questionLine(far))
	config := testConfig()

	verified, err := VerifyPairs(context.Background(), records, []Pair{{Left: 0, Right: 1}, {Left: 0, Right: 2}, {Left: 1, Right: 2}}, config.Threshold, 2)
	require.NoError(t, err)
	require.Len(t, verified, 2)
	require.GreaterOrEqual(t, Ratio(base, far), config.Threshold)

	result := ClusterVerified(records, verified)
	require.Len(t, result.Clusters, 1)
	assert.Equal(t, []int{0, 1, 2}, result.Clusters[0].Members)
	assert.Equal(t, 2, result.Removed)
	require.Len(t, result.Survivors, 1)
	assert.Equal(t, 0, result.Survivors[0].Index)
}
