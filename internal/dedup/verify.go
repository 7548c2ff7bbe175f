package dedup

import (
	"context"
	"unicode/utf8"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
)

// VerifiedPair is a candidate pair whose edit-distance ratio fell below the
// run threshold.
type VerifiedPair struct {
	Pair
	Ratio float64
}

type NearResult struct {
	Survivors []dataset.Record
	Removed   int
	Clusters  []Cluster
	Verified  []VerifiedPair
}

// VerifyPairs computes the edit-distance ratio of every candidate pair on the
// worker pool and keeps those below threshold, in candidate order. Ids index
// into records.
func VerifyPairs(ctx context.Context, records []dataset.Record, pairs []Pair, threshold float64, workers int) ([]VerifiedPair, error) {
	ratios := make([]float64, len(pairs))
	qualifies := make([]bool, len(pairs))
	err := ForEachShard(ctx, len(pairs), workers, func(ctx context.Context, shard Shard) error {
		for position := shard.Start; position < shard.End; position++ {
			if position%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			left := records[pairs[position].Left].IdentityText()
			right := records[pairs[position].Right].IdentityText()
			if lengthBoundExceeds(utf8.RuneCountInString(left), utf8.RuneCountInString(right), threshold) {
				continue
			}
			ratio := Ratio(left, right)
			ratios[position] = ratio
			qualifies[position] = ratio < threshold
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	verified := make([]VerifiedPair, 0)
	for position, pair := range pairs {
		if qualifies[position] {
			verified = append(verified, VerifiedPair{Pair: pair, Ratio: ratios[position]})
		}
	}
	return verified, nil
}

// ClusterVerified unions verified pairs single-threaded and keeps the
// lowest-indexed member of every cluster. Survivors keep input order.
//
// Clusters are the connected components of verified edges, so membership is
// transitive: two members of one cluster can be at or above the threshold
// from each other, and a member can be dropped although it is far from the
// survivor. Each member is only guaranteed one sub-threshold edge inside its
// cluster.
func ClusterVerified(records []dataset.Record, verified []VerifiedPair) NearResult {
	set := newUnionFind(len(records))
	for _, pair := range verified {
		set.union(pair.Left, pair.Right)
	}

	result := NearResult{Survivors: make([]dataset.Record, 0, len(records)), Verified: verified}
	for id, record := range records {
		if set.canonical(id) == id {
			result.Survivors = append(result.Survivors, record)
			continue
		}
		result.Removed++
	}
	for canonical, members := range set.groups() {
		indexes := make([]int, len(members))
		for position, id := range members {
			indexes[position] = records[id].Index
		}
		result.Clusters = append(result.Clusters, Cluster{Kind: ClusterNear, Canonical: records[canonical].Index, Members: indexes})
	}
	sortClusters(result.Clusters)
	return result
}
