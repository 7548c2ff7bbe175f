package dedup

import (
	"context"
	"sort"
	"sync"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
)

const hashShards = 256

// HashSet records, per content hash, the lowest record index that carries it.
// It is sharded by the first hash byte so concurrent claims on different
// prefixes never contend. A HashSet belongs to one run.
type HashSet struct {
	shards [hashShards]hashShard
}

type hashShard struct {
	mu    sync.Mutex
	owner map[dataset.ContentHash]int
}

func NewHashSet() *HashSet {
	set := &HashSet{}
	for index := range set.shards {
		set.shards[index].owner = map[dataset.ContentHash]int{}
	}
	return set
}

// Claim registers index for hash and reports whether index is now the lowest
// index seen for it.
func (set *HashSet) Claim(hash dataset.ContentHash, index int) bool {
	shard := &set.shards[hash[0]]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, exists := shard.owner[hash]
	if exists && current <= index {
		return false
	}
	shard.owner[hash] = index
	return true
}

// Owner returns the lowest index claimed for hash.
func (set *HashSet) Owner(hash dataset.ContentHash) (int, bool) {
	shard := &set.shards[hash[0]]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	owner, exists := shard.owner[hash]
	return owner, exists
}

func (set *HashSet) Len() int {
	total := 0
	for index := range set.shards {
		shard := &set.shards[index]
		shard.mu.Lock()
		total += len(shard.owner)
		shard.mu.Unlock()
	}
	return total
}

type ExactResult struct {
	Survivors []dataset.Record
	Removed   int
	Clusters  []Cluster
}

// DeduplicateExact drops every record whose content hash was already carried
// by a lower-indexed record. Hashes are claimed in parallel; the survivor of
// each hash is always the first occurrence in input order.
func DeduplicateExact(ctx context.Context, records []dataset.Record, set *HashSet, workers int) (ExactResult, error) {
	err := ForEachShard(ctx, len(records), workers, func(ctx context.Context, shard Shard) error {
		for position := shard.Start; position < shard.End; position++ {
			record := &records[position]
			set.Claim(record.Hash(), record.Index)
		}
		return ctx.Err()
	})
	if err != nil {
		return ExactResult{}, err
	}

	result := ExactResult{Survivors: make([]dataset.Record, 0, len(records))}
	duplicatesByOwner := map[int][]int{}
	for _, record := range records {
		owner, _ := set.Owner(record.Hash())
		if owner == record.Index {
			result.Survivors = append(result.Survivors, record)
			continue
		}
		result.Removed++
		duplicatesByOwner[owner] = append(duplicatesByOwner[owner], record.Index)
	}

	for owner, duplicates := range duplicatesByOwner {
		members := append([]int{owner}, duplicates...)
		sort.Ints(members)
		result.Clusters = append(result.Clusters, Cluster{Kind: ClusterExact, Canonical: owner, Members: members})
	}
	sortClusters(result.Clusters)
	return result, nil
}
