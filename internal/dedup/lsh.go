package dedup

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// BandKey addresses one LSH bucket.
type BandKey struct {
	Band int
	Hash uint64
}

// Pair is a candidate or verified pair of dense ids with Left < Right.
type Pair struct {
	Left  int
	Right int
}

// Index buckets signatures by band. Two ids are candidates iff they share at
// least one bucket.
type Index struct {
	bands   int
	rows    int
	buckets map[BandKey][]int
}

func NewIndex(bands int, rows int) *Index {
	return &Index{bands: bands, rows: rows, buckets: map[BandKey][]int{}}
}

// Add inserts id under every band key of signature. Empty signatures are
// never indexed, so records without shingles stay singletons.
func (index *Index) Add(id int, signature Signature) {
	if signature.IsEmpty() {
		return
	}
	buffer := make([]byte, 8*(index.rows+1))
	for band := 0; band < index.bands; band++ {
		key := BandKey{Band: band, Hash: bandHash(buffer, band, signature[band*index.rows:(band+1)*index.rows])}
		index.buckets[key] = append(index.buckets[key], id)
	}
}

func bandHash(buffer []byte, band int, values []uint64) uint64 {
	binary.LittleEndian.PutUint64(buffer, uint64(band))
	for position, value := range values {
		binary.LittleEndian.PutUint64(buffer[8*(position+1):], value)
	}
	return xxhash.Sum64(buffer[:8*(len(values)+1)])
}

// Merge folds other's buckets into index. Member lists stay sorted when both
// sides are sorted and every id of other is greater than every id of index,
// which holds when partial indexes are merged in shard order.
func (index *Index) Merge(other *Index) {
	for key, members := range other.buckets {
		index.buckets[key] = append(index.buckets[key], members...)
	}
}

func (index *Index) Buckets() int {
	return len(index.buckets)
}

// Members returns the ids stored under key.
func (index *Index) Members(key BandKey) []int {
	return index.buckets[key]
}

// CandidatePairs enumerates every distinct pair sharing a bucket, sorted. A
// positive limit caps the number of distinct pairs; crossing it returns a
// ResourceExhaustionError.
func (index *Index) CandidatePairs(limit int) ([]Pair, error) {
	seen := map[Pair]struct{}{}
	for _, members := range index.buckets {
		if len(members) < 2 {
			continue
		}
		for left := 0; left < len(members); left++ {
			for right := left + 1; right < len(members); right++ {
				pair := Pair{Left: members[left], Right: members[right]}
				if pair.Left > pair.Right {
					pair.Left, pair.Right = pair.Right, pair.Left
				}
				if _, exists := seen[pair]; exists {
					continue
				}
				seen[pair] = struct{}{}
				if limit > 0 && len(seen) > limit {
					return nil, &ResourceExhaustionError{Resource: "candidate pairs", Limit: limit, Observed: len(seen)}
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for pair := range seen {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(left int, right int) bool {
		if pairs[left].Left != pairs[right].Left {
			return pairs[left].Left < pairs[right].Left
		}
		return pairs[left].Right < pairs[right].Right
	})
	return pairs, nil
}

// BuildIndex bands every signature on the worker pool: each shard fills a
// partial index of its own, then the partials are merged sequentially in
// shard order. Ids are positions in signatures.
func BuildIndex(ctx context.Context, signatures []Signature, bands int, rows int, workers int) (*Index, error) {
	shards := Partition(len(signatures), workers)
	partials := make([]*Index, len(shards))
	err := ForEachShard(ctx, len(signatures), workers, func(ctx context.Context, shard Shard) error {
		partial := NewIndex(bands, rows)
		for id := shard.Start; id < shard.End; id++ {
			partial.Add(id, signatures[id])
		}
		partials[shard.Index] = partial
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	index := NewIndex(bands, rows)
	for _, partial := range partials {
		if partial != nil {
			index.Merge(partial)
		}
	}
	return index, nil
}
