package dedup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Shard is a contiguous half-open index range [Start, End).
type Shard struct {
	Index int
	Start int
	End   int
}

// Partition splits total items into at most workers contiguous shards of
// near-equal size.
func Partition(total int, workers int) []Shard {
	if total <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > total {
		workers = total
	}
	shards := make([]Shard, 0, workers)
	size := total / workers
	remainder := total % workers
	start := 0
	for index := 0; index < workers; index++ {
		end := start + size
		if index < remainder {
			end++
		}
		shards = append(shards, Shard{Index: index, Start: start, End: end})
		start = end
	}
	return shards
}

// ForEachShard runs work over every shard on a pool bounded by workers. The
// first error cancels the shared context.
func ForEachShard(ctx context.Context, total int, workers int, work func(ctx context.Context, shard Shard) error) error {
	shards := Partition(total, workers)
	if len(shards) == 0 {
		return ctx.Err()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(shards))
	for _, shard := range shards {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return work(groupCtx, shard)
		})
	}
	return group.Wait()
}
