package engine

import (
	"context"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
	"github.com/ThakiCloud/vllm-eval/internal/dedup"
	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

// loadRecords reads every line sequentially, then decodes on the worker
// pool. When several lines are malformed the one earliest in input order is
// reported, whatever the worker count.
func loadRecords(ctx context.Context, config runconfig.DedupRunConfig) ([]dataset.Record, error) {
	loader := dataset.NewLoader(config.SourcePaths, config.Schema, dataset.Normalizer{CaseFold: config.CaseFold})
	lines := make([]dataset.RawLine, 0, 1024)
	err := loader.Lines(ctx, func(line dataset.RawLine) error {
		if config.MaxRecords > 0 && len(lines) >= config.MaxRecords {
			return &dedup.ResourceExhaustionError{Resource: "records", Limit: config.MaxRecords, Observed: len(lines) + 1}
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]dataset.Record, len(lines))
	decodeErrors := make([]error, len(lines))
	err = dedup.ForEachShard(ctx, len(lines), config.Workers, func(ctx context.Context, shard dedup.Shard) error {
		for position := shard.Start; position < shard.End; position++ {
			record, decodeError := loader.Decoder.Decode(lines[position], position)
			if decodeError != nil {
				decodeErrors[position] = decodeError
				return nil
			}
			records[position] = record
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	for _, decodeError := range decodeErrors {
		if decodeError != nil {
			return nil, decodeError
		}
	}
	return records, nil
}
