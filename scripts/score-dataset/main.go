package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
)

func main() {
	caseFold := flag.Bool("case-fold", false, "fold case before hashing")
	outputOptional := flag.Bool("output-optional", false, "accept records without an output field")
	top := flag.Int("top", 5, "number of most repeated inputs to print")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: score-dataset [flags] <file.jsonl>...")
		os.Exit(1)
	}
	schema := dataset.DefaultSchema()
	schema.OutputOptional = *outputOptional
	loader := dataset.NewLoader(paths, schema, dataset.Normalizer{CaseFold: *caseFold})

	score, scoreError := scoreDataset(context.Background(), loader)
	if scoreError != nil {
		fmt.Fprintln(os.Stderr, scoreError)
		os.Exit(1)
	}
	score.print(os.Stdout, *top)
}

type datasetScore struct {
	paths            []string
	total            int
	emptyOutput      int
	withContext      int
	duplicateRecords int
	duplicateInputs  int
	inputCounts      map[string]int
	inputRunesTotal  int
	outputRunesTotal int
}

func scoreDataset(ctx context.Context, loader *dataset.Loader) (datasetScore, error) {
	score := datasetScore{paths: loader.Paths, inputCounts: map[string]int{}}
	hashCounts := map[dataset.ContentHash]int{}
	err := loader.Each(ctx, func(record dataset.Record) error {
		score.total++
		hashCounts[record.Hash()]++
		score.inputCounts[record.Input]++
		score.inputRunesTotal += len([]rune(record.Input))
		score.outputRunesTotal += len([]rune(record.Output))
		if record.Output == "" {
			score.emptyOutput++
		}
		if record.Context != "" {
			score.withContext++
		}
		return nil
	})
	if err != nil {
		return datasetScore{}, fmt.Errorf("score dataset: %w", err)
	}
	for _, count := range hashCounts {
		if count > 1 {
			score.duplicateRecords += count - 1
		}
	}
	for _, count := range score.inputCounts {
		if count > 1 {
			score.duplicateInputs += count - 1
		}
	}
	return score, nil
}

func (score datasetScore) print(output io.Writer, top int) {
	fmt.Fprintf(output, "dataset: %s\n", strings.Join(score.paths, ","))
	fmt.Fprintf(output, "records_total=%d empty_output=%d with_context=%d\n", score.total, score.emptyOutput, score.withContext)
	if score.total == 0 {
		return
	}
	fmt.Fprintf(output, "duplicate_records=%d (%.2f%%)\n", score.duplicateRecords, float64(score.duplicateRecords)*100/float64(score.total))
	fmt.Fprintf(output, "duplicate_inputs=%d (%.2f%%)\n", score.duplicateInputs, float64(score.duplicateInputs)*100/float64(score.total))
	fmt.Fprintf(output, "avg_input_runes=%.1f avg_output_runes=%.1f\n",
		float64(score.inputRunesTotal)/float64(score.total), float64(score.outputRunesTotal)/float64(score.total))

	fmt.Fprintln(output, "most_repeated_inputs:")
	for _, entry := range topRepeated(score.inputCounts, top) {
		fmt.Fprintf(output, "  %d: %s\n", entry.count, truncate(entry.input, 80))
	}
}

type inputCount struct {
	input string
	count int
}

func topRepeated(counts map[string]int, limit int) []inputCount {
	entries := make([]inputCount, 0, len(counts))
	for input, count := range counts {
		if count > 1 {
			entries = append(entries, inputCount{input: input, count: count})
		}
	}
	sort.Slice(entries, func(left int, right int) bool {
		if entries[left].count != entries[right].count {
			return entries[left].count > entries[right].count
		}
		return entries[left].input < entries[right].input
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
