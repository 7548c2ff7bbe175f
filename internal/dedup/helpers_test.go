package dedup

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

func testConfig() runconfig.DedupRunConfig {
	config := runconfig.DedupRunConfig{
		Name:        "unit",
		Version:     "1.0.0",
		SourcePaths: []string{"unused.jsonl"},
	}
	config.ApplyDefaults()
	return config
}

// randomText returns length lowercase letters drawn from seed.
func randomText(seed uint64, length int) string {
	random := rand.New(rand.NewPCG(seed, seed+1))
	builder := strings.Builder{}
	for index := 0; index < length; index++ {
		builder.WriteByte(byte('a' + random.IntN(26)))
	}
	return builder.String()
}

func decodeRecords(t *testing.T, lines ...string) []dataset.Record {
	t.Helper()
	schema := dataset.DefaultSchema()
	schema.OutputOptional = true
	decoder := dataset.Decoder{Schema: schema}
	records := make([]dataset.Record, 0, len(lines))
	for index, line := range lines {
		record, err := decoder.Decode(dataset.RawLine{Path: "memory.jsonl", Line: index + 1, Bytes: []byte(line)}, index)
		require.NoError(t, err)
		records = append(records, record)
	}
	return records
}

func questionLine(text string) string {
	return fmt.Sprintf(`{"q":%q}`, text)
}
