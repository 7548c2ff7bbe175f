package runconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() DedupRunConfig {
	config := DedupRunConfig{
		Name:        "gsm8k",
		Version:     "1.0.0",
		SourcePaths: []string{"datasets/raw/gsm8k/train.jsonl"},
	}
	config.ApplyDefaults()
	return config
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	config := validConfig()
	assert.Equal(t, ShingleModeChar, config.ShingleMode)
	assert.Equal(t, 5, config.ShingleSize)
	assert.Equal(t, 128, config.SignatureSize)
	assert.Equal(t, 32, config.Bands)
	assert.Equal(t, 4, config.Rows)
	assert.InDelta(t, 0.2, config.Threshold, 1e-9)
	assert.Positive(t, config.Workers)
	require.NoError(t, config.Validate())
}

func TestApplyDefaults_DerivesMissingBandDimension(t *testing.T) {
	t.Parallel()

	config := DedupRunConfig{SignatureSize: 64, Bands: 16}
	config.ApplyDefaults()
	assert.Equal(t, 4, config.Rows)

	tokenConfig := DedupRunConfig{ShingleMode: ShingleModeToken}
	tokenConfig.ApplyDefaults()
	assert.Equal(t, 3, tokenConfig.ShingleSize)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		mutate   func(*DedupRunConfig)
		fragment string
	}{
		{name: "missing name", mutate: func(c *DedupRunConfig) { c.Name = "" }, fragment: "name is required"},
		{name: "nested name", mutate: func(c *DedupRunConfig) { c.Name = "a/b" }, fragment: "single path segment"},
		{name: "bad version", mutate: func(c *DedupRunConfig) { c.Version = "v1" }, fragment: "not valid semver"},
		{name: "no sources", mutate: func(c *DedupRunConfig) { c.SourcePaths = nil }, fragment: "source path"},
		{name: "band mismatch", mutate: func(c *DedupRunConfig) { c.Bands = 30 }, fragment: "must equal signature_size"},
		{name: "threshold range", mutate: func(c *DedupRunConfig) { c.Threshold = 1.5 }, fragment: "threshold"},
		{name: "shingle mode", mutate: func(c *DedupRunConfig) { c.ShingleMode = "word" }, fragment: "shingle_mode"},
		{name: "negative limit", mutate: func(c *DedupRunConfig) { c.MaxRecords = -1 }, fragment: "resource limits"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			config := validConfig()
			testCase.mutate(&config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), testCase.fragment)
		})
	}
}

func TestLoad_YAMLWithTemplates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	content := strings.Join([]string{
		"name: mmlu",
		"version: 2.1.0",
		"variables:",
		"  benchmark: mmlu",
		"source_paths:",
		"  - datasets/raw/${benchmark}/train.jsonl",
		"  - datasets/raw/$benchmark/test.jsonl",
		"schema:",
		"  output_optional: true",
		"bands: 16",
		"rows: 8",
		"threshold: 0.15",
		"case_fold: true",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, []string{"datasets/raw/mmlu/train.jsonl", "datasets/raw/mmlu/test.jsonl"}, config.SourcePaths)
	assert.True(t, config.Schema.OutputOptional)
	assert.Equal(t, []string{"input", "question", "q", "prompt"}, config.Schema.InputFields)
	assert.Equal(t, 16, config.Bands)
	assert.Equal(t, 8, config.Rows)
	assert.True(t, config.Params().CaseFold)
	assert.InDelta(t, 0.15, config.Params().Threshold, 1e-9)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run config")
}

func TestExpandPath(t *testing.T) {
	t.Setenv("SECRET_SPLIT", "leaked")

	variables := map[string]string{"benchmark": "gsm8k", "split": "test"}

	expanded, err := ExpandPath("datasets/raw/${benchmark}/${split}.jsonl", variables)
	require.NoError(t, err)
	assert.Equal(t, "datasets/raw/gsm8k/test.jsonl", expanded)

	_, err = ExpandPath("datasets/raw/${SECRET_SPLIT}.jsonl", variables)
	require.Error(t, err, "process environment must not be consulted")
	assert.Contains(t, err.Error(), "SECRET_SPLIT")

	_, err = ExpandPath("datasets/$(rm -rf /)/x.jsonl", variables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command substitution")

	_, err = ExpandPath("   ", variables)
	require.Error(t, err)
}

func TestExpandPath_PlainAndTemplatedPaths(t *testing.T) {
	t.Parallel()

	variables := map[string]string{"benchmark": "gsm8k", "split": "train"}
	cases := []struct {
		name     string
		template string
		expected string
	}{
		{name: "plain relative", template: "datasets/raw/gsm8k/train.jsonl", expected: "datasets/raw/gsm8k/train.jsonl"},
		{name: "plain absolute", template: "/data/raw/ko-arc/test.jsonl", expected: "/data/raw/ko-arc/test.jsonl"},
		{name: "braced", template: "datasets/raw/${benchmark}/${split}.jsonl", expected: "datasets/raw/gsm8k/train.jsonl"},
		{name: "bare", template: "datasets/raw/$benchmark/train.jsonl", expected: "datasets/raw/gsm8k/train.jsonl"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			expanded, err := ExpandPath(testCase.template, variables)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, expanded)
		})
	}

	expanded, err := ExpandPath("datasets/raw/gsm8k/train.jsonl", nil)
	require.NoError(t, err)
	assert.Equal(t, "datasets/raw/gsm8k/train.jsonl", expanded)
}
