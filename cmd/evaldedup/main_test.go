package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	output := &bytes.Buffer{}
	errorOutput := &bytes.Buffer{}
	code := run(context.Background(), args, output, errorOutput)
	return code, output.String(), errorOutput.String()
}

func TestRunCommandWithTemplatedConfig(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "processed")
	writeFile(t, filepath.Join(dir, "raw", "ko-arc", "train.jsonl"), "{\"q\":\"A\"}\n{\"q\":\"A \"}\n{\"q\":\"B\"}\n")
	configPath := filepath.Join(dir, "run.yaml")
	writeFile(t, configPath, strings.Join([]string{
		"name: ko-arc",
		"version: 1.0.0",
		"source_paths:",
		"  - " + filepath.Join(dir, "raw") + "/${benchmark}/${split}.jsonl",
		"variables:",
		"  benchmark: ko-arc",
		"  split: train",
		"schema:",
		"  output_optional: true",
		"",
	}, "\n"))

	code, stdout, stderr := runCLI(t, "run", "--config", configPath, "--output-dir", outputDir, "--workers", "2", "--log-level", "error")
	require.Equal(t, exitSuccess, code, stderr)
	require.Contains(t, stdout, "dedupe complete: dataset=ko-arc version=1.0.0 status=committed in=3 kept=2 exact_removed=1")

	code, stdout, _ = runCLI(t, "run", "--config", configPath, "--output-dir", outputDir, "--log-level", "error")
	require.Equal(t, exitSuccess, code)
	require.Contains(t, stdout, "status=unchanged")

	code, stdout, stderr = runCLI(t, "verify", "ko-arc", "1.0.0", "--output-dir", outputDir)
	require.Equal(t, exitSuccess, code, stderr)
	require.Contains(t, stdout, "verify passed: ko-arc@1.0.0 sha256:")

	code, stdout, _ = runCLI(t, "manifests", "ko-arc", "--output-dir", outputDir)
	require.Equal(t, exitSuccess, code)
	require.Contains(t, stdout, "VERSION")
	require.Contains(t, stdout, "1.0.0")

	code, stdout, stderr = runCLI(t, "doctor", "--output-dir", outputDir)
	require.Equal(t, exitSuccess, code, stderr)
	require.Contains(t, stdout, "[PASS] ko-arc@1.0.0 corpus")

	code, stdout, stderr = runCLI(t, "run", "--config", configPath, "--output-dir", outputDir, "--next-version", "--case-fold", "--log-level", "error")
	require.Equal(t, exitSuccess, code, stderr)
	require.Contains(t, stdout, "version=1.0.1 status=committed")
}

func TestRunCommandReportsTypedFailures(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "broken.jsonl")
	writeFile(t, source, "{\"q\":\"A\",\"a\":\"x\"}\nnot json\n")

	code, _, stderr := runCLI(t, "run", "--name", "broken", "--version", "1.0.0", "--source", source,
		"--output-dir", filepath.Join(dir, "processed"), "--log-level", "error")
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr, "evaldedup failed (encoding)")
	require.Contains(t, stderr, "broken.jsonl:2")
	_, err := os.Stat(filepath.Join(dir, "processed"))
	require.True(t, os.IsNotExist(err))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "train.jsonl")
	writeFile(t, source, "{\"question\":\"A\",\"answer\":\"x\"}\n{\"question\":\"A\",\"answer\":\"x\"}\n")

	code, stdout, stderr := runCLI(t, "validate", "--name", "ko-mmlu", "--version", "0.1.0", "--source", source)
	require.Equal(t, exitSuccess, code, stderr)
	require.Equal(t, "dataset validation passed: files=1 records=2 exact_duplicates=1\n", stdout)
}

func TestDoctorDetectsTamperedCorpus(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "processed")
	source := filepath.Join(dir, "train.jsonl")
	writeFile(t, source, "{\"q\":\"A\",\"a\":\"1\"}\n")

	code, _, stderr := runCLI(t, "run", "--name", "ko-mmlu", "--version", "1.0.0", "--source", source, "--output-dir", outputDir, "--log-level", "error")
	require.Equal(t, exitSuccess, code, stderr)
	writeFile(t, filepath.Join(outputDir, "ko-mmlu", "1.0.0", "corpus.jsonl"), "{}\n")

	code, stdout, _ := runCLI(t, "doctor", "--output-dir", outputDir)
	require.Equal(t, exitFailure, code)
	require.Contains(t, stdout, "[FAIL] ko-mmlu@1.0.0 corpus")

	code, _, stderr = runCLI(t, "verify", "ko-mmlu", "1.0.0", "--output-dir", outputDir)
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr, "checksum mismatch")
}

func TestReadCommandsLeaveMissingOutputDirAlone(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "processed")

	for _, args := range [][]string{
		{"manifests", "--output-dir", outputDir},
		{"manifests", "ko-arc", "--output-dir", outputDir},
		{"verify", "ko-arc", "1.0.0", "--output-dir", outputDir},
		{"doctor", "--output-dir", outputDir},
	} {
		code, _, stderr := runCLI(t, args...)
		require.NotEqual(t, exitSuccess, code, strings.Join(args, " "))
		require.Contains(t, stderr, "manifest registry", strings.Join(args, " "))
		_, err := os.Stat(outputDir)
		require.True(t, os.IsNotExist(err), "%s created %s", args[0], outputDir)
	}
}
