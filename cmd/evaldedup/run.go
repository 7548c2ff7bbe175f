package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/ThakiCloud/vllm-eval/internal/dedup"
	"github.com/ThakiCloud/vllm-eval/internal/engine"
	"github.com/ThakiCloud/vllm-eval/internal/manifest"
	"github.com/ThakiCloud/vllm-eval/internal/metrics"
	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

// runFlags overlays command-line values on the YAML run file. Only flags the
// user actually set replace file values.
type runFlags struct {
	configPath        string
	name              string
	version           string
	sources           []string
	variables         map[string]string
	outputDir         string
	workers           int
	threshold         float64
	seed              uint64
	caseFold          bool
	shingleMode       string
	shingleSize       int
	maxRecords        int
	maxCandidatePairs int
	metricsFile       string
}

func (flags *runFlags) register(cmd *cobra.Command) {
	set := cmd.Flags()
	set.StringVarP(&flags.configPath, "config", "c", "", "path to YAML run file")
	set.StringVar(&flags.name, "name", "", "dataset name")
	set.StringVar(&flags.version, "version", "", "dataset semver version")
	set.StringArrayVar(&flags.sources, "source", nil, "source JSONL path or template (repeatable)")
	set.StringToStringVar(&flags.variables, "var", nil, "template variable key=value (repeatable)")
	set.StringVar(&flags.outputDir, "output-dir", "", "root directory for corpora and manifests")
	set.IntVar(&flags.workers, "workers", 0, "worker count (default GOMAXPROCS)")
	set.Float64Var(&flags.threshold, "threshold", runconfig.DefaultThreshold, "edit-distance ratio below which records are merged")
	set.Uint64Var(&flags.seed, "seed", runconfig.DefaultSeed, "MinHash seed")
	set.BoolVar(&flags.caseFold, "case-fold", false, "fold case before hashing")
	set.StringVar(&flags.shingleMode, "shingle-mode", runconfig.ShingleModeChar, "shingle unit (char|token)")
	set.IntVar(&flags.shingleSize, "shingle-size", 0, "shingle length in units")
	set.IntVar(&flags.maxRecords, "max-records", 0, "fail when more records are read (0 = unlimited)")
	set.IntVar(&flags.maxCandidatePairs, "max-candidate-pairs", 0, "fail when LSH yields more pairs (0 = unlimited)")
	set.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
}

func (flags *runFlags) resolve(cmd *cobra.Command) (runconfig.DedupRunConfig, error) {
	config := runconfig.DedupRunConfig{}
	if flags.configPath != "" {
		loaded, err := runconfig.Read(flags.configPath)
		if err != nil {
			return runconfig.DedupRunConfig{}, err
		}
		config = loaded
	}
	changed := cmd.Flags().Changed
	if changed("name") {
		config.Name = flags.name
	}
	if changed("version") {
		config.Version = flags.version
	}
	if changed("source") {
		config.SourcePaths = append([]string(nil), flags.sources...)
	}
	if changed("var") {
		if config.Variables == nil {
			config.Variables = map[string]string{}
		}
		for key, value := range flags.variables {
			config.Variables[key] = value
		}
	}
	if changed("output-dir") {
		config.OutputDir = flags.outputDir
	}
	if changed("workers") {
		config.Workers = flags.workers
	}
	if changed("threshold") {
		config.Threshold = flags.threshold
	}
	if changed("seed") {
		config.Seed = flags.seed
	}
	if changed("case-fold") {
		config.CaseFold = flags.caseFold
	}
	if changed("shingle-mode") {
		config.ShingleMode = flags.shingleMode
	}
	if changed("shingle-size") {
		config.ShingleSize = flags.shingleSize
	}
	if changed("max-records") {
		config.MaxRecords = flags.maxRecords
	}
	if changed("max-candidate-pairs") {
		config.MaxCandidatePairs = flags.maxCandidatePairs
	}
	if changed("metrics-file") {
		config.MetricsFile = flags.metricsFile
	}
	if err := config.Resolve(); err != nil {
		return runconfig.DedupRunConfig{}, err
	}
	return config, nil
}

type runReport struct {
	RunID    string                   `json:"run_id"`
	States   []engine.State           `json:"states"`
	Summary  metrics.RunSummary       `json:"summary"`
	Manifest manifest.DatasetManifest `json:"manifest"`
	Created  bool                     `json:"created"`
	Clusters []dedup.Cluster          `json:"clusters"`
}

func buildRunCmd(state *cli) *cobra.Command {
	flags := &runFlags{}
	var nextVersion bool
	var reportPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deduplicate sources and commit a new corpus version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if nextVersion {
				version, err := nextPatchVersion(cmd.Context(), config.OutputDir, config.Name)
				if err != nil {
					return err
				}
				config.Version = version
			}

			outcome, runErr := engine.New(engine.WithLogger(state.log)).Run(cmd.Context(), config)
			if reportPath != "" {
				if err := writeReport(reportPath, outcome); err != nil {
					state.log.Warn("run report not written", "path", reportPath, "err", err)
				}
			}
			if runErr != nil {
				return runErr
			}
			committed := outcome.Manifest
			status := "committed"
			if !outcome.Created {
				status = "unchanged"
			}
			fmt.Fprintf(state.output, "dedupe complete: dataset=%s version=%s status=%s in=%d kept=%d exact_removed=%d near_removed=%d clusters=%d\n",
				committed.Name, committed.Version, status, committed.OriginalSize, committed.DeduplicatedSize,
				committed.ExactDuplicates, committed.NearDuplicates, committed.ClusterCount)
			fmt.Fprintf(state.output, "corpus: %s %s\n", committed.OutputPath, committed.Checksum)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&nextVersion, "next-version", false, "use the patch bump of the latest committed version")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the run report (summary, states, clusters) as JSON")
	return cmd
}

func nextPatchVersion(ctx context.Context, outputDir string, name string) (string, error) {
	path := manifest.RegistryPath(outputDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return manifest.FirstVersion, nil
	}
	registry, err := manifest.OpenExistingRegistry(ctx, path)
	if err != nil {
		return "", err
	}
	defer registry.Close()
	return registry.NextPatchVersion(name)
}

func writeReport(path string, outcome engine.Outcome) error {
	payload, err := json.Marshal(runReport{
		RunID:    outcome.RunID,
		States:   outcome.States,
		Summary:  outcome.Summary,
		Manifest: outcome.Manifest,
		Created:  outcome.Created,
		Clusters: outcome.Clusters,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, pretty.Pretty(payload), 0o644)
}

func buildValidateCmd(state *cli) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and schema-check sources without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			report, err := engine.New(engine.WithLogger(state.log)).Validate(cmd.Context(), config)
			if err != nil {
				return err
			}
			fmt.Fprintf(state.output, "dataset validation passed: files=%d records=%d exact_duplicates=%d\n", report.Files, report.Records, report.ExactDuplicates)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
