package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
	"github.com/ThakiCloud/vllm-eval/internal/dedup"
	"github.com/ThakiCloud/vllm-eval/internal/logger"
	"github.com/ThakiCloud/vllm-eval/internal/manifest"
	"github.com/ThakiCloud/vllm-eval/internal/metrics"
	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

// Engine drives dedup runs through the state machine
// loading -> exact_dedup -> signing -> indexing -> verifying -> writing -> done.
type Engine struct {
	logger   logger.Logger
	recorder *metrics.Recorder
	now      func() time.Time
	newRunID func() string
}

type Option func(*Engine)

func WithLogger(log logger.Logger) Option {
	return func(engine *Engine) {
		if log != nil {
			engine.logger = log
		}
	}
}

func WithRecorder(recorder *metrics.Recorder) Option {
	return func(engine *Engine) {
		if recorder != nil {
			engine.recorder = recorder
		}
	}
}

func New(options ...Option) *Engine {
	engine := &Engine{
		logger:   logger.Discard(),
		recorder: metrics.NewRecorder(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

func (engine *Engine) Recorder() *metrics.Recorder {
	return engine.recorder
}

// Outcome is the result of one run. On failure Manifest is zero and States
// ends in StateFailed.
type Outcome struct {
	RunID    string
	Manifest manifest.DatasetManifest
	Created  bool
	Summary  metrics.RunSummary
	Clusters []dedup.Cluster
	States   []State
}

func (outcome Outcome) State() State {
	if len(outcome.States) == 0 {
		return ""
	}
	return outcome.States[len(outcome.States)-1]
}

type run struct {
	engine  *Engine
	config  runconfig.DedupRunConfig
	log     logger.Logger
	outcome *Outcome
	stage   State
	entered time.Time
}

func (current *run) enter(state State) {
	now := current.engine.now()
	if current.stage != "" && !current.stage.Terminal() {
		elapsed := now.Sub(current.entered)
		current.engine.recorder.ObserveStage(string(current.stage), elapsed)
		current.log.Debug("stage finished", "stage", current.stage, "elapsed", elapsed)
	}
	current.stage = state
	current.entered = now
	current.outcome.States = append(current.outcome.States, state)
	current.log.Info("stage", "state", state)
}

// Run executes one dedup run. Only the writing stage touches disk, and only
// through the manifest writer, so any failure or cancellation before the
// registry commit leaves no corpus and no manifest behind.
func (engine *Engine) Run(ctx context.Context, config runconfig.DedupRunConfig) (Outcome, error) {
	config.ApplyDefaults()
	outcome := Outcome{RunID: engine.newRunID()}
	started := engine.now()
	current := &run{
		engine:  engine,
		config:  config,
		log:     engine.logger.With("run_id", outcome.RunID, "dataset", config.Name, "version", config.Version),
		outcome: &outcome,
	}
	outcome.Summary = metrics.RunSummary{RunID: outcome.RunID, Dataset: config.Name, Version: config.Version}

	err := config.Validate()
	if err == nil {
		err = current.execute(ctx)
	}
	outcome.Summary.Elapsed = engine.now().Sub(started)
	if err != nil {
		current.enter(StateFailed)
		outcome.Summary.Status = metrics.StatusFailed
		outcome.Summary.ErrorType = ErrorType(err)
		if outcome.Summary.ErrorType == "canceled" {
			outcome.Summary.Status = metrics.StatusCanceled
		}
		outcome.Manifest = manifest.DatasetManifest{}
		outcome.Created = false
		current.log.Error("dedup run failed", "error_type", outcome.Summary.ErrorType, "err", err)
	} else {
		outcome.Summary.Status = metrics.StatusCompleted
		current.log.Info("dedup run complete",
			"records", outcome.Summary.OriginalSize,
			"kept", outcome.Summary.DeduplicatedSize,
			"exact", outcome.Summary.ExactDuplicates,
			"near", outcome.Summary.NearDuplicates,
			"checksum", outcome.Manifest.Checksum,
		)
	}
	engine.recorder.RecordRun(outcome.Summary)
	if config.MetricsFile != "" {
		if writeErr := engine.recorder.WriteTextfile(config.MetricsFile); writeErr != nil {
			current.log.Warn("metrics textfile not written", "path", config.MetricsFile, "err", writeErr)
		}
	}
	return outcome, err
}

func (current *run) execute(ctx context.Context) error {
	config := current.config
	summary := &current.outcome.Summary

	current.enter(StateLoading)
	records, err := loadRecords(ctx, config)
	if err != nil {
		return err
	}
	summary.OriginalSize = len(records)
	current.log.Info("records loaded", "records", len(records), "files", len(config.SourcePaths))

	current.enter(StateExactDedup)
	hashes := dedup.NewHashSet()
	exact, err := dedup.DeduplicateExact(ctx, records, hashes, config.Workers)
	if err != nil {
		return err
	}
	summary.ExactDuplicates = exact.Removed
	current.log.Debug("exact dedup finished", "unique_hashes", hashes.Len(), "removed", exact.Removed)
	survivors := exact.Survivors

	current.enter(StateSigning)
	signatures, err := dedup.SignRecords(ctx, dedup.NewMinHasher(config), survivors, config.Workers)
	if err != nil {
		return err
	}

	current.enter(StateIndexing)
	index, err := dedup.BuildIndex(ctx, signatures, config.Bands, config.Rows, config.Workers)
	if err != nil {
		return err
	}
	pairs, err := index.CandidatePairs(config.MaxCandidatePairs)
	if err != nil {
		return err
	}
	summary.CandidatePairs = len(pairs)
	current.log.Debug("index built", "buckets", index.Buckets(), "candidate_pairs", len(pairs))

	current.enter(StateVerifying)
	verified, err := dedup.VerifyPairs(ctx, survivors, pairs, config.Threshold, config.Workers)
	if err != nil {
		return err
	}
	near := dedup.ClusterVerified(survivors, verified)
	summary.NearDuplicates = near.Removed
	summary.DeduplicatedSize = len(near.Survivors)

	clusters := make([]dedup.Cluster, 0, len(exact.Clusters)+len(near.Clusters))
	clusters = append(clusters, exact.Clusters...)
	clusters = append(clusters, near.Clusters...)
	summary.Clusters = len(clusters)
	current.outcome.Clusters = clusters

	if err := ctx.Err(); err != nil {
		return err
	}
	current.enter(StateWriting)
	written, created, err := current.write(ctx, near.Survivors, len(records), len(clusters))
	if err != nil {
		return err
	}
	current.outcome.Manifest = written
	current.outcome.Created = created
	if !created {
		current.log.Info("version already committed with identical content", "checksum", written.Checksum)
	}
	current.enter(StateDone)
	return nil
}

func (current *run) write(ctx context.Context, survivors []dataset.Record, originalSize int, clusterCount int) (manifest.DatasetManifest, bool, error) {
	lines := make([][]byte, len(survivors))
	for position, record := range survivors {
		lines[position] = record.Raw
	}
	summary := current.outcome.Summary
	return manifest.NewWriter(current.config.OutputDir).Write(ctx, manifest.Request{
		Name:            current.config.Name,
		Version:         current.config.Version,
		RunID:           current.outcome.RunID,
		SourcePaths:     current.config.SourcePaths,
		Lines:           lines,
		OriginalSize:    originalSize,
		ExactDuplicates: summary.ExactDuplicates,
		NearDuplicates:  summary.NearDuplicates,
		ClusterCount:    clusterCount,
		Params:          current.config.Params(),
	})
}

// ValidationReport summarizes a load-only pass over the inputs.
type ValidationReport struct {
	Files           int
	Records         int
	ExactDuplicates int
}

// Validate loads and schema-checks every input line and counts exact
// duplicates without writing anything.
func (engine *Engine) Validate(ctx context.Context, config runconfig.DedupRunConfig) (ValidationReport, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return ValidationReport{}, err
	}
	records, err := loadRecords(ctx, config)
	if err != nil {
		return ValidationReport{}, err
	}
	exact, err := dedup.DeduplicateExact(ctx, records, dedup.NewHashSet(), config.Workers)
	if err != nil {
		return ValidationReport{}, err
	}
	return ValidationReport{Files: len(config.SourcePaths), Records: len(records), ExactDuplicates: exact.Removed}, nil
}
