package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evaldedup"

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// RunSummary is what one dedup run reports once it reaches a terminal state.
type RunSummary struct {
	RunID            string        `json:"run_id" yaml:"run_id"`
	Dataset          string        `json:"dataset" yaml:"dataset"`
	Version          string        `json:"version" yaml:"version"`
	Status           string        `json:"status" yaml:"status"`
	ErrorType        string        `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	OriginalSize     int           `json:"original_size" yaml:"original_size"`
	DeduplicatedSize int           `json:"deduplicated_size" yaml:"deduplicated_size"`
	ExactDuplicates  int           `json:"exact_duplicates" yaml:"exact_duplicates"`
	NearDuplicates   int           `json:"near_duplicates" yaml:"near_duplicates"`
	Clusters         int           `json:"clusters" yaml:"clusters"`
	CandidatePairs   int           `json:"candidate_pairs" yaml:"candidate_pairs"`
	Elapsed          time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Recorder owns a private registry so several runs in one process never
// collide with the global default registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	recordsTotal    *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
	candidatePairs  *prometheus.GaugeVec
	clusters        *prometheus.GaugeVec
	runDuration     *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Dedup runs by terminal status and error type.",
		}, []string{"dataset", "status", "error_type"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records read and written by completed runs.",
		}, []string{"dataset", "direction"}),
		duplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Records removed as duplicates.",
		}, []string{"dataset", "kind"}),
		candidatePairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_pairs",
			Help:      "LSH candidate pairs of the latest run.",
		}, []string{"dataset"}),
		clusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Duplicate clusters of the latest run.",
		}, []string{"dataset"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of dedup runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"dataset", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
	recorder.registry.MustRegister(
		recorder.runsTotal,
		recorder.recordsTotal,
		recorder.duplicatesTotal,
		recorder.candidatePairs,
		recorder.clusters,
		recorder.runDuration,
		recorder.stageDuration,
	)
	return recorder
}

func (recorder *Recorder) ObserveStage(stage string, elapsed time.Duration) {
	recorder.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (recorder *Recorder) RecordRun(summary RunSummary) {
	status := strings.TrimSpace(summary.Status)
	if status == "" {
		status = StatusCompleted
	}
	errorType := strings.TrimSpace(summary.ErrorType)
	if errorType == "" {
		errorType = "none"
	}
	recorder.runsTotal.WithLabelValues(summary.Dataset, status, errorType).Inc()
	recorder.runDuration.WithLabelValues(summary.Dataset, status).Observe(summary.Elapsed.Seconds())
	if status != StatusCompleted {
		return
	}
	recorder.recordsTotal.WithLabelValues(summary.Dataset, "in").Add(float64(summary.OriginalSize))
	recorder.recordsTotal.WithLabelValues(summary.Dataset, "out").Add(float64(summary.DeduplicatedSize))
	recorder.duplicatesTotal.WithLabelValues(summary.Dataset, "exact").Add(float64(summary.ExactDuplicates))
	recorder.duplicatesTotal.WithLabelValues(summary.Dataset, "near").Add(float64(summary.NearDuplicates))
	recorder.candidatePairs.WithLabelValues(summary.Dataset).Set(float64(summary.CandidatePairs))
	recorder.clusters.WithLabelValues(summary.Dataset).Set(float64(summary.Clusters))
}

// WriteTextfile renders the registry in the node_exporter textfile format.
func (recorder *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory failed: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, recorder.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
