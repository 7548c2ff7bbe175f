package manifest

import (
	"fmt"
	"time"

	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

// DatasetManifest describes one committed corpus version. Once stored for a
// (Name, Version) it never changes.
type DatasetManifest struct {
	Name             string           `json:"name" yaml:"name"`
	Version          string           `json:"version" yaml:"version"`
	RunID            string           `json:"run_id" yaml:"run_id"`
	SourcePaths      []string         `json:"source_paths" yaml:"source_paths"`
	OutputPath       string           `json:"output_path" yaml:"output_path"`
	Checksum         string           `json:"checksum" yaml:"checksum"`
	OriginalSize     int              `json:"original_size" yaml:"original_size"`
	DeduplicatedSize int              `json:"deduplicated_size" yaml:"deduplicated_size"`
	ExactDuplicates  int              `json:"exact_duplicates" yaml:"exact_duplicates"`
	NearDuplicates   int              `json:"near_duplicates" yaml:"near_duplicates"`
	ClusterCount     int              `json:"cluster_count" yaml:"cluster_count"`
	DedupParams      runconfig.Params `json:"dedup_params" yaml:"dedup_params"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
}

// ManifestConflictError is returned when (Name, Version) is already committed
// with a different checksum. The caller must choose a new version.
type ManifestConflictError struct {
	Name             string
	Version          string
	ExistingChecksum string
	NewChecksum      string
}

func (err *ManifestConflictError) Error() string {
	return fmt.Sprintf("manifest conflict for %s@%s: committed checksum %s, new checksum %s (bump the version)", err.Name, err.Version, err.ExistingChecksum, err.NewChecksum)
}

// VersionOrderError is returned when a new version does not sort after the
// latest committed version of the dataset.
type VersionOrderError struct {
	Name    string
	Version string
	Latest  string
}

func (err *VersionOrderError) Error() string {
	return fmt.Sprintf("version %s of %s must be greater than latest committed version %s", err.Version, err.Name, err.Latest)
}

// ChecksumMismatchError is returned by Verify when a committed blob no longer
// matches its manifest.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (err *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: manifest %s, file %s", err.Path, err.Expected, err.Actual)
}
