package runconfig

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
)

const (
	ShingleModeChar  = "char"
	ShingleModeToken = "token"

	DefaultShingleSize   = 5
	DefaultSignatureSize = 128
	DefaultRows          = 4
	DefaultThreshold     = 0.2
	DefaultSeed          = 42
)

// DedupRunConfig is built once at run start and passed to every stage. No
// stage reads configuration from anywhere else.
type DedupRunConfig struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	SourcePaths []string          `yaml:"source_paths"`
	Variables   map[string]string `yaml:"variables"`
	OutputDir   string            `yaml:"output_dir"`

	Schema   dataset.Schema `yaml:"schema"`
	CaseFold bool           `yaml:"case_fold"`

	ShingleMode   string  `yaml:"shingle_mode"`
	ShingleSize   int     `yaml:"shingle_size"`
	SignatureSize int     `yaml:"signature_size"`
	Bands         int     `yaml:"bands"`
	Rows          int     `yaml:"rows"`
	Threshold     float64 `yaml:"threshold"`
	Seed          uint64  `yaml:"seed"`

	Workers           int `yaml:"workers"`
	MaxRecords        int `yaml:"max_records"`
	MaxCandidatePairs int `yaml:"max_candidate_pairs"`

	MetricsFile string `yaml:"metrics_file"`
}

func Default() DedupRunConfig {
	config := DedupRunConfig{}
	config.ApplyDefaults()
	return config
}

func (config *DedupRunConfig) ApplyDefaults() {
	config.Schema.ApplyDefaults()
	if config.ShingleMode == "" {
		config.ShingleMode = ShingleModeChar
	}
	if config.ShingleSize == 0 {
		if config.ShingleMode == ShingleModeToken {
			config.ShingleSize = 3
		} else {
			config.ShingleSize = DefaultShingleSize
		}
	}
	if config.SignatureSize == 0 {
		config.SignatureSize = DefaultSignatureSize
	}
	if config.Bands == 0 && config.Rows == 0 {
		config.Rows = DefaultRows
		config.Bands = config.SignatureSize / DefaultRows
	}
	if config.Bands == 0 && config.Rows > 0 {
		config.Bands = config.SignatureSize / config.Rows
	}
	if config.Rows == 0 && config.Bands > 0 {
		config.Rows = config.SignatureSize / config.Bands
	}
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Seed == 0 {
		config.Seed = DefaultSeed
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.OutputDir == "" {
		config.OutputDir = "datasets/processed"
	}
}

func (config DedupRunConfig) Validate() error {
	if strings.TrimSpace(config.Name) == "" {
		return fmt.Errorf("config: name is required")
	}
	if strings.ContainsAny(config.Name, `/\`) || config.Name == "." || config.Name == ".." {
		return fmt.Errorf("config: name %q must be a single path segment", config.Name)
	}
	if _, err := semver.StrictNewVersion(config.Version); err != nil {
		return fmt.Errorf("config: version %q is not valid semver: %w", config.Version, err)
	}
	if len(config.SourcePaths) == 0 {
		return fmt.Errorf("config: at least one source path is required")
	}
	if err := config.Schema.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch config.ShingleMode {
	case ShingleModeChar, ShingleModeToken:
	default:
		return fmt.Errorf("config: invalid shingle_mode %q (expected char|token)", config.ShingleMode)
	}
	if config.ShingleSize <= 0 {
		return fmt.Errorf("config: shingle_size must be positive")
	}
	if config.SignatureSize <= 0 {
		return fmt.Errorf("config: signature_size must be positive")
	}
	if config.Bands <= 0 || config.Rows <= 0 || config.Bands*config.Rows != config.SignatureSize {
		return fmt.Errorf("config: bands (%d) x rows (%d) must equal signature_size (%d)", config.Bands, config.Rows, config.SignatureSize)
	}
	if config.Threshold <= 0 || config.Threshold > 1 {
		return fmt.Errorf("config: threshold must be in (0,1]")
	}
	if config.MaxRecords < 0 || config.MaxCandidatePairs < 0 {
		return fmt.Errorf("config: resource limits must not be negative")
	}
	return nil
}

// Params is the subset of the config recorded in the manifest. Two runs with
// equal Params over equal input produce byte-identical corpora.
type Params struct {
	ShingleMode   string  `json:"shingle_mode" yaml:"shingle_mode"`
	ShingleSize   int     `json:"shingle_size" yaml:"shingle_size"`
	SignatureSize int     `json:"signature_size" yaml:"signature_size"`
	Bands         int     `json:"bands" yaml:"bands"`
	Rows          int     `json:"rows" yaml:"rows"`
	Threshold     float64 `json:"threshold" yaml:"threshold"`
	Seed          uint64  `json:"seed" yaml:"seed"`
	CaseFold      bool    `json:"case_fold" yaml:"case_fold"`
	Normalization string  `json:"normalization" yaml:"normalization"`
}

func (config DedupRunConfig) Params() Params {
	return Params{
		ShingleMode:   config.ShingleMode,
		ShingleSize:   config.ShingleSize,
		SignatureSize: config.SignatureSize,
		Bands:         config.Bands,
		Rows:          config.Rows,
		Threshold:     config.Threshold,
		Seed:          config.Seed,
		CaseFold:      config.CaseFold,
		Normalization: "nfc+collapse-whitespace+trim",
	}
}

// Read parses a YAML run file without applying defaults, so callers can
// layer overrides before Resolve.
func Read(path string) (DedupRunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DedupRunConfig{}, fmt.Errorf("read run config: %w", err)
	}
	config := DedupRunConfig{}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return DedupRunConfig{}, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return config, nil
}

// Load reads a YAML run file, applies defaults and expands source path
// templates against the file's variables.
func Load(path string) (DedupRunConfig, error) {
	config, err := Read(path)
	if err != nil {
		return DedupRunConfig{}, err
	}
	if err := config.Resolve(); err != nil {
		return DedupRunConfig{}, err
	}
	return config, nil
}

// Resolve applies defaults and expands every source path template.
func (config *DedupRunConfig) Resolve() error {
	config.ApplyDefaults()
	expanded := make([]string, 0, len(config.SourcePaths))
	for _, template := range config.SourcePaths {
		path, err := ExpandPath(template, config.Variables)
		if err != nil {
			return err
		}
		expanded = append(expanded, path)
	}
	config.SourcePaths = expanded
	return nil
}
