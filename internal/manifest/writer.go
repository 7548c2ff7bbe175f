package manifest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
	"github.com/ThakiCloud/vllm-eval/internal/runlock"
)

const (
	corpusFileName   = "corpus.jsonl"
	manifestFileName = "manifest.yaml"
	registryFileName = "manifests.db"
	tempDirName      = ".tmp"
	checksumPrefix   = "sha256:"
)

// Request carries everything the writer needs to commit one corpus version.
type Request struct {
	Name            string
	Version         string
	RunID           string
	SourcePaths     []string
	Lines           [][]byte
	OriginalSize    int
	ExactDuplicates int
	NearDuplicates  int
	ClusterCount    int
	Params          runconfig.Params
}

// Writer is the only component that performs durable writes. Corpora land in
// <root>/<name>/<version>/ and manifests in <root>/manifests.db. Temp files
// are staged under <root>/.tmp so a rejected commit leaves no version
// directory behind.
type Writer struct {
	root string
	now  func() time.Time
}

func NewWriter(root string) *Writer {
	return &Writer{root: root, now: time.Now}
}

func RegistryPath(root string) string {
	return filepath.Join(root, registryFileName)
}

func (writer *Writer) CorpusPath(name string, version string) string {
	return filepath.Join(writer.root, name, version, corpusFileName)
}

// Write streams the corpus to a temp file and hashes it, then commits blob,
// YAML sidecar and registry entry while holding the dataset's lock. The
// registry is opened only for the commit itself. Re-committing an identical
// corpus returns the stored manifest with created false.
func (writer *Writer) Write(ctx context.Context, request Request) (DatasetManifest, bool, error) {
	stagingDirectory := filepath.Join(writer.root, tempDirName)
	if err := os.MkdirAll(stagingDirectory, 0o755); err != nil {
		return DatasetManifest{}, false, fmt.Errorf("create staging directory failed: %w", err)
	}
	tempPath, checksum, err := writeTempCorpus(ctx, stagingDirectory, request.Lines)
	if err != nil {
		return DatasetManifest{}, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempPath)
		}
	}()

	lock, err := runlock.Acquire(ctx, writer.root, request.Name)
	if err != nil {
		return DatasetManifest{}, false, err
	}
	defer lock.Release()

	registry, err := OpenRegistry(ctx, RegistryPath(writer.root))
	if err != nil {
		return DatasetManifest{}, false, err
	}
	defer registry.Close()

	existing, err := registry.Get(request.Name, request.Version)
	if err != nil {
		return DatasetManifest{}, false, err
	}
	if existing != nil {
		if existing.Checksum != checksum {
			return DatasetManifest{}, false, &ManifestConflictError{
				Name:             request.Name,
				Version:          request.Version,
				ExistingChecksum: existing.Checksum,
				NewChecksum:      checksum,
			}
		}
		return *existing, false, nil
	}
	latest, err := registry.Latest(request.Name)
	if err != nil {
		return DatasetManifest{}, false, err
	}
	if latest != nil && compareVersions(request.Version, latest.Version) <= 0 {
		return DatasetManifest{}, false, &VersionOrderError{Name: request.Name, Version: request.Version, Latest: latest.Version}
	}
	if err := ctx.Err(); err != nil {
		return DatasetManifest{}, false, err
	}

	manifest := DatasetManifest{
		Name:             request.Name,
		Version:          request.Version,
		RunID:            request.RunID,
		SourcePaths:      append([]string(nil), request.SourcePaths...),
		OutputPath:       writer.CorpusPath(request.Name, request.Version),
		Checksum:         checksum,
		OriginalSize:     request.OriginalSize,
		DeduplicatedSize: len(request.Lines),
		ExactDuplicates:  request.ExactDuplicates,
		NearDuplicates:   request.NearDuplicates,
		ClusterCount:     request.ClusterCount,
		DedupParams:      request.Params,
		CreatedAt:        writer.now().UTC(),
	}

	directory := filepath.Dir(manifest.OutputPath)
	sidecarPath := filepath.Join(directory, manifestFileName)
	rollback := func() {
		_ = os.Remove(manifest.OutputPath)
		_ = os.Remove(sidecarPath)
		_ = os.Remove(directory)
		_ = os.Remove(filepath.Dir(directory))
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return DatasetManifest{}, false, fmt.Errorf("create corpus directory failed: %w", err)
	}
	if err := os.Rename(tempPath, manifest.OutputPath); err != nil {
		rollback()
		return DatasetManifest{}, false, fmt.Errorf("commit corpus failed: %w", err)
	}
	committed = true
	if err := writeSidecar(sidecarPath, manifest); err != nil {
		rollback()
		return DatasetManifest{}, false, err
	}
	stored, created, err := registry.Commit(manifest)
	if err != nil {
		rollback()
		return DatasetManifest{}, false, err
	}
	return stored, created, nil
}

// Verify re-hashes a committed corpus and compares it with its manifest.
func (writer *Writer) Verify(ctx context.Context, name string, version string) (DatasetManifest, error) {
	registry, err := OpenExistingRegistry(ctx, RegistryPath(writer.root))
	if err != nil {
		return DatasetManifest{}, err
	}
	defer registry.Close()

	manifest, err := registry.Get(name, version)
	if err != nil {
		return DatasetManifest{}, err
	}
	if manifest == nil {
		return DatasetManifest{}, fmt.Errorf("no manifest for %s@%s", name, version)
	}
	return *manifest, VerifyCorpus(*manifest)
}

// VerifyCorpus returns a ChecksumMismatchError when the blob at
// manifest.OutputPath no longer hashes to manifest.Checksum.
func VerifyCorpus(manifest DatasetManifest) error {
	actual, err := ChecksumFile(manifest.OutputPath)
	if err != nil {
		return err
	}
	if actual != manifest.Checksum {
		return &ChecksumMismatchError{Path: manifest.OutputPath, Expected: manifest.Checksum, Actual: actual}
	}
	return nil
}

func ChecksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open corpus: %w", err)
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", fmt.Errorf("hash corpus: %w", err)
	}
	return formatChecksum(digest), nil
}

func formatChecksum(digest hash.Hash) string {
	return checksumPrefix + hex.EncodeToString(digest.Sum(nil))
}

func writeTempCorpus(ctx context.Context, directory string, lines [][]byte) (string, string, error) {
	file, err := os.CreateTemp(directory, ".corpus-*.jsonl.tmp")
	if err != nil {
		return "", "", fmt.Errorf("create temp corpus failed: %w", err)
	}
	tempPath := file.Name()
	fail := func(cause error) (string, string, error) {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return "", "", cause
	}

	digest := sha256.New()
	buffered := bufio.NewWriter(io.MultiWriter(file, digest))
	for position, line := range lines {
		if position%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}
		if _, err := buffered.Write(pretty.Ugly(line)); err != nil {
			return fail(fmt.Errorf("write corpus line: %w", err))
		}
		if err := buffered.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("write corpus line: %w", err))
		}
	}
	if err := buffered.Flush(); err != nil {
		return fail(fmt.Errorf("flush corpus: %w", err))
	}
	if err := file.Sync(); err != nil {
		return fail(fmt.Errorf("sync corpus: %w", err))
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", "", fmt.Errorf("close corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tempPath)
		return "", "", err
	}
	return tempPath, formatChecksum(digest), nil
}

func writeSidecar(path string, manifest DatasetManifest) error {
	payload, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest sidecar: %w", err)
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, payload, 0o644); err != nil {
		return fmt.Errorf("write manifest sidecar: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("commit manifest sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads the YAML manifest stored next to a corpus.
func ReadSidecar(path string) (DatasetManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DatasetManifest{}, err
	}
	manifest := DatasetManifest{}
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return DatasetManifest{}, fmt.Errorf("invalid manifest sidecar %s: %w", path, err)
	}
	return manifest, nil
}

// IsConflict reports whether err is a ManifestConflictError.
func IsConflict(err error) bool {
	var conflict *ManifestConflictError
	return errors.As(err, &conflict)
}
