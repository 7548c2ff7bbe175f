package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

const (
	openAttempt = 100 * time.Millisecond

	FirstVersion = "1.0.0"
)

var manifestsBucket = []byte("manifests")

// Registry is the append-only manifest store: one nested bucket per dataset
// name, keyed by version. bbolt locks the whole file, so callers hold a
// Registry only for the few transactions they need.
type Registry struct {
	db *bolt.DB
}

// OpenRegistry opens or creates the registry at path for writing. While
// another holder has the file it keeps retrying until ctx is done.
func OpenRegistry(ctx context.Context, path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory failed: %w", err)
	}
	db, err := openDatabase(ctx, path, false)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(manifestsBucket)
		return createErr
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Registry{db: db}, nil
}

// OpenExistingRegistry opens the registry at path read-only and fails when
// nothing has been committed there yet, so read commands never create one.
func OpenExistingRegistry(ctx context.Context, path string) (*Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no manifest registry at %s: %w", path, err)
	}
	db, err := openDatabase(ctx, path, true)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

func openDatabase(ctx context.Context, path string, readOnly bool) (*bolt.DB, error) {
	for {
		db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openAttempt, ReadOnly: readOnly})
		if err == nil {
			return db, nil
		}
		if !errors.Is(err, bolterrors.ErrTimeout) {
			return nil, fmt.Errorf("open manifest registry %s: %w", path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("open manifest registry %s: %w", path, ctxErr)
		}
	}
}

func (registry *Registry) Close() error {
	if registry == nil || registry.db == nil {
		return nil
	}
	return registry.db.Close()
}

func (registry *Registry) Get(name string, version string) (*DatasetManifest, error) {
	var manifest *DatasetManifest
	err := registry.db.View(func(tx *bolt.Tx) error {
		bucket := datasetBucket(tx, name)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(version))
		if raw == nil {
			return nil
		}
		parsed := DatasetManifest{}
		if decodeErr := json.Unmarshal(raw, &parsed); decodeErr != nil {
			return fmt.Errorf("decode manifest %s@%s: %w", name, version, decodeErr)
		}
		manifest = &parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func datasetBucket(tx *bolt.Tx, name string) *bolt.Bucket {
	root := tx.Bucket(manifestsBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(name))
}

// List returns every manifest of name, newest version first.
func (registry *Registry) List(name string) ([]DatasetManifest, error) {
	result := make([]DatasetManifest, 0)
	err := registry.db.View(func(tx *bolt.Tx) error {
		bucket := datasetBucket(tx, name)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key []byte, value []byte) error {
			manifest := DatasetManifest{}
			if decodeErr := json.Unmarshal(value, &manifest); decodeErr != nil {
				return fmt.Errorf("decode manifest %s@%s: %w", name, key, decodeErr)
			}
			result = append(result, manifest)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(left int, right int) bool {
		return compareVersions(result[left].Version, result[right].Version) > 0
	})
	return result, nil
}

func (registry *Registry) Latest(name string) (*DatasetManifest, error) {
	manifests, err := registry.List(name)
	if err != nil || len(manifests) == 0 {
		return nil, err
	}
	return &manifests[0], nil
}

// Datasets returns every dataset name with at least one manifest.
func (registry *Registry) Datasets() ([]string, error) {
	names := make([]string, 0)
	err := registry.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(manifestsBucket)
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(key []byte) error {
			names = append(names, string(key))
			return nil
		})
	})
	return names, err
}

// Commit stores manifest unless its (Name, Version) already exists. An
// existing entry with the same checksum is returned unchanged with created
// false; a different checksum is a ManifestConflictError. A new version must
// sort after the latest committed one.
func (registry *Registry) Commit(manifest DatasetManifest) (DatasetManifest, bool, error) {
	stored := manifest
	created := false
	err := registry.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(manifestsBucket).CreateBucketIfNotExists([]byte(manifest.Name))
		if err != nil {
			return err
		}
		if raw := bucket.Get([]byte(manifest.Version)); raw != nil {
			existing := DatasetManifest{}
			if decodeErr := json.Unmarshal(raw, &existing); decodeErr != nil {
				return fmt.Errorf("decode manifest %s@%s: %w", manifest.Name, manifest.Version, decodeErr)
			}
			if existing.Checksum != manifest.Checksum {
				return &ManifestConflictError{
					Name:             manifest.Name,
					Version:          manifest.Version,
					ExistingChecksum: existing.Checksum,
					NewChecksum:      manifest.Checksum,
				}
			}
			stored = existing
			return nil
		}

		latest := ""
		if err := bucket.ForEach(func(key []byte, _ []byte) error {
			if latest == "" || compareVersions(string(key), latest) > 0 {
				latest = string(key)
			}
			return nil
		}); err != nil {
			return err
		}
		if latest != "" && compareVersions(manifest.Version, latest) <= 0 {
			return &VersionOrderError{Name: manifest.Name, Version: manifest.Version, Latest: latest}
		}

		payload, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		created = true
		return bucket.Put([]byte(manifest.Version), payload)
	})
	if err != nil {
		return DatasetManifest{}, false, err
	}
	return stored, created, nil
}

// NextPatchVersion returns the patch bump of the latest version of name, or
// 1.0.0 when nothing is committed yet.
func (registry *Registry) NextPatchVersion(name string) (string, error) {
	latest, err := registry.Latest(name)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return FirstVersion, nil
	}
	version, err := semver.NewVersion(latest.Version)
	if err != nil {
		return "", fmt.Errorf("parse latest version %q: %w", latest.Version, err)
	}
	return version.IncPatch().String(), nil
}

func compareVersions(left string, right string) int {
	leftVersion, leftErr := semver.NewVersion(left)
	rightVersion, rightErr := semver.NewVersion(right)
	if leftErr != nil || rightErr != nil {
		switch {
		case left < right:
			return -1
		case left > right:
			return 1
		default:
			return 0
		}
	}
	return leftVersion.Compare(rightVersion)
}
