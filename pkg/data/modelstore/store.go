package modelstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"github.com/peter-kozarec/augur/pkg/utility"
)

const (
	snapshotExt = ".model"
	jsonExt     = ".json"
)

var ErrNotFound = errors.New("model not found")

// Save writes a fitted model to path. A .json path gets the readable JSON
// encoding, anything else a snappy-compressed binary snapshot. The file is
// replaced atomically.
func Save(path string, f *prophet.Fitted) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), jsonExt) {
		data, err = f.MarshalJSON()
	} else {
		data, err = f.MarshalBinary()
		data = snappy.Encode(nil, data)
	}
	if err != nil {
		return fmt.Errorf("unable to encode model %s: %w", f.ID(), err)
	}
	return writeFile(path, data)
}

// Load restores a model written by Save. Options attach runtime settings such
// as a logger to the restored configuration.
func Load(path string, options ...prophet.Option) (*prophet.Fitted, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), jsonExt) {
		return prophet.DecodeJSON(data, options...)
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", prophet.ErrCorruptModel, err)
	}
	return prophet.DecodeBinary(raw, options...)
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("unable to create snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to move snapshot to %q: %w", path, err)
	}
	return nil
}

// Store keeps snapshots in a directory keyed by model id.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create store %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id utility.RunID) string {
	return filepath.Join(s.dir, id.String()+snapshotExt)
}

// Put saves f under its id and returns the snapshot path.
func (s *Store) Put(f *prophet.Fitted) (string, error) {
	path := s.path(f.ID())
	if err := Save(path, f); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) Get(id utility.RunID, options ...prophet.Option) (*prophet.Fitted, error) {
	return Load(s.path(id), options...)
}

func (s *Store) Delete(id utility.RunID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// List returns the stored ids in ascending order. UUIDv7 ids sort by
// creation time.
func (s *Store) List() ([]utility.RunID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list store %q: %w", s.dir, err)
	}
	var ids []utility.RunID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id, err := utility.ParseRunID(strings.TrimSuffix(name, snapshotExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
