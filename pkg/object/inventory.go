package object

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Stats summarizes the loose objects on disk.
type Stats struct {
	Objects int
	Bytes   int64
}

// VerifyReport is the result of re-hashing every stored object.
type VerifyReport struct {
	Objects int
	Corrupt []Hash
}

// Stats counts stored objects and their on-disk size.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.walk(func(h Hash, info os.FileInfo) error {
		st.Objects++
		st.Bytes += info.Size()
		return nil
	})
	return st, err
}

// Verify reads every object back and records those that fail digest
// re-verification. Storage failures abort the walk.
func (s *Store) Verify() (*VerifyReport, error) {
	report := &VerifyReport{}
	err := s.walk(func(h Hash, _ os.FileInfo) error {
		report.Objects++
		if _, _, err := s.Read(h); err != nil {
			if errors.Is(err, ErrCorruptObject) {
				report.Corrupt = append(report.Corrupt, h)
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// FindByPrefix returns every stored hash starting with prefix, sorted.
// The prefix must be at least two characters long.
func (s *Store) FindByPrefix(prefix string) ([]Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < 2 {
		return nil, fmt.Errorf("find by prefix %q: prefix too short", prefix)
	}
	dir := filepath.Join(s.objectsDir(), prefix[:2])
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("readdir", dir, err)
	}
	var out []Hash
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			continue
		}
		h := Hash(prefix[:2] + info.Name())
		if strings.HasPrefix(string(h), prefix) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) walk(fn func(h Hash, info os.FileInfo) error) error {
	root := s.objectsDir()
	if _, err := s.fs.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return storageErr("stat", root, err)
	}
	err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h := Hash(strings.ReplaceAll(filepath.ToSlash(rel), "/", ""))
		if !h.Valid() {
			return nil
		}
		return fn(h, info)
	})
	if err != nil {
		var se *StorageError
		var ce *CorruptObjectError
		if errors.As(err, &se) || errors.As(err, &ce) {
			return err
		}
		return storageErr("walk", root, err)
	}
	return nil
}
