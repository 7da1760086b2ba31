package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// acquireRefLock creates lockPath exclusively, retrying until another
// writer releases it or the wait limit passes.
func acquireRefLock(fsys afero.Fs, lockPath string) (afero.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := fsys.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, fs.ErrExist) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, &object.StorageError{Op: "lock", Path: lockPath, Err: err}
	}
}

// writeFileAtomic replaces path with data via temp file, fsync and rename.
func writeFileAtomic(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return &object.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := afero.TempFile(fsys, dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return &object.StorageError{Op: "tmpfile", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return &object.StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return &object.StorageError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return &object.StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := fsys.Chmod(tmpName, perm); err != nil {
		fsys.Remove(tmpName)
		return &object.StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return &object.StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
