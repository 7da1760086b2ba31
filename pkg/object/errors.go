package object

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a digest has no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrCorruptObject is returned when stored bytes fail re-verification.
	ErrCorruptObject = errors.New("corrupt object")
	// ErrTypeMismatch is returned when an object exists but has another type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// CorruptObjectError reports an object whose stored bytes no longer hash to
// its name, or cannot be decoded at all.
type CorruptObjectError struct {
	Hash   Hash
	Reason string
}

func (e *CorruptObjectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("object %s: %s: %s", e.Hash, ErrCorruptObject, e.Reason)
}

func (e *CorruptObjectError) Is(target error) bool {
	return target == ErrCorruptObject
}

// StorageError wraps a failure of the storage medium itself (permission
// denied, disk full, ...). These are distinct from the logical errors above
// and callers may treat them as fatal.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
