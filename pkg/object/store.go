package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Objects are immutable. There is no update or delete.
type Store struct {
	fs       afero.Fs
	root     string
	compress bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFs backs the store with the given filesystem instead of the OS.
func WithFs(fsys afero.Fs) StoreOption {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithCompression toggles zstd compression of newly written objects.
// Reads accept both forms regardless of this setting.
func WithCompression(on bool) StoreOption {
	return func(s *Store) { s.compress = on }
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{fs: afero.NewOsFs(), root: root, compress: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) objectsDir() string {
	return filepath.Join(s.root, "objects")
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.objectsDir(), string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !h.Valid() {
		return false
	}
	_, err := s.fs.Stat(s.objectPath(h))
	return err == nil
}

// Put stores raw file content as a blob and returns its digest. Storing
// identical bytes twice returns the same digest without a second write.
func (s *Store) Put(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// Get returns the content of the blob with the given digest.
func (s *Store) Get(h Hash) ([]byte, error) {
	b, err := s.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// Write stores an object and returns its content hash. The hashed form is
// "type len\0content"; on disk it is zstd-compressed when compression is
// enabled. Data is written to a temp file, synced, and renamed into place,
// so an object name is never visible before its bytes are durable.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, len(data)), data...)
	if s.compress {
		compressed, err := compressZstd(raw)
		if err != nil {
			return "", fmt.Errorf("object write %s: compress: %w", h, err)
		}
		raw = compressed
	}

	dir := filepath.Join(s.objectsDir(), string(h[:2]))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", storageErr("mkdir", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return "", storageErr("tmpfile", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", storageErr("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", storageErr("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", storageErr("close", tmpName, err)
	}

	dest := s.objectPath(h)
	if err := s.fs.Rename(tmpName, dest); err != nil {
		s.fs.Remove(tmpName)
		return "", storageErr("rename", dest, err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// The content is re-hashed on every read; a mismatch is reported as a
// *CorruptObjectError.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !h.Valid() {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	path := s.objectPath(h)
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, storageErr("read", path, err)
	}

	if isZstdEncoded(raw) {
		raw, err = decompressZstd(raw)
		if err != nil {
			return "", nil, &CorruptObjectError{Hash: h, Reason: "decompress: " + err.Error()}
		}
	}

	objType, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: err.Error()}
	}
	if actual := HashObject(objType, content); actual != h {
		return "", nil, &CorruptObjectError{Hash: h, Reason: "content hashes to " + string(actual)}
	}
	return objType, content, nil
}

// parseEnvelope splits "type len\0content".
func parseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return ObjectType(parts[0]), content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, objType, want)
	}
	return data, nil
}
