package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if !h1.Valid() {
		t.Errorf("HashBytes produced invalid hash %q", h1)
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	if h1 == HashBytes(data) {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}
	if h1 != HashObject(TypeBlob, data) {
		t.Error("HashObject not deterministic")
	}
	if h1 == HashObject(TypeTree, data) {
		t.Error("Different types should produce different hashes")
	}
}

func TestHashValid(t *testing.T) {
	tests := []struct {
		in   Hash
		want bool
	}{
		{HashBytes([]byte("x")), true},
		{"", false},
		{"abc", false},
		{Hash(strings.Repeat("A", 64)), false},
		{Hash(strings.Repeat("g", 64)), false},
		{Hash(strings.Repeat("0", 64)), true},
	}
	for _, tc := range tests {
		if got := tc.in.Valid(); got != tc.want {
			t.Errorf("Hash(%q).Valid() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func tempStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, opts...)
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(h) != 64 {
		t.Errorf("Hash length: got %d, want 64", len(h))
	}

	gotType, gotData, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != TypeBlob {
		t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("Data: got %q, want %q", gotData, data)
	}
}

func TestStorePutGet(t *testing.T) {
	s := tempStore(t)
	h, err := s.Put([]byte("payload"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Get = %q, want %q", got, "payload")
	}
}

func TestStoreHas(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(h) {
		t.Error("Has returned false for existing object")
	}
	if s.Has(Hash(strings.Repeat("0", 64))) {
		t.Error("Has returned true for non-existing object")
	}
	if s.Has("ab") {
		t.Error("Has returned true for malformed hash")
	}
}

func TestStoreFanoutLayout(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("fanout test"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	objPath := filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
	if _, err := os.Stat(objPath); os.IsNotExist(err) {
		t.Errorf("Expected fan-out file at %s", objPath)
	}
}

func TestStoreDuplicateWriteDoesNotGrow(t *testing.T) {
	s := tempStore(t)
	data := []byte("duplicate")
	h1, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	before, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	h2, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Same content produced different hashes: %q vs %q", h1, h2)
	}

	after, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if before != after {
		t.Errorf("Stats changed on duplicate write: before=%+v after=%+v", before, after)
	}
	if after.Objects != 1 {
		t.Errorf("Objects = %d, want 1", after.Objects)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	_, _, err := s.Read(Hash(strings.Repeat("0", 64)))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: got %v, want ErrNotFound", err)
	}
	_, err = s.Get("not-a-hash")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get malformed: got %v, want ErrNotFound", err)
	}
}

func TestStoreDetectsCorruption(t *testing.T) {
	s := tempStore(t, WithCompression(false))
	h, err := s.Put([]byte("original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
	if err := os.WriteFile(path, []byte("blob 8\x00tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err = s.Get(h)
	if !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("Get tampered: got %v, want ErrCorruptObject", err)
	}
	var ce *CorruptObjectError
	if !errors.As(err, &ce) || ce.Hash != h {
		t.Fatalf("expected *CorruptObjectError for %s, got %v", h, err)
	}

	report, err := s.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Objects != 1 || len(report.Corrupt) != 1 || report.Corrupt[0] != h {
		t.Errorf("Verify report = %+v, want one corrupt object %s", report, h)
	}
}

func TestStoreCompressionOnDisk(t *testing.T) {
	s := tempStore(t)
	data := bytes.Repeat([]byte("compressible "), 200)
	h, err := s.Put(data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.root, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !isZstdEncoded(raw) {
		t.Fatal("expected zstd frame on disk")
	}
	if len(raw) >= len(data) {
		t.Errorf("compressed size %d not smaller than input %d", len(raw), len(data))
	}
}

func TestStoreReadsUncompressedObjects(t *testing.T) {
	dir := t.TempDir()
	plain := NewStore(dir, WithCompression(false))
	h, err := plain.Put([]byte("legacy"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "blob 6\x00legacy" {
		t.Errorf("On-disk format: got %q", raw)
	}

	got, err := NewStore(dir).Get(h)
	if err != nil {
		t.Fatalf("Get via compressing store: %v", err)
	}
	if string(got) != "legacy" {
		t.Errorf("Get = %q, want %q", got, "legacy")
	}
}

func TestStoreMemFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore("/repo/.rewind", WithFs(fsys))
	h, err := s.Put([]byte("in memory"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := afero.Exists(fsys, filepath.Join("/repo/.rewind/objects", string(h[:2]), string(h[2:])))
	if err != nil || !ok {
		t.Fatalf("object file missing on MemMapFs (ok=%v err=%v)", ok, err)
	}
	got, err := s.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "in memory" {
		t.Errorf("Get = %q", got)
	}
}

func TestStoreWriteReadTree(t *testing.T) {
	s := tempStore(t)
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "pkg", Mode: TreeModeDir, Hash: Hash(strings.Repeat("c", 64))},
			{Name: "main.go", Mode: TreeModeFile, Hash: Hash(strings.Repeat("a", 64))},
		},
	}
	h, err := s.WriteTree(orig)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	got, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("Entries length: got %d, want 2", len(got.Entries))
	}
	if got.Entries[0].Name != "main.go" || got.Entries[1].Name != "pkg" {
		t.Errorf("Tree entries not sorted correctly: %+v", got.Entries)
	}
	if !got.Entries[1].IsDir() {
		t.Error("pkg entry should be a directory")
	}
}

func TestStoreEmptyTree(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteTree(&TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h != EmptyTreeHash {
		t.Errorf("empty tree hash = %s, want %s", h, EmptyTreeHash)
	}
	tr, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tr.Entries) != 0 {
		t.Errorf("empty tree has %d entries", len(tr.Entries))
	}
}

func TestStoreWriteReadCommit(t *testing.T) {
	s := tempStore(t)
	orig := &CommitObj{
		TreeHash:  Hash(strings.Repeat("a", 64)),
		Parents:   []Hash{Hash(strings.Repeat("b", 64))},
		Author:    "Test User <test@example.com>",
		Timestamp: 1700000000,
		Message:   "test commit\n\nWith details.",
	}
	h, err := s.WriteCommit(orig)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if h != CommitHash(orig) {
		t.Errorf("WriteCommit hash %s != CommitHash %s", h, CommitHash(orig))
	}
	got, err := s.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash || got.Author != orig.Author || got.Timestamp != orig.Timestamp {
		t.Errorf("commit header mismatch: %+v", got)
	}
	if got.Message != orig.Message {
		t.Errorf("Message mismatch: got %q, want %q", got.Message, orig.Message)
	}
}

func TestStoreReadBlobTypeMismatch(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteTree(&TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	_, err = s.ReadBlob(h)
	if err == nil {
		t.Fatal("ReadBlob on tree object should return error")
	}
	if !strings.Contains(err.Error(), "type mismatch") {
		t.Errorf("Expected type mismatch error, got: %v", err)
	}
}

func TestStoreFindByPrefix(t *testing.T) {
	s := tempStore(t)
	h, err := s.Put([]byte("prefix lookup"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.FindByPrefix(string(h[:6]))
	if err != nil {
		t.Fatalf("FindByPrefix: %v", err)
	}
	if len(got) != 1 || got[0] != h {
		t.Errorf("FindByPrefix = %v, want [%s]", got, h)
	}
	got, err = s.FindByPrefix("ffffffffff")
	if err != nil {
		t.Fatalf("FindByPrefix miss: %v", err)
	}
	if !strings.HasPrefix(string(h), "ffffffffff") && len(got) != 0 {
		t.Errorf("unexpected match %v", got)
	}
}

func TestStoreStatsEmpty(t *testing.T) {
	s := tempStore(t)
	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Objects != 0 || st.Bytes != 0 {
		t.Errorf("Stats on empty store = %+v", st)
	}
}

func TestReachableSet(t *testing.T) {
	s := tempStore(t)
	blob, err := s.Put([]byte("file"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	tree, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{{Name: "f", Mode: TreeModeFile, Hash: blob}}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commit, err := s.WriteCommit(&CommitObj{TreeHash: tree, Author: "a", Timestamp: 1, Message: "m"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	unrelated, err := s.Put([]byte("unrelated"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	set, err := s.ReachableSet([]Hash{commit})
	if err != nil {
		t.Fatalf("ReachableSet: %v", err)
	}
	for _, h := range []Hash{commit, tree, blob} {
		if _, ok := set[h]; !ok {
			t.Errorf("expected %s reachable", h)
		}
	}
	if _, ok := set[unrelated]; ok {
		t.Error("unrelated blob should not be reachable")
	}
}
