package object

import (
	"bytes"
	"strings"
	"testing"
)

func TestMarshalTreeSortedAndDeterministic(t *testing.T) {
	a := &TreeObj{Entries: []TreeEntry{
		{Name: "b.txt", Mode: TreeModeFile, Hash: Hash(strings.Repeat("1", 64))},
		{Name: "a.txt", Mode: TreeModeExecutable, Hash: Hash(strings.Repeat("2", 64))},
	}}
	b := &TreeObj{Entries: []TreeEntry{a.Entries[1], a.Entries[0]}}

	if !bytes.Equal(MarshalTree(a), MarshalTree(b)) {
		t.Fatal("MarshalTree depends on entry order")
	}
	want := "100755 " + strings.Repeat("2", 64) + " a.txt\n" +
		"100644 " + strings.Repeat("1", 64) + " b.txt\n"
	if got := string(MarshalTree(a)); got != want {
		t.Errorf("MarshalTree:\n got %q\nwant %q", got, want)
	}
}

func TestUnmarshalTreeNameWithSpaces(t *testing.T) {
	orig := &TreeObj{Entries: []TreeEntry{
		{Name: "my notes.txt", Mode: TreeModeFile, Hash: Hash(strings.Repeat("3", 64))},
	}}
	got, err := UnmarshalTree(MarshalTree(orig))
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0] != orig.Entries[0] {
		t.Errorf("round trip = %+v, want %+v", got.Entries, orig.Entries)
	}
}

func TestMarshalTreeDefaultMode(t *testing.T) {
	tr := &TreeObj{Entries: []TreeEntry{{Name: "x", Hash: Hash(strings.Repeat("4", 64))}}}
	if !strings.HasPrefix(string(MarshalTree(tr)), TreeModeFile+" ") {
		t.Errorf("empty mode should serialize as %s: %q", TreeModeFile, MarshalTree(tr))
	}
}

func TestUnmarshalTreeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing name", "100644 " + strings.Repeat("a", 64) + "\n"},
		{"unknown mode", "120000 " + strings.Repeat("a", 64) + " link\n"},
		{"too few fields", "100644\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := UnmarshalTree([]byte(tc.input)); err == nil {
				t.Errorf("expected error for %q", tc.input)
			}
		})
	}
}

func TestMarshalCommitParentsOrdered(t *testing.T) {
	p1 := Hash(strings.Repeat("1", 64))
	p2 := Hash(strings.Repeat("2", 64))
	c := &CommitObj{
		TreeHash:  Hash(strings.Repeat("f", 64)),
		Parents:   []Hash{p2, p1},
		Author:    "alice",
		Timestamp: 42,
		Message:   "merge",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 2 || got.Parents[0] != p2 || got.Parents[1] != p1 {
		t.Errorf("Parents = %v, want [%s %s]", got.Parents, p2, p1)
	}

	swapped := *c
	swapped.Parents = []Hash{p1, p2}
	if CommitHash(c) == CommitHash(&swapped) {
		t.Error("parent order should affect commit identity")
	}
}

func TestSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{
		TreeHash:  EmptyTreeHash,
		Author:    "alice",
		Timestamp: 1,
		Message:   "hi",
	}
	unsigned := SigningPayload(c)
	c.Signature = "sshsig-v1:abc"
	if !bytes.Equal(unsigned, SigningPayload(c)) {
		t.Error("SigningPayload should not depend on Signature")
	}
	if bytes.Equal(unsigned, MarshalCommit(c)) {
		t.Error("signed commit serialization should include the signature")
	}
	if SigningPayload(nil) != nil {
		t.Error("SigningPayload(nil) should be nil")
	}
}

func TestUnmarshalCommitErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "tree abc\nauthor x"},
		{"bad timestamp", "tree abc\ntimestamp soon\n\nmsg"},
		{"unknown key", "tree abc\ncolor blue\n\nmsg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := UnmarshalCommit([]byte(tc.input)); err == nil {
				t.Errorf("expected error for %q", tc.input)
			}
		})
	}
}
