package repo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/rewind/pkg/object"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry is one recorded movement of a ref.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(ref))
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	reason = strings.Join(strings.Fields(reason), " ")
	if reason == "" {
		reason = "update"
	}

	logPath := r.reflogPath(ref)
	if err := r.fs.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return &object.StorageError{Op: "mkdir", Path: filepath.Dir(logPath), Err: err}
	}

	old := string(oldHash)
	if strings.TrimSpace(old) == "" {
		old = zeroHash
	}
	newVal := string(newHash)
	if strings.TrimSpace(newVal) == "" {
		newVal = zeroHash
	}
	line := fmt.Sprintf("%s %s %d %s\n", old, newVal, time.Now().Unix(), reason)

	f, err := r.fs.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &object.StorageError{Op: "open", Path: logPath, Err: err}
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return &object.StorageError{Op: "write", Path: logPath, Err: err}
	}
	return nil
}

// ReadReflog returns the recorded movements of ref, newest first. An empty
// ref or "HEAD" reads the HEAD log. A limit of zero returns everything.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refName, err := resolveReflogRefName(ref)
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	logPath := r.reflogPath(refName)
	f, err := r.fs.Open(logPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &object.StorageError{Op: "open", Path: logPath, Err: err}
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       refName,
			OldHash:   unzero(parts[0]),
			NewHash:   unzero(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	// Return newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func resolveReflogRefName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == headRef:
		return headRef, nil
	case !strings.HasPrefix(ref, "refs/"):
		ref = branchRefPrefix + ref
	}
	if err := validateRefName(ref); err != nil {
		return "", err
	}
	return ref, nil
}

func unzero(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}
