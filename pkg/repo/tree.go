package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/rewind/pkg/diff"
	"github.com/odvcencio/rewind/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
	Mode     string
}

// treeNode is one directory while a tree is being assembled.
type treeNode struct {
	files map[string]TreeFileEntry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: make(map[string]TreeFileEntry), dirs: make(map[string]*treeNode)}
}

// BuildTree overlays the staging entries on HEAD's tree and writes the
// resulting nested tree objects, returning the root hash. Added and Modified
// entries replace the HEAD version; Deleted entries remove it. The result
// depends only on the final set of paths, never on staging order.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	base, err := r.headFiles()
	if err != nil {
		return "", fmt.Errorf("build tree: %w", err)
	}
	return r.buildTree(base, s)
}

func (r *Repo) buildTree(base map[string]TreeFileEntry, s *Staging) (object.Hash, error) {
	files := overlayStaging(base, s)

	root := newTreeNode()
	for _, f := range files {
		if err := root.insert(f); err != nil {
			return "", fmt.Errorf("build tree: %w", err)
		}
	}
	return r.writeTreeNode(root, "")
}

// overlayStaging returns a copy of base with s applied.
func overlayStaging(base map[string]TreeFileEntry, s *Staging) map[string]TreeFileEntry {
	files := make(map[string]TreeFileEntry, len(base))
	for p, f := range base {
		files[p] = f
	}
	if s == nil {
		return files
	}
	for p, e := range s.Entries {
		switch e.State {
		case diff.Added, diff.Modified:
			files[p] = TreeFileEntry{Path: p, BlobHash: e.BlobHash, Mode: normalizeFileMode(e.Mode)}
		case diff.Deleted:
			delete(files, p)
		}
	}
	return files
}

func (n *treeNode) insert(f TreeFileEntry) error {
	parts := strings.Split(f.Path, "/")
	cur := n
	for i, part := range parts[:len(parts)-1] {
		if _, isFile := cur.files[part]; isFile {
			return fmt.Errorf("%w: %q is both a file and a directory", ErrInvalidPath, strings.Join(parts[:i+1], "/"))
		}
		next, ok := cur.dirs[part]
		if !ok {
			next = newTreeNode()
			cur.dirs[part] = next
		}
		cur = next
	}
	name := parts[len(parts)-1]
	if _, isDir := cur.dirs[name]; isDir {
		return fmt.Errorf("%w: %q is both a file and a directory", ErrInvalidPath, f.Path)
	}
	cur.files[name] = f
	return nil
}

// writeTreeNode writes subtrees bottom-up and returns the hash of n.
func (r *Repo) writeTreeNode(n *treeNode, prefix string) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, f := range n.files {
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: normalizeFileMode(f.Mode),
			Hash: f.BlobHash,
		})
	}
	for name, child := range n.dirs {
		childPrefix := path.Join(prefix, name)
		h, err := r.writeTreeNode(child, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes), sorted by path.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	files, err := r.flattenTree(h)
	if err != nil {
		return nil, err
	}
	out := make([]TreeFileEntry, 0, len(files))
	for _, f := range files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *Repo) flattenTree(h object.Hash) (map[string]TreeFileEntry, error) {
	files := make(map[string]TreeFileEntry)
	if err := r.flattenTreeRec(h, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string, out map[string]TreeFileEntry) error {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, entry := range treeObj.Entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			if err := r.flattenTreeRec(entry.Hash, fullPath, out); err != nil {
				return err
			}
			continue
		}
		out[fullPath] = TreeFileEntry{Path: fullPath, BlobHash: entry.Hash, Mode: entry.Mode}
	}
	return nil
}

// commitFiles flattens the tree of commit h.
func (r *Repo) commitFiles(h object.Hash) (map[string]TreeFileEntry, error) {
	c, err := r.readCommit(h)
	if err != nil {
		return nil, err
	}
	return r.flattenTree(c.TreeHash)
}

// headFiles flattens HEAD's tree. An unborn HEAD has no files.
func (r *Repo) headFiles() (map[string]TreeFileEntry, error) {
	hs, err := r.readHead()
	if err != nil {
		return nil, err
	}
	if hs.Hash == "" {
		return map[string]TreeFileEntry{}, nil
	}
	files, err := r.commitFiles(hs.Hash)
	if err != nil {
		return nil, fmt.Errorf("HEAD tree: %w", err)
	}
	return files, nil
}

// validateRepoPath checks that p is a clean slash-separated path inside the
// working tree and outside the metadata directory.
func validateRepoPath(p string) error {
	if p == "" || p == "." {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") || strings.ContainsRune(p, 0) || strings.ContainsAny(p, "\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	if first, _, _ := strings.Cut(p, "/"); first == DirName {
		return fmt.Errorf("%w: %q is inside %s", ErrInvalidPath, p, DirName)
	}
	return nil
}
