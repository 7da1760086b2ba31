package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// Init creates a new repository at path. It creates the .rewind/ directory
// structure (HEAD, config.toml, objects/, refs/heads/, logs/) and assigns the
// repository a fresh id. Returns ErrAlreadyInitialized if .rewind/ exists.
func Init(path string, opts ...Option) (*Repo, error) {
	o := buildOptions(opts)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	dir := filepath.Join(abs, DirName)

	if _, err := o.fs.Stat(dir); err == nil {
		return nil, fmt.Errorf("init %s: %w", dir, ErrAlreadyInitialized)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, &object.StorageError{Op: "stat", Path: dir, Err: err}
	}

	if err := validateBranchName(o.defaultBranch); err != nil {
		return nil, fmt.Errorf("init: default branch: %w", err)
	}

	dirs := []string{
		filepath.Join(dir, "objects"),
		filepath.Join(dir, "refs", "heads"),
		filepath.Join(dir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := o.fs.MkdirAll(d, 0o755); err != nil {
			return nil, &object.StorageError{Op: "mkdir", Path: d, Err: err}
		}
	}

	cfg := &Config{Core: CoreConfig{
		ID:            uuid.NewString(),
		DefaultBranch: o.defaultBranch,
		Compression:   CompressionZstd,
	}}
	if err := writeConfigFile(o.fs, dir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	headPath := filepath.Join(dir, "HEAD")
	head := []byte(symbolicRefPrefix + branchRefPrefix + o.defaultBranch + "\n")
	if err := writeFileAtomic(o.fs, headPath, head, 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := newRepo(abs, dir, cfg, o)
	r.logger.Info("repository initialized", "op", "init", "root", abs, "branch", o.defaultBranch)
	return r, nil
}

// Open searches upward from path for a .rewind/ directory and opens the
// repository. Returns ErrNotRepository if none is found.
func Open(path string, opts ...Option) (*Repo, error) {
	o := buildOptions(opts)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := o.fs.Stat(dir)
		if err == nil && info.IsDir() {
			cfg, unknown, err := readConfigFile(o.fs, dir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			r := newRepo(cur, dir, cfg, o)
			if len(unknown) > 0 {
				r.logger.Warn("ignoring unknown config keys", "keys", unknown)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w (or any parent up to /)", abs, ErrNotRepository)
		}
		cur = parent
	}
}

func newRepo(root, dir string, cfg *Config, o options) *Repo {
	logger := o.logger
	if cfg.Core.ID != "" {
		logger = logger.With("repo_id", cfg.Core.ID)
	}
	return &Repo{
		RootDir: root,
		Dir:     dir,
		Store:   newObjectStore(o.fs, dir, cfg),
		fs:      o.fs,
		logger:  logger,
		config:  cfg,
	}
}

func newObjectStore(fsys afero.Fs, dir string, cfg *Config) *object.Store {
	return object.NewStore(dir, object.WithFs(fsys), object.WithCompression(cfg.Compress()))
}
