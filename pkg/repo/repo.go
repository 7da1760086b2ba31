package repo

import (
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

// DirName is the metadata directory kept at the working-tree root.
const DirName = ".rewind"

// DefaultBranch is the branch HEAD points at after Init unless configured
// otherwise.
const DefaultBranch = "main"

// Repo represents an opened rewind repository.
//
// All mutating operations take the write lock. Readers take the read lock
// only while resolving their starting point; stored objects are immutable.
type Repo struct {
	RootDir string        // working directory root
	Dir     string        // .rewind/ directory
	Store   *object.Store // content-addressed object store

	fs     afero.Fs
	logger *slog.Logger
	config *Config

	mu sync.RWMutex
}

// Option configures Init and Open.
type Option func(*options)

type options struct {
	fs            afero.Fs
	logger        *slog.Logger
	defaultBranch string
}

// WithFs backs the repository (working tree and object store) with fsys.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLogger sets the logger used for mutation events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultBranch overrides the initial branch name used by Init.
func WithDefaultBranch(name string) Option {
	return func(o *options) { o.defaultBranch = name }
}

func buildOptions(opts []Option) options {
	o := options{
		fs:            afero.NewOsFs(),
		logger:        slog.New(slog.DiscardHandler),
		defaultBranch: DefaultBranch,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fs returns the filesystem the repository operates on.
func (r *Repo) Fs() afero.Fs {
	return r.fs
}

// ID returns the repository identifier assigned at init.
func (r *Repo) ID() string {
	if r.config == nil {
		return ""
	}
	return r.config.Core.ID
}
