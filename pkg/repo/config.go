package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/odvcencio/rewind/pkg/object"
)

const (
	CompressionZstd = "zstd"
	CompressionNone = "none"
)

// Config is the repository-local configuration stored in
// .rewind/config.toml.
type Config struct {
	Core CoreConfig `toml:"core"`
	User UserConfig `toml:"user"`
}

type CoreConfig struct {
	ID            string `toml:"id"`
	DefaultBranch string `toml:"default_branch,omitempty"`
	Compression   string `toml:"compression,omitempty"`
}

type UserConfig struct {
	Name       string `toml:"name,omitempty"`
	SigningKey string `toml:"signing_key,omitempty"`
}

// Compress reports whether newly written objects are zstd-compressed.
func (c *Config) Compress() bool {
	return c.Core.Compression != CompressionNone
}

func configPath(dir string) string {
	return filepath.Join(dir, "config.toml")
}

func readConfigFile(fsys afero.Fs, dir string) (*Config, []string, error) {
	path := configPath(dir)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil, nil
		}
		return nil, nil, &object.StorageError{Op: "read", Path: path, Err: err}
	}
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: decode %s: %w", path, err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	return &cfg, unknown, nil
}

func writeConfigFile(fsys afero.Fs, dir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(fsys, configPath(dir), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Config returns a copy of the loaded repository configuration.
func (r *Repo) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.config == nil {
		return Config{}
	}
	return *r.config
}

type configKey struct {
	get      func(*Config) string
	set      func(*Config, string) error
	readOnly bool
}

var configKeys = map[string]configKey{
	"core.id": {
		get:      func(c *Config) string { return c.Core.ID },
		readOnly: true,
	},
	"core.default_branch": {
		get: func(c *Config) string { return c.Core.DefaultBranch },
		set: func(c *Config, v string) error {
			if err := validateBranchName(v); err != nil {
				return err
			}
			c.Core.DefaultBranch = v
			return nil
		},
	},
	"core.compression": {
		get: func(c *Config) string {
			if c.Core.Compression == "" {
				return CompressionZstd
			}
			return c.Core.Compression
		},
		set: func(c *Config, v string) error {
			switch v {
			case CompressionZstd, CompressionNone:
				c.Core.Compression = v
				return nil
			default:
				return fmt.Errorf("compression must be %q or %q", CompressionZstd, CompressionNone)
			}
		},
	},
	"user.name": {
		get: func(c *Config) string { return c.User.Name },
		set: func(c *Config, v string) error { c.User.Name = v; return nil },
	},
	"user.signing_key": {
		get: func(c *Config) string { return c.User.SigningKey },
		set: func(c *Config, v string) error { c.User.SigningKey = v; return nil },
	},
}

// ConfigKeys lists the supported configuration keys, sorted.
func ConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetConfig returns the value stored under a dotted key such as "user.name".
func (r *Repo) GetConfig(key string) (string, error) {
	k, ok := configKeys[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("get config: unknown key %q", key)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return k.get(r.config), nil
}

// SetConfig updates a dotted key and persists the configuration.
func (r *Repo) SetConfig(key, value string) error {
	key = strings.TrimSpace(key)
	k, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("set config: unknown key %q", key)
	}
	if k.readOnly {
		return fmt.Errorf("set config: key %q is read-only", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := *r.config
	if err := k.set(&next, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	if err := writeConfigFile(r.fs, r.Dir, &next); err != nil {
		return err
	}
	r.config = &next
	if key == "core.compression" {
		r.Store = newObjectStore(r.fs, r.Dir, &next)
	}
	r.logger.Info("config updated", "op", "config", "key", key)
	return nil
}
