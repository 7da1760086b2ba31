package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odvcencio/rewind/pkg/repo"
)

// Settings keys. Each resolves, highest first, from a command-line flag, a
// REWIND_* environment variable (dots become underscores), the user config
// file, and finally the repository's own config.toml.
const (
	keyRepo          = "repo"
	keyVerbose       = "verbose"
	keyUserName      = "user.name"
	keySigningKey    = "user.signing_key"
	keyDefaultBranch = "core.default_branch"
	keyDiffFormat    = "diff.format"
	keyLogLimit      = "log.limit"
)

// settings is the layered CLI configuration shared by every command.
type settings struct {
	v       *viper.Viper
	cfgFile string
	log     *slog.Logger
}

func newSettings() *settings {
	v := viper.New()
	v.SetEnvPrefix("rewind")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyRepo, ".")
	v.SetDefault(keyDiffFormat, "text")
	v.SetDefault(keyLogLimit, 0)

	return &settings{v: v, log: slog.New(slog.DiscardHandler)}
}

func (s *settings) bindRootFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&s.cfgFile, "config", "", "user config file (default is $HOME/.config/rewind/config.toml)")
	flags.StringP(keyRepo, "C", ".", "run as if started in this directory")
	flags.BoolP(keyVerbose, "v", false, "log repository operations to stderr")
	_ = s.v.BindPFlag(keyRepo, flags.Lookup(keyRepo))
	_ = s.v.BindPFlag(keyVerbose, flags.Lookup(keyVerbose))
}

// bindFlag ties a command-local flag to a settings key.
func (s *settings) bindFlag(cmd *cobra.Command, key, flag string) {
	_ = s.v.BindPFlag(key, cmd.Flags().Lookup(flag))
}

// load reads the user config file, if any, and configures logging.
func (s *settings) load(stderr io.Writer) error {
	if s.cfgFile != "" {
		s.v.SetConfigFile(s.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		s.v.AddConfigPath(filepath.Join(home, ".config", "rewind"))
		s.v.SetConfigName("config")
		s.v.SetConfigType("toml")
	}
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(s.cfgFile == "" && errors.Is(err, os.ErrNotExist)) {
			return fmt.Errorf("read user config: %w", err)
		}
	}

	if s.v.GetBool(keyVerbose) {
		s.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return nil
}

func (s *settings) repoPath() string {
	return s.v.GetString(keyRepo)
}

func (s *settings) openRepo() (*repo.Repo, error) {
	return repo.Open(s.repoPath(), repo.WithLogger(s.log))
}

// layered returns the value of key from flags, environment or the user config
// file, falling back to the repository config.
func (s *settings) layered(r *repo.Repo, key string) string {
	if s.v.IsSet(key) {
		if v := strings.TrimSpace(s.v.GetString(key)); v != "" {
			return v
		}
	}
	if r == nil {
		return ""
	}
	v, err := r.GetConfig(key)
	if err != nil {
		return ""
	}
	return v
}

// author resolves the commit author, defaulting to $USER.
func (s *settings) author(r *repo.Repo) string {
	if name := s.layered(r, keyUserName); name != "" {
		return name
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
