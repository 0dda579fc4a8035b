// Package config provides functionality for managing configuration options
// for the application using command-line flags, a config file and
// environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/atinyakov/TimeKeeper/internal/client/storage"
)

// Remote store kinds.
const (
	RemotePostgREST = "postgrest"
	RemotePostgres  = "postgres"
	RemoteMemory    = "memory"
)

// DefaultConfigFile is read when no config path is given and it exists.
const DefaultConfigFile = "timekeeper.yaml"

// Options holds the configuration values for the application.
type Options struct {
	// Addr is the local API listening address (ip:port).
	Addr string `yaml:"addr" env:"SERVER_ADDRESS" env-default:"localhost:8080"`

	// CachePath is the local cache file. Empty means the user config dir.
	CachePath string `yaml:"cache_path" env:"CACHE_PATH"`

	// Remote selects the remote store: postgrest, postgres or memory.
	Remote string `yaml:"remote" env:"REMOTE" env-default:"postgrest"`

	// RemoteURL is the Supabase project URL.
	RemoteURL string `yaml:"remote_url" env:"SUPABASE_URL"`
	// APIKey is the Supabase anon key.
	APIKey string `yaml:"api_key" env:"SUPABASE_ANON_KEY"`
	// AccessToken is the signed-in user's session token.
	AccessToken string `yaml:"access_token" env:"SUPABASE_ACCESS_TOKEN"`

	// DatabaseDSN holds the database connection string for the postgres remote.
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN"`

	// UserID is the owner identity. It wins over a cached or remote one.
	UserID string `yaml:"user_id" env:"USER_ID"`

	ProbeInterval  time.Duration `yaml:"probe_interval" env:"PROBE_INTERVAL" env-default:"15s"`
	SyncInterval   time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL" env-default:"1m"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"10s"`

	// Timezone names the location that defines calendar days.
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// APIToken, when set, is required as a bearer token by the local API.
	APIToken string `yaml:"api_token" env:"API_TOKEN"`

	// Config is the path to the config file.
	Config string `yaml:"-"`
}

// Parse builds Options from args (without the program name). Values are
// layered: env-default tags, then flags, then the config file, then the
// environment.
func Parse(args []string) (*Options, error) {
	opts := &Options{}

	fs := flag.NewFlagSet("timekeeper", flag.ContinueOnError)
	fs.StringVar(&opts.Addr, "a", "", "run on ip:port server (default localhost:8080)")
	fs.StringVar(&opts.CachePath, "cache", "", "path to the local cache file")
	fs.StringVar(&opts.Remote, "remote", "", "remote store: postgrest, postgres or memory (default postgrest)")
	fs.StringVar(&opts.RemoteURL, "url", "", "Supabase project URL")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.UserID, "user", "", "owner user id")
	fs.DurationVar(&opts.ProbeInterval, "probe", 0, "connectivity probe interval (default 15s)")
	fs.DurationVar(&opts.SyncInterval, "sync", 0, "periodic sync interval (default 1m)")
	fs.StringVar(&opts.Timezone, "tz", "", "time zone of calendar days (default Local)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level (default info)")
	fs.StringVar(&opts.Config, "config", "", "path to config file")
	fs.StringVar(&opts.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	explicit := opts.Config != ""
	if !explicit {
		opts.Config = DefaultConfigFile
	}

	if _, err := os.Stat(opts.Config); err == nil {
		if err := cleanenv.ReadConfig(opts.Config, opts); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.Config, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", opts.Config, err)
	} else if err := cleanenv.ReadEnv(opts); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if opts.CachePath == "" {
		opts.CachePath = DefaultCachePath()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks option consistency.
func (o *Options) Validate() error {
	switch o.Remote {
	case RemotePostgREST:
		if o.RemoteURL == "" {
			return errors.New("remote postgrest requires SUPABASE_URL")
		}
		if o.APIKey == "" {
			return errors.New("remote postgrest requires SUPABASE_ANON_KEY")
		}
	case RemotePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("remote postgres requires a database DSN")
		}
		if o.UserID == "" {
			return errors.New("remote postgres requires a user id")
		}
	case RemoteMemory:
	default:
		return fmt.Errorf("unknown remote %q", o.Remote)
	}

	for name, d := range map[string]time.Duration{
		"probe interval":  o.ProbeInterval,
		"sync interval":   o.SyncInterval,
		"request timeout": o.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if _, err := time.LoadLocation(o.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", o.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone, falling back to time.Local.
func (o *Options) Location() *time.Location {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultCachePath returns the cache file under the user config directory,
// or in the working directory when that is unknown.
func DefaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return storage.DefaultFile
	}
	return filepath.Join(dir, "timekeeper", storage.DefaultFile)
}
