// Package config holds the process configuration of the ETL commands.
//
// Values are resolved in increasing precedence from built-in defaults, an
// optional YAML file, environment variables (optionally seeded from a .env
// file) and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAdminDSN    = "host=127.0.0.1 dbname=studentdb user=student password=student"
	DefaultTargetDSN   = "host=127.0.0.1 dbname=sparkifydb user=student password=student"
	DefaultSongDataDir = "data/song_data"
	DefaultLogDataDir  = "data/log_data"
	DefaultUserDedup   = "first"
	DefaultLogLevel    = "info"
)

// Environment variables.
const (
	EnvConfig       = "SPARKIFY_CONFIG"
	EnvAdminDSN     = "STUDENTDB_DSN"
	EnvTargetDSN    = "SPARKIFYDB_DSN"
	EnvSongDataDir  = "SPARKIFY_SONG_DATA"
	EnvLogDataDir   = "SPARKIFY_LOG_DATA"
	EnvUserDedup    = "SPARKIFY_USER_DEDUP"
	EnvLogLevel     = "SPARKIFY_LOG_LEVEL"
	EnvOTLPEndpoint = "SPARKIFY_OTLP_ENDPOINT"
)

// Validation errors.
var (
	ErrMissingDSN      = errors.New("missing database DSN")
	ErrMissingDataDir  = errors.New("missing data directory")
	ErrInvalidDedup    = errors.New("invalid user dedup policy")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config holds the settings of a run.
type Config struct {
	// AdminDSN connects to the bootstrap database used to (re)create the
	// target database.
	AdminDSN string `yaml:"admin_dsn"`
	// TargetDSN connects to the analytical database holding the star schema.
	TargetDSN string `yaml:"target_dsn"`

	SongDataDir string `yaml:"song_data"`
	LogDataDir  string `yaml:"log_data"`

	// UserDedup is "first" or "last": which occurrence of a user repeated
	// within one log file is written.
	UserDedup string `yaml:"user_dedup"`

	LogLevel string `yaml:"log_level"`

	// OTLPEndpoint (host:port) enables trace and metric export when set.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AdminDSN:    DefaultAdminDSN,
		TargetDSN:   DefaultTargetDSN,
		SongDataDir: DefaultSongDataDir,
		LogDataDir:  DefaultLogDataDir,
		UserDedup:   DefaultUserDedup,
		LogLevel:    DefaultLogLevel,
	}
}

type binding struct {
	flag  string
	env   string
	usage string
	field *string
}

func (c *Config) bindings() []binding {
	return []binding{
		{"admin-dsn", EnvAdminDSN, "bootstrap database DSN", &c.AdminDSN},
		{"dsn", EnvTargetDSN, "target database DSN", &c.TargetDSN},
		{"song-data", EnvSongDataDir, "root directory of song files", &c.SongDataDir},
		{"log-data", EnvLogDataDir, "root directory of log files", &c.LogDataDir},
		{"user-dedup", EnvUserDedup, "which repeated user row wins within a log file: first or last", &c.UserDedup},
		{"log-level", EnvLogLevel, "log level: debug, info, warn or error", &c.LogLevel},
		{"otlp-endpoint", EnvOTLPEndpoint, "OTLP/gRPC collector host:port; empty disables export", &c.OTLPEndpoint},
	}
}

// LoadFromArgs builds a Config from the YAML file named by -config (or
// SPARKIFY_CONFIG), then getenv, then the flags in args. Callers supply a
// private FlagSet and getenv to keep tests hermetic.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := Default()
	defaults := Default()

	configPath := fs.String("config", getenv(EnvConfig), "YAML config file")
	values := make(map[string]*string)
	for _, b := range defaults.bindings() {
		values[b.flag] = fs.String(b.flag, *b.field, b.usage+" (env "+b.env+")")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.mergeFile(*configPath); err != nil {
			return nil, err
		}
	}

	for _, b := range cfg.bindings() {
		if v := getenv(b.env); v != "" {
			*b.field = v
		}
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, b := range cfg.bindings() {
		if set[b.flag] {
			*b.field = *values[b.flag]
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds a Config for the named command from the process environment,
// a .env file in the working directory if present, and args.
func Load(name string, args []string) (*Config, error) {
	getenv, err := EnvWithDotEnv(".env", os.Getenv)
	if err != nil {
		return nil, err
	}
	return LoadFromArgs(flag.NewFlagSet(name, flag.ContinueOnError), getenv, args)
}

// EnvWithDotEnv returns a getenv that falls back to the variables of the
// dotenv file at path. A missing file is not an error.
func EnvWithDotEnv(path string, getenv func(string) string) (func(string) string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return getenv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return vars[key]
	}, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.TargetDSN == "" {
		return fmt.Errorf("%w: target", ErrMissingDSN)
	}
	if c.AdminDSN == "" {
		return fmt.Errorf("%w: admin", ErrMissingDSN)
	}
	if c.SongDataDir == "" {
		return fmt.Errorf("%w: song data", ErrMissingDataDir)
	}
	if c.LogDataDir == "" {
		return fmt.Errorf("%w: log data", ErrMissingDataDir)
	}
	switch strings.ToLower(c.UserDedup) {
	case "first", "last", "keep-first", "keep-last":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDedup, c.UserDedup)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return level, nil
}
