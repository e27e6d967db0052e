// Package config loads bom.toml and turns it into a ready backend.
//
// A config file is located by, in order: an explicit path (the --config
// flag), $BOM_CONFIG, and ./bom.toml. Without one, [Default] applies.
// Relative paths inside a file resolve against the file's directory.
//
//	[storage]
//	backend = "sqlite"
//	path = "data"
//
//	[snapshots]
//	backend = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "1h"
package config

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/rollup"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "bom.toml"
	// EnvVar names an explicit config file.
	EnvVar = "BOM_CONFIG"

	appName = "bom"
)

// Config is the decoded form of bom.toml.
type Config struct {
	Storage   StorageConfig  `toml:"storage"`
	Snapshots SnapshotConfig `toml:"snapshots"`
	Cache     CacheConfig    `toml:"cache"`
	Rollup    RollupConfig   `toml:"rollup"`
	Server    ServerConfig   `toml:"server"`
	Log       LogConfig      `toml:"log"`

	// Source is the file the config was read from, empty for defaults.
	Source string `toml:"-"`
}

// StorageConfig selects where parts and relationships live.
type StorageConfig struct {
	Backend string `toml:"backend" validate:"oneof=file sqlite memory"`
	// Path is a directory: bom.json or bom.db is created inside it.
	Path string `toml:"path" validate:"required_unless=Backend memory"`
}

// SnapshotConfig selects where snapshots live. An empty Path reuses the
// storage path.
type SnapshotConfig struct {
	Backend         string `toml:"backend" validate:"oneof=file sqlite mongo memory"`
	Path            string `toml:"path"`
	MongoURI        string `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// CacheConfig selects the rollup cache.
type CacheConfig struct {
	Backend       string   `toml:"backend" validate:"oneof=none file redis"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db" validate:"gte=0"`
	RedisPrefix   string   `toml:"redis_prefix"`
	TTL           Duration `toml:"ttl"`
}

// RollupConfig holds weight rollup defaults.
type RollupConfig struct {
	UnitWeightKey         string  `toml:"unit_weight_key" validate:"required"`
	MaturityFactorKey     string  `toml:"maturity_factor_key" validate:"required"`
	DefaultMaturityFactor float64 `toml:"default_maturity_factor" validate:"gt=0"`
	IncludeRoot           bool    `toml:"include_root"`
	TopN                  int     `toml:"top_n" validate:"gte=0"`
}

// ServerConfig configures bom serve.
type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

// LogConfig sets the default log level. --verbose overrides it.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Duration is a time.Duration written as a string ("90s", "1h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used without a config file: file
// storage under ./data, no cache.
func Default() Config {
	w := rollup.DefaultWeightOptions("")
	return Config{
		Storage:   StorageConfig{Backend: "file", Path: "data"},
		Snapshots: SnapshotConfig{Backend: "file", MongoDatabase: "bom", MongoCollection: "snapshots"},
		Cache:     CacheConfig{Backend: "none", RedisPrefix: "bom:", TTL: Duration{time.Hour}},
		Rollup: RollupConfig{
			UnitWeightKey:         w.UnitWeightKey,
			MaturityFactorKey:     w.MaturityFactorKey,
			DefaultMaturityFactor: w.DefaultMaturityFactor,
			IncludeRoot:           w.IncludeRoot,
			TopN:                  w.TopN,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Find returns the config file to use, or "" when none exists. An explicit
// path or $BOM_CONFIG must exist.
func Find(explicit string) (string, error) {
	for _, p := range []string{explicit, os.Getenv(EnvVar)} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "config file %s", p)
		}
		return p, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	return "", nil
}

// Resolve finds and loads the config, falling back to [Default].
func Resolve(explicit string) (Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// Load reads a config file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Source = path
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Storage.Path, &c.Snapshots.Path, &c.Cache.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// WeightOptions converts the rollup section.
func (c Config) WeightOptions() rollup.WeightOptions {
	return rollup.WeightOptions{
		UnitWeightKey:         c.Rollup.UnitWeightKey,
		MaturityFactorKey:     c.Rollup.MaturityFactorKey,
		DefaultMaturityFactor: c.Rollup.DefaultMaturityFactor,
		IncludeRoot:           c.Rollup.IncludeRoot,
		TopN:                  c.Rollup.TopN,
	}
}

// SnapshotPath returns the snapshot directory, defaulting to the storage path.
func (c Config) SnapshotPath() string {
	if c.Snapshots.Path != "" {
		return c.Snapshots.Path
	}
	return c.Storage.Path
}

// CacheDir returns the file cache directory: the configured dir or
// $XDG_CACHE_HOME/bom (~/.cache/bom).
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "locate cache directory")
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
