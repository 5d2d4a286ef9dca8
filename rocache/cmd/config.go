package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/rocache/logging"
	"github.com/sarchlab/rocache/mem/cache"
)

// Environment variables that override the configuration file.
const (
	EnvRedisAddr = "ROCACHE_REDIS_ADDR"
	EnvRedisKey  = "ROCACHE_REDIS_KEY"
	EnvRecord    = "ROCACHE_RECORD"
)

// PatternIdentity is a memory whose byte at each address is the low byte of
// the address.
const PatternIdentity = "identity"

// Config is the configuration of a run.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Memory  MemoryConfig  `yaml:"memory"`
	Record  string        `yaml:"record"`
	Verify  bool          `yaml:"verify"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

// CacheConfig describes the geometry of the cache.
type CacheConfig struct {
	Name      string `yaml:"name"`
	Blocks    int    `yaml:"blocks"`
	BlockSize int    `yaml:"block_size"`
	Ways      int    `yaml:"ways"`
	Policy    string `yaml:"policy"`
}

// MemoryConfig selects the memory behind the cache. An image is loaded into
// Redis if a Redis address is also given.
type MemoryConfig struct {
	Image   string      `yaml:"image"`
	Pattern string      `yaml:"pattern"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig locates a memory image stored as a Redis string.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}

// MonitorConfig controls the monitoring server.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	Hold        bool `yaml:"hold"`
	OpenBrowser bool `yaml:"open_browser"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Name:      "Cache",
			Blocks:    256,
			BlockSize: 64,
			Ways:      4,
			Policy:    cache.ReplacePolicyAge,
		},
		Memory: MemoryConfig{
			Redis: RedisConfig{Key: "rocache:memory"},
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults. An empty
// path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadEnvFile loads the variables of a .env file into the environment. A
// missing file is not an error. Variables that are already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// ApplyEnv overrides the configuration with the environment variables that
// lookup finds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Memory.Redis.Addr = v
	}

	if v, ok := lookup(EnvRedisKey); ok && v != "" {
		c.Memory.Redis.Key = v
	}

	if v, ok := lookup(EnvRecord); ok && v != "" {
		c.Record = v
	}
}

// Validate checks the parts of the configuration that the cache builder does
// not check.
func (c Config) Validate() error {
	hasImage := c.Memory.Image != ""
	hasPattern := c.Memory.Pattern != ""
	hasRedis := c.Memory.Redis.Addr != ""

	switch {
	case !hasImage && !hasPattern && !hasRedis:
		return errors.New("no memory specified, use --image, --pattern, " +
			"or --redis-addr")
	case hasPattern && (hasImage || hasRedis):
		return errors.New("--pattern cannot be combined with other memories")
	case hasPattern && c.Memory.Pattern != PatternIdentity:
		return fmt.Errorf("unknown memory pattern %q", c.Memory.Pattern)
	case hasRedis && c.Memory.Redis.Key == "":
		return errors.New("redis key must not be empty")
	}

	if c.Monitor.Hold && !c.Monitor.Enabled {
		return errors.New("--hold requires --monitor")
	}

	return nil
}

func (c Config) cacheBuilder() cache.Builder {
	return cache.MakeBuilder().
		WithNumBlocks(c.Cache.Blocks).
		WithBytesPerBlock(c.Cache.BlockSize).
		WithWayAssociativity(c.Cache.Ways).
		WithReplacePolicy(c.Cache.Policy)
}
