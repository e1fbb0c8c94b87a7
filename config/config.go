package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

type StorageDriver = string

var (
	SQLite = StorageDriver("sqlite")
	Redis  = StorageDriver("redis")
	Memory = StorageDriver("memory")
)

const (
	baseCfgPath            = "rssreader/config.toml"
	defaultRefreshInterval = 30 * time.Minute
)

type Config struct {
	DefaultFeeds           []string          `toml:"default_feeds"`            // Feeds stamped as default and fetched on first refresh
	RefreshIntervalMinutes int               `toml:"refresh_interval_minutes"` // Background refresh period for -watch
	Storage                StorageConfig     `toml:"storage"`
	Log                    LogConfig         `toml:"log"`
	Filters                map[string]Filter `toml:"filters"` // Named filters applied when listing posts
}

// StorageConfig selects the durable backend of the feed store
type StorageConfig struct {
	Driver       StorageDriver `toml:"driver"`        // sqlite, redis or memory
	DatabasePath string        `toml:"database_path"` // sqlite only
	RedisAddr    string        `toml:"redis_addr"`
	RedisDB      int           `toml:"redis_db"`
	Key          string        `toml:"key"` // Key holding the feed snapshot (defaults to key_feed_cache)
}

type LogConfig struct {
	Level      string `toml:"level"` // debug, info, warn or error
	File       string `toml:"file"`  // Empty logs to stderr only
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
}

// Filter holds the rules of one named post filter, zero values disable a rule
type Filter struct {
	ExcludeTitle         []string `toml:"exclude_title"`          // Regexes matched against the post title
	ExcludeDescription   []string `toml:"exclude_description"`    // Regexes matched against the cleaned description
	MinTitleWords        int      `toml:"min_title_words"`
	MinDescriptionLength int      `toml:"min_description_length"` // Characters, descriptions are cut at 300
	RequireLink          bool     `toml:"require_link"`
	RequireImage         bool     `toml:"require_image"`
	MaxAgeHours          int      `toml:"max_age_hours"` // Older posts are dropped
}

// Settings returns the default feed set described by the config
func (c Config) Settings() Settings {
	return NewSettings(c.DefaultFeeds)
}

// RefreshInterval returns the background refresh period (defaults to 30 minutes if not set)
func (c Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalMinutes <= 0 {
		return defaultRefreshInterval
	}
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	return nil
}

func Default() Config {
	var dbBase = path.Join(os.Getenv("HOME"), ".local/share/rssreader")
	return Config{
		DefaultFeeds:           []string{},
		RefreshIntervalMinutes: int(defaultRefreshInterval / time.Minute),
		Storage: StorageConfig{
			Driver:       SQLite,
			DatabasePath: path.Join(dbBase, "feeds.db"),
			RedisAddr:    "localhost:6379",
		},
		Log: LogConfig{
			Level: "info",
		},
		Filters: map[string]Filter{},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config fie")
}
