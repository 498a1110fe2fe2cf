package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"marketwatch/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies the harvester to the public price feed
	DefaultUserAgent = "marketwatch/1.0 (+https://www.albion-online-data.com)"

	DefaultFeedURL   = "https://%s.albion-online-data.com"
	DefaultRenderURL = "https://render.albiononline.com/v1/item"
)

// Config holds every application setting.
// Values come from the YAML file first; environment variables (and an optional
// .env file) override them afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		BaseURL    string `yaml:"base_url"` // %s is replaced by the region prefix
		TimeoutSec int    `yaml:"timeout_sec"`
		ChunkSize  int    `yaml:"chunk_size"`
		UserAgent  string `yaml:"user_agent"`
	} `yaml:"feed"`

	Cache struct {
		RefreshIntervalSec int      `yaml:"refresh_interval_sec"`
		Regions            []string `yaml:"regions"`
		Categories         []string `yaml:"categories"`
		MaxParallelChunks  int      `yaml:"max_parallel_chunks"`
	} `yaml:"cache"`

	Crafting struct {
		PremiumTax        decimal.Decimal `yaml:"premium_tax"`
		NonPremiumTax     decimal.Decimal `yaml:"non_premium_tax"`
		DefaultReturnRate decimal.Decimal `yaml:"default_return_rate"`
		BonusReturnRate   decimal.Decimal `yaml:"bonus_return_rate"`
	} `yaml:"crafting"`

	Catalog struct {
		Path     string `yaml:"path"`
		SeedFile string `yaml:"seed_file"`
	} `yaml:"catalog"`

	Icons struct {
		Enabled   bool   `yaml:"enabled"`
		RenderURL string `yaml:"render_url"`
		Dir       string `yaml:"dir"`
		Size      int    `yaml:"size"`
	} `yaml:"icons"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Gold struct {
		PollIntervalSec int                `yaml:"poll_interval_sec"`
		Count           int                `yaml:"count"`
		Alerts          []GoldAlertSetting `yaml:"alerts"`
	} `yaml:"gold"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// GoldAlertSetting is one configured gold price target.
type GoldAlertSetting struct {
	Region     string `yaml:"region"`
	Target     int64  `yaml:"target"`
	Persistent bool   `yaml:"persistent"`
}

// envOverrides lists the settings that may come from the environment.
type envOverrides struct {
	FeedBaseURL        string   `env:"MARKETWATCH_FEED_BASE_URL"`
	FeedTimeoutSec     int      `env:"MARKETWATCH_FEED_TIMEOUT_SEC"`
	RefreshIntervalSec int      `env:"MARKETWATCH_REFRESH_INTERVAL_SEC"`
	Regions            []string `env:"MARKETWATCH_REGIONS" envSeparator:","`
	CatalogPath        string   `env:"MARKETWATCH_CATALOG_PATH"`
	HTTPAddr           string   `env:"MARKETWATCH_HTTP_ADDR"`
	LogLevel           string   `env:"MARKETWATCH_LOG_LEVEL"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "file", Err: err}
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig parses YAML bytes, applies defaults and environment overrides
// and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	cfg.applyDefaults()

	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "marketwatch"
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = DefaultFeedURL
	}
	if c.Feed.TimeoutSec == 0 {
		c.Feed.TimeoutSec = 5
	}
	if c.Feed.ChunkSize == 0 {
		c.Feed.ChunkSize = 64
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = DefaultUserAgent
	}
	if c.Cache.RefreshIntervalSec == 0 {
		c.Cache.RefreshIntervalSec = 600
	}
	if len(c.Cache.Regions) == 0 {
		c.Cache.Regions = []string{"west", "europe", "east"}
	}
	if len(c.Cache.Categories) == 0 {
		c.Cache.Categories = []string{
			domain.CategoryArmor, domain.CategoryMainhand, domain.CategoryOffhand,
			domain.CategoryMounts, domain.CategoryArtefacts, domain.CategoryResources,
		}
	}
	if c.Crafting.PremiumTax.IsZero() {
		c.Crafting.PremiumTax = decimal.NewFromInt(4)
	}
	if c.Crafting.NonPremiumTax.IsZero() {
		c.Crafting.NonPremiumTax = decimal.NewFromInt(8)
	}
	if c.Crafting.DefaultReturnRate.IsZero() {
		c.Crafting.DefaultReturnRate = decimal.NewFromInt(15)
	}
	if c.Crafting.BonusReturnRate.IsZero() {
		c.Crafting.BonusReturnRate = decimal.NewFromInt(28)
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/items.db"
	}
	if c.Icons.RenderURL == "" {
		c.Icons.RenderURL = DefaultRenderURL
	}
	if c.Icons.Dir == "" {
		c.Icons.Dir = "data/icons"
	}
	if c.Icons.Size == 0 {
		c.Icons.Size = 64
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "localhost:8080"
	}
	if c.Gold.PollIntervalSec == 0 {
		c.Gold.PollIntervalSec = 300
	}
	if c.Gold.Count == 0 {
		c.Gold.Count = 3
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Feed.BaseURL, "http://") && !strings.HasPrefix(c.Feed.BaseURL, "https://") {
		return &domain.ConfigError{Field: "feed.base_url", Err: fmt.Errorf("invalid URL: %s", c.Feed.BaseURL)}
	}
	if c.Feed.TimeoutSec <= 0 {
		return &domain.ConfigError{Field: "feed.timeout_sec", Err: errors.New("must be positive")}
	}
	if c.Feed.ChunkSize <= 0 {
		return &domain.ConfigError{Field: "feed.chunk_size", Err: errors.New("must be positive")}
	}
	if c.Cache.RefreshIntervalSec <= 0 {
		return &domain.ConfigError{Field: "cache.refresh_interval_sec", Err: errors.New("must be positive")}
	}
	if _, err := c.RegionList(); err != nil {
		return err
	}
	if c.Crafting.PremiumTax.IsNegative() || c.Crafting.NonPremiumTax.IsNegative() {
		return &domain.ConfigError{Field: "crafting", Err: errors.New("tax rates cannot be negative")}
	}
	if c.Gold.Count <= 0 {
		return &domain.ConfigError{Field: "gold.count", Err: errors.New("must be positive")}
	}
	for _, a := range c.Gold.Alerts {
		if _, ok := domain.ParseRegion(a.Region); !ok {
			return &domain.ConfigError{Field: "gold.alerts", Err: fmt.Errorf("%w: %s", domain.ErrInvalidRegion, a.Region)}
		}
		if a.Target <= 0 {
			return &domain.ConfigError{Field: "gold.alerts", Err: errors.New("target must be positive")}
		}
	}
	return nil
}

// RegionList resolves the configured region names.
func (c *Config) RegionList() ([]domain.Region, error) {
	regions := make([]domain.Region, 0, len(c.Cache.Regions))
	seen := make(map[domain.Region]bool)
	for _, name := range c.Cache.Regions {
		r, ok := domain.ParseRegion(name)
		if !ok {
			return nil, &domain.ConfigError{Field: "cache.regions", Err: fmt.Errorf("%w: %s", domain.ErrInvalidRegion, name)}
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		regions = append(regions, r)
	}
	if len(regions) == 0 {
		return nil, &domain.ConfigError{Field: "cache.regions", Err: errors.New("at least one region is required")}
	}
	return regions, nil
}

// FeedTimeout returns the per-request timeout of the price feed.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSec) * time.Second
}

// RefreshInterval returns the pause between two cache refresh cycles.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Cache.RefreshIntervalSec) * time.Second
}

// GoldPollInterval returns the gold watcher polling period.
func (c *Config) GoldPollInterval() time.Duration {
	return time.Duration(c.Gold.PollIntervalSec) * time.Second
}

// overrideWithEnv loads .env (if present) and lets environment variables win.
func overrideWithEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.ConfigError{Field: ".env", Err: err}
	}

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return &domain.ConfigError{Field: "env", Err: err}
	}

	if o.FeedBaseURL != "" {
		cfg.Feed.BaseURL = o.FeedBaseURL
	}
	if o.FeedTimeoutSec > 0 {
		cfg.Feed.TimeoutSec = o.FeedTimeoutSec
	}
	if o.RefreshIntervalSec > 0 {
		cfg.Cache.RefreshIntervalSec = o.RefreshIntervalSec
	}
	if len(o.Regions) > 0 {
		cfg.Cache.Regions = o.Regions
	}
	if o.CatalogPath != "" {
		cfg.Catalog.Path = o.CatalogPath
	}
	if o.HTTPAddr != "" {
		cfg.HTTP.Addr = o.HTTPAddr
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return nil
}
