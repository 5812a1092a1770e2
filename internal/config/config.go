package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CARBON_NEWS_GNEWS_API_KEY.
const EnvPrefix = "CARBON"

// Config holds the settings of both dashboard views and the process around them.
type Config struct {
	LogLevel    string         `mapstructure:"log_level"`
	HTTPTimeout time.Duration  `mapstructure:"http_timeout"`
	Server      ServerConfig   `mapstructure:"server"`
	Catalog     CatalogConfig  `mapstructure:"catalog"`
	News        NewsConfig     `mapstructure:"news"`
	Database    DatabaseConfig `mapstructure:"database"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// CatalogConfig describes the two project registries.
type CatalogConfig struct {
	PrimaryURL        string  `mapstructure:"primary_url"`
	SecondaryURL      string  `mapstructure:"secondary_url"`
	ProjectType       string  `mapstructure:"project_type"`
	SecondaryPageSize int     `mapstructure:"secondary_page_size"`
	SecondaryStatus   string  `mapstructure:"secondary_status"`
	PriceMin          float64 `mapstructure:"price_min"`
	PriceMax          float64 `mapstructure:"price_max"`
}

// NewsConfig describes the three news sources and the refresh loop.
type NewsConfig struct {
	Query           string         `mapstructure:"query"`
	NewsData        NewsDataConfig `mapstructure:"newsdata"`
	GNews           GNewsConfig    `mapstructure:"gnews"`
	CuratedDelay    time.Duration  `mapstructure:"curated_delay"`
	RefreshInterval time.Duration  `mapstructure:"refresh_interval"`
	AutoRefresh     bool           `mapstructure:"auto_refresh"`
}

type NewsDataConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	Category string `mapstructure:"category"`
}

type GNewsConfig struct {
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	Max      int    `mapstructure:"max"`
}

// DatabaseConfig enables the article archive when DSN is set.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", "10s")

	v.SetDefault("server.address", ":8080")

	v.SetDefault("catalog.primary_url", "https://registry.verra.org/uiapi/resource/resourceSummary")
	v.SetDefault("catalog.secondary_url", "https://public-api.goldstandard.org/projects")
	v.SetDefault("catalog.project_type", "Agriculture Forestry and Other Land Use")
	v.SetDefault("catalog.secondary_page_size", 9)
	v.SetDefault("catalog.secondary_status", "GOLD_STANDARD_CERTIFIED_PROJECT")
	v.SetDefault("catalog.price_min", 10.0)
	v.SetDefault("catalog.price_max", 25.0)

	v.SetDefault("news.query", "carbon credits")
	v.SetDefault("news.newsdata.url", "https://newsdata.io/api/1/news")
	v.SetDefault("news.newsdata.api_key", "")
	v.SetDefault("news.newsdata.language", "en")
	v.SetDefault("news.newsdata.category", "business,environment")
	v.SetDefault("news.gnews.url", "https://gnews.io/api/v4/search")
	v.SetDefault("news.gnews.api_key", "")
	v.SetDefault("news.gnews.language", "en")
	v.SetDefault("news.gnews.max", 10)
	v.SetDefault("news.curated_delay", "1s")
	v.SetDefault("news.refresh_interval", "5m")
	v.SetDefault("news.auto_refresh", true)

	v.SetDefault("database.dsn", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "carbon-dashboard")
}

// NewViper returns a viper instance with defaults and CARBON_* env overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the JSON file at path on top of the defaults. An empty
// path loads defaults and environment overrides only.
func LoadConfig(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith is LoadConfig on a caller-supplied viper, e.g. one with CLI flags bound.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks intervals, page sizes, the simulated price range and every upstream URL.
func (cfg *Config) Validate() error {
	if cfg.News.RefreshInterval < 5*time.Second {
		return errors.New("refresh interval must be ≥ 5 seconds")
	}
	if cfg.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	if cfg.Catalog.SecondaryPageSize < 1 || cfg.Catalog.SecondaryPageSize > 50 {
		return fmt.Errorf("secondary page size must be within 1..50, got %d", cfg.Catalog.SecondaryPageSize)
	}
	if cfg.Catalog.PriceMin < 0 || cfg.Catalog.PriceMin >= cfg.Catalog.PriceMax {
		return fmt.Errorf("invalid price range [%v, %v]", cfg.Catalog.PriceMin, cfg.Catalog.PriceMax)
	}
	if cfg.News.GNews.Max < 1 {
		return errors.New("gnews max must be positive")
	}
	if strings.TrimSpace(cfg.News.Query) == "" {
		return errors.New("news query must not be empty")
	}
	for _, u := range []string{
		cfg.Catalog.PrimaryURL,
		cfg.Catalog.SecondaryURL,
		cfg.News.NewsData.URL,
		cfg.News.GNews.URL,
	} {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid upstream URL: %s", u)
		}
	}
	return nil
}
