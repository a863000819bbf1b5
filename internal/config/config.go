// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/legal-notice-harvester/internal/sites"
)

// EnvPrefix prefixes every environment override, e.g. HARVEST_SERVER_PORT.
const EnvPrefix = "HARVEST"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Fetch     FetchConfig           `mapstructure:"fetch"`
	Crawl     CrawlConfig           `mapstructure:"crawl"`
	Retry     RetryConfig           `mapstructure:"retry"`
	Scheduler SchedulerConfig       `mapstructure:"scheduler"`
	Output    OutputConfig          `mapstructure:"output"`
	Storage   StorageConfig         `mapstructure:"storage"`
	PubSub    PubSubConfig          `mapstructure:"pubsub"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Tracing   TracingConfig         `mapstructure:"tracing"`
	Sites     map[string]SiteConfig `mapstructure:"sites"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RequestTimeout bounds a synchronous crawl request; zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	// RequestsPerSecond throttles fetches per host; zero disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlConfig holds the politeness delays.
type CrawlConfig struct {
	EntryDelay time.Duration `mapstructure:"entry_delay"`
	PageDelay  time.Duration `mapstructure:"page_delay"`
}

// RetryConfig bounds the per-site retry envelope.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// SchedulerConfig controls the daily trigger.
type SchedulerConfig struct {
	TriggerTime  string        `mapstructure:"trigger_time"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Timezone is an IANA name; empty uses the process local zone.
	Timezone string `mapstructure:"timezone"`

	SkipInitialRun bool `mapstructure:"skip_initial_run"`
}

// OutputConfig sets where local snapshots and CLI exports go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig switches snapshots to GCS when a bucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for snapshot notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// SiteConfig overrides a site's defaults.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	MaxPages int    `mapstructure:"max_pages"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadEnvFile seeds the process environment from HARVEST_ENV_FILE, or from
// ./.env when that variable is unset. Variables already set are kept.
func loadEnvFile() error {
	path := os.Getenv(EnvPrefix + "_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout", 10*time.Minute)
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("crawl.entry_delay", 500*time.Millisecond)
	v.SetDefault("crawl.page_delay", 2*time.Second)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", 5*time.Second)
	v.SetDefault("scheduler.trigger_time", "06:00")
	v.SetDefault("scheduler.poll_interval", 60*time.Second)
	v.SetDefault("scheduler.skip_initial_run", false)
	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("output.dir", ".")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "legal-notice-harvester")
	// site keys must be known to viper for env overrides to apply
	for _, id := range sites.IDs() {
		v.SetDefault("sites."+id+".base_url", "")
		v.SetDefault("sites."+id+".max_pages", 0)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.RequestsPerSecond < 0 || c.Fetch.Burst < 0 {
		return fmt.Errorf("fetch.requests_per_second and fetch.burst must not be negative")
	}
	if c.Crawl.EntryDelay < 0 || c.Crawl.PageDelay < 0 {
		return fmt.Errorf("crawl delays must not be negative")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry.backoff must not be negative")
	}
	if _, err := time.Parse("15:04", c.Scheduler.TriggerTime); err != nil {
		return fmt.Errorf("scheduler.trigger_time must be HH:MM, got %q", c.Scheduler.TriggerTime)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	for id, site := range c.Sites {
		if !sites.Known(id) {
			return fmt.Errorf("sites.%s is not a supported site", id)
		}
		if site.MaxPages < 0 {
			return fmt.Errorf("sites.%s.max_pages must not be negative", id)
		}
	}
	return nil
}

// Location resolves scheduler.timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// SiteOverrides converts the sites section into registry overrides.
func (c Config) SiteOverrides() map[string]sites.Override {
	out := make(map[string]sites.Override, len(c.Sites))
	for id, s := range c.Sites {
		if s.BaseURL == "" && s.MaxPages == 0 {
			continue
		}
		out[id] = sites.Override{BaseURL: s.BaseURL, MaxPages: s.MaxPages}
	}
	return out
}
