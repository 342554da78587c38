// Package config loads service configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/policy"
	"github.com/bytesize-travel/service-curation/internal/schedule"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CURATION_DATABASE_HOST.
const EnvPrefix = "CURATION"

// AppConfig holds process-level settings.
type AppConfig struct {
	Port     string `mapstructure:"port"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig selects and configures the GORM dialect.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// KafkaConfig configures the event bus.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	GroupPrefix string   `mapstructure:"group_prefix"`
}

// RedisConfig configures the cadence lock store.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// AuthConfig configures bearer tokens.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// SchedulerConfig configures cron-driven publication.
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// ServiceConfig holds all configuration for the curation service.
type ServiceConfig struct {
	App       AppConfig                          `mapstructure:"app"`
	Database  DatabaseConfig                     `mapstructure:"database"`
	Kafka     KafkaConfig                        `mapstructure:"kafka"`
	Redis     RedisConfig                        `mapstructure:"redis"`
	Auth      AuthConfig                         `mapstructure:"auth"`
	Scheduler SchedulerConfig                    `mapstructure:"scheduler"`
	Selection selection.Config                   `mapstructure:"selection"`
	Cadences  []schedule.Cadence                 `mapstructure:"cadences"`
	Policies  map[content.Category]policy.Policy `mapstructure:"policies"`
}

// Cadence returns the named cadence.
func (c *ServiceConfig) Cadence(name string) (schedule.Cadence, bool) {
	for _, cd := range c.Cadences {
		if cd.Name == name {
			return cd, true
		}
	}
	return schedule.Cadence{}, false
}

// Load reads config.yaml from path (or ./ and ./config when empty), then
// applies CURATION_* environment overrides on top of the defaults.
func Load(path string) (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *ServiceConfig) Validate() error {
	if err := c.Selection.Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	for cat := range c.Policies {
		if !cat.IsKnown() {
			return fmt.Errorf("policies: unknown category %q", cat)
		}
	}
	seen := map[string]bool{}
	for _, cd := range c.Cadences {
		if cd.Name == "" {
			return errors.New("cadences: name is required")
		}
		if seen[cd.Name] {
			return fmt.Errorf("cadences: duplicate name %q", cd.Name)
		}
		seen[cd.Name] = true
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "curation")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "curation")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "curation.db")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_prefix", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.run_timeout", 2*time.Minute)

	d := selection.DefaultConfig()
	v.SetDefault("selection.featured_deals", d.FeaturedDeals)
	v.SetDefault("selection.min_value_score", d.MinValueScore)
	v.SetDefault("selection.anchor_fallback", string(d.AnchorFallback))
	v.SetDefault("selection.destination_guides", d.DestinationGuides)
	v.SetDefault("selection.related_deals", d.RelatedDeals)
	v.SetDefault("selection.related_min_value_score", d.RelatedMinValueScore)
	v.SetDefault("selection.related_guides_per_location", d.RelatedGuidesPerLocation)
	v.SetDefault("selection.guide_cap", d.GuideCap)
	v.SetDefault("selection.news", d.News)
	v.SetDefault("selection.tips", d.Tips)
	v.SetDefault("selection.seasonal_experiences", d.SeasonalExperiences)

	v.SetDefault("cadences", []map[string]any{
		{"name": "weekly", "schedule": "0 8 * * 1", "seasonal_every": 4},
	})
}
