package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Federation FederationConfig `mapstructure:"federation"`
	AI         AIConfig         `mapstructure:"ai"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// InboxRateLimit is the sustained inbound activity rate (per second) across all peers.
	InboxRateLimit float64 `mapstructure:"inbox_rate_limit" validate:"gt=0"`
	InboxBurst     int     `mapstructure:"inbox_burst" validate:"gt=0"`
	// UploadRateLimit caps authenticated flyer uploads (per second).
	UploadRateLimit float64 `mapstructure:"upload_rate_limit" validate:"gt=0"`
	UploadBurst     int     `mapstructure:"upload_burst" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=silent error warn info"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	GeoTTL   time.Duration `mapstructure:"geo_ttl"`
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type FederationConfig struct {
	PublicURL     string `mapstructure:"public_url" validate:"required,url"`
	Username      string `mapstructure:"username" validate:"required,alphanum"`
	DisplayName   string `mapstructure:"display_name" validate:"required"`
	Summary       string `mapstructure:"summary"`
	PrivateKeyPEM string `mapstructure:"private_key_pem" validate:"required"`
	PublicKeyPEM  string `mapstructure:"public_key_pem" validate:"required"`
	// DeliveryTimeout bounds a single POST to one remote inbox.
	DeliveryTimeout     time.Duration `mapstructure:"delivery_timeout" validate:"gt=0"`
	DeliveryConcurrency int           `mapstructure:"delivery_concurrency" validate:"gt=0"`
	OutboxPageSize      int           `mapstructure:"outbox_page_size" validate:"gt=0"`
}

type AIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key" validate:"required"`
	Model   string        `mapstructure:"model" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type GeocodingConfig struct {
	Endpoint     string        `mapstructure:"endpoint" validate:"required,url"`
	APIKey       string        `mapstructure:"api_key" validate:"required"`
	CenterLat    float64       `mapstructure:"center_lat" validate:"latitude"`
	CenterLon    float64       `mapstructure:"center_lon" validate:"longitude"`
	RadiusMeters int64         `mapstructure:"radius_meters" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type IntakeConfig struct {
	Workers        int    `mapstructure:"workers" validate:"gt=0"`
	QueueSize      int    `mapstructure:"queue_size" validate:"gt=0"`
	ScratchDir     string `mapstructure:"scratch_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

type DedupConfig struct {
	NameThreshold        float64 `mapstructure:"name_threshold" validate:"gt=0,lte=1"`
	DescriptionThreshold float64 `mapstructure:"description_threshold" validate:"gt=0,lte=1"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether basic auth credentials are configured.
func (a AuthConfig) Enabled() bool { return a.Username != "" && a.Password != "" }

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Endpoint     string  `mapstructure:"endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
	InsecureHTTP bool    `mapstructure:"insecure"`
}

// legacyEnv binds the unprefixed variable names the deployment already uses.
var legacyEnv = map[string]string{
	"federation.public_url":      "PUBLIC_URL",
	"federation.private_key_pem": "ACTIVITYPUB_PRIVATE_KEY_PEM",
	"federation.public_key_pem":  "ACTIVITYPUB_PUBLIC_KEY_PEM",
	"ai.api_key":                 "OPENAI_API_KEY",
	"geocoding.api_key":          "GOOGLE_MAPS_API_KEY",
	"auth.username":              "BASIC_AUTH_USER",
	"auth.password":              "BASIC_AUTH_PASS",
	"database.dsn":               "DATABASE_URL",
	"sentry.dsn":                 "SENTRY_DSN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.inbox_rate_limit", 20.0)
	v.SetDefault("server.inbox_burst", 40)
	v.SetDefault("server.upload_rate_limit", 1.0)
	v.SetDefault("server.upload_burst", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.geo_ttl", 30*24*time.Hour)

	v.SetDefault("federation.username", "events")
	v.SetDefault("federation.display_name", "Somerville Events")
	v.SetDefault("federation.summary", "Local events in Camberville, curated from flyers and community sources.")
	v.SetDefault("federation.delivery_timeout", 10*time.Second)
	v.SetDefault("federation.delivery_concurrency", 8)
	v.SetDefault("federation.outbox_page_size", 100)

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 120*time.Second)

	v.SetDefault("geocoding.endpoint", "https://places.googleapis.com/v1/places:searchText")
	v.SetDefault("geocoding.center_lat", 42.383971)
	v.SetDefault("geocoding.center_lon", -71.108600)
	v.SetDefault("geocoding.radius_meters", 16100)
	v.SetDefault("geocoding.timeout", 10*time.Second)

	v.SetDefault("intake.workers", 4)
	v.SetDefault("intake.scratch_dir", "")
	v.SetDefault("intake.queue_size", 64)
	v.SetDefault("intake.max_upload_bytes", 20<<20)

	v.SetDefault("dedup.name_threshold", 0.985)
	v.SetDefault("dedup.description_threshold", 0.95)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "somerville-events")
	v.SetDefault("tracing.sample_ratio", 0.1)
}

// Load reads config/config.yaml (optional), .env (optional) and the environment.
// Environment always wins over the yaml file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// BindEnv only errors on an empty key list.
		_ = v.BindEnv(key, "SE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
