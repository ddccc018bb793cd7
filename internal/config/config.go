package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
}

// LinksConfig bounds the caller-chosen expiry of custom links. Both bounds
// are inclusive.
type LinksConfig struct {
	MinExpiry time.Duration
	MaxExpiry time.Duration
}

// MaintenanceConfig drives the compaction pipeline: the api process
// schedules compact tasks onto Stream, the worker consumes them and purges
// links whose expiry passed more than CompactAfter ago. Compaction is
// storage hygiene only; validity is always enforced at query time.
type MaintenanceConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	CompactAfter  time.Duration
	Schedule      string
}

type AppConfig struct {
	Environment string
	CORSOrigins []string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Security    SecurityConfig
	Links       LinksConfig
	Maintenance MaintenanceConfig
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("IMAGEAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		// Env values arrive as strings; decode them into ints and bools.
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "image-api-originals")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "720h") // 30 days

	v.SetDefault("links.minexpiry", "300s")
	v.SetDefault("links.maxexpiry", "30000s")

	v.SetDefault("maintenance.stream", "links:maintenance")
	v.SetDefault("maintenance.group", "maintenance")
	v.SetDefault("maintenance.consumer", "worker-1")
	v.SetDefault("maintenance.claiminterval", "1m")
	v.SetDefault("maintenance.compactafter", "24h")
	v.SetDefault("maintenance.schedule", "0 0 4 * * *") // daily, 04:00
}
