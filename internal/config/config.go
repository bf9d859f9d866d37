package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog/log"
)

// Storage driver constants
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// insecure defaults that must never reach production
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Storage        StorageConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Store          StoreConfig
	Purchase       PurchaseConfig
	Log            LogConfig
	InternalSecret string `env:"INTERNAL_SECRET"`
}

type ServerConfig struct {
	Port string `env:"SERVER_PORT" env-default:"8005"`
	Mode string `env:"GIN_MODE" env-default:"release"`
}

type StorageConfig struct {
	Driver     string `env:"STORAGE_DRIVER" env-default:"sqlite"`
	Namespace  string `env:"STORAGE_NAMESPACE"`
	SQLitePath string `env:"SQLITE_PATH" env-default:"storefront.db"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"saas_user"`
	Password string `env:"DB_PASSWORD" env-default:"saas_pass"`
	DBName   string `env:"DB_NAME" env-default:"saas_db"`
	Schema   string `env:"DB_SCHEMA" env-default:"storefront"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type JWTConfig struct {
	SecretKey string        `env:"JWT_SECRET_KEY"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL" env-default:"720h"`
}

type StoreConfig struct {
	WriteQueue     int           `env:"STORE_WRITE_QUEUE" env-default:"64"`
	WriteTimeout   time.Duration `env:"STORE_WRITE_TIMEOUT" env-default:"5s"`
	ResyncSchedule string        `env:"STORE_RESYNC_SCHEDULE"` // cron expression, empty disables
}

type PurchaseConfig struct {
	SimulatedDelay time.Duration `env:"PURCHASE_DELAY" env-default:"0s"`
	InstallURLBase string        `env:"INSTALL_URL_BASE" env-default:"https://esim.example.com/install"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Pretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	// sensitive values are not logged
	log.Info().
		Str("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("namespace", cfg.Storage.Namespace).
		Msg("[config] Storefront Service loaded")

	return cfg, nil
}

// Validate checks the configuration; secrets must be set to secure values
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.Storage.Driver)
	}

	if c.Store.WriteQueue <= 0 {
		return fmt.Errorf("STORE_WRITE_QUEUE must be positive")
	}
	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("STORE_WRITE_TIMEOUT must be positive")
	}

	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}
