// Package config loads application configuration from a .env file, an
// optional config.yaml and environment variables, in increasing priority.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/iliyamo/citizen-booking/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable of the same name.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`   // application environment (development, production)
	Port     string `mapstructure:"APP_PORT"`  // HTTP port to listen on
	LogLevel string `mapstructure:"LOG_LEVEL"` // zap level name

	DBDriver    string `mapstructure:"DB_DRIVER"` // mysql or sqlite3
	DBUser      string `mapstructure:"DB_USER"`
	DBPass      string `mapstructure:"DB_PASS"` // empty allowed
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBName      string `mapstructure:"DB_NAME"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DBIsolation string `mapstructure:"DB_ISOLATION"` // read_committed, repeatable_read, serializable

	JWTSecret     string        `mapstructure:"JWT_SECRET"`      // signs caller tokens
	IDTokenSecret string        `mapstructure:"ID_TOKEN_SECRET"` // keys opaque v2 ids
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`

	OnHoldTTL        time.Duration `mapstructure:"ON_HOLD_TTL"`
	OutOfSlotOverlap string        `mapstructure:"OUT_OF_SLOT_OVERLAP"` // accepted or all

	SMTPAddr      string        `mapstructure:"SMTP_ADDR"`
	SMTPFrom      string        `mapstructure:"SMTP_FROM"`
	SMTPUser      string        `mapstructure:"SMTP_USER"`
	SMTPPass      string        `mapstructure:"SMTP_PASS"`
	SMSURL        string        `mapstructure:"SMS_URL"`
	SMSAPIKey     string        `mapstructure:"SMS_API_KEY"`
	NotifyTimeout time.Duration `mapstructure:"NOTIFY_TIMEOUT"`

	RabbitURL       string `mapstructure:"RABBITMQ_URL"`
	AgencyEndpoints string `mapstructure:"AGENCY_ENDPOINTS"` // agency=url pairs, comma separated
	AgencyOutboxDir string `mapstructure:"AGENCY_OUTBOX_DIR"`

	Redis     RedisConfig     `mapstructure:"-"`
	RateLimit RateLimitConfig `mapstructure:"-"`
	Cache     CacheConfig     `mapstructure:"-"`
}

// Load reads .env (if present), config.yaml (if present) and the
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return LoadFrom(v)
}

// LoadFrom builds a Config from v with environment overrides and validates
// it.  Missing required keys fail fast.
func LoadFrom(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Redis = loadRedis(v)
	cfg.RateLimit = loadRateLimit(v)
	cfg.Cache = loadCache(v)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	for k, d := range map[string]any{
		"APP_ENV":             "development",
		"APP_PORT":            "8080",
		"LOG_LEVEL":           "info",
		"DB_DRIVER":           database.DriverMySQL,
		"DB_USER":             "",
		"DB_PASS":             "",
		"DB_HOST":             "",
		"DB_PORT":             "3306",
		"DB_NAME":             "",
		"SQLITE_PATH":         "booking.db",
		"DB_ISOLATION":        "",
		"JWT_SECRET":          "",
		"ID_TOKEN_SECRET":     "",
		"TOKEN_TTL":           "1h",
		"ON_HOLD_TTL":         "10m",
		"OUT_OF_SLOT_OVERLAP": "accepted",
		"SMTP_ADDR":           "",
		"SMTP_FROM":           "no-reply@booking.local",
		"SMTP_USER":           "",
		"SMTP_PASS":           "",
		"SMS_URL":             "",
		"SMS_API_KEY":         "",
		"NOTIFY_TIMEOUT":      "15s",
		"RABBITMQ_URL":        "",
		"AGENCY_ENDPOINTS":    "",
		"AGENCY_OUTBOX_DIR":   "outbox",
	} {
		v.SetDefault(k, d)
	}
	redisDefaults(v)
	rateLimitDefaults(v)
	cacheDefaults(v)
}

func (c Config) validate() error {
	var missing []string
	require := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}
	switch c.DBDriver {
	case database.DriverMySQL:
		require("DB_USER", c.DBUser)
		require("DB_HOST", c.DBHost)
		require("DB_PORT", c.DBPort)
		require("DB_NAME", c.DBName)
	case database.DriverSQLite:
		require("SQLITE_PATH", c.SQLitePath)
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	require("JWT_SECRET", c.JWTSecret)
	require("ID_TOKEN_SECRET", c.IDTokenSecret)
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if _, err := c.Isolation(); err != nil {
		return err
	}
	if _, err := c.Agencies(); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c Config) IsProduction() bool { return c.Env == "production" }

// Database returns the connection options.
func (c Config) Database() database.Options {
	return database.Options{
		Driver:     c.DBDriver,
		User:       c.DBUser,
		Pass:       c.DBPass,
		Host:       c.DBHost,
		Port:       c.DBPort,
		Name:       c.DBName,
		SQLitePath: c.SQLitePath,
	}
}

// Isolation maps DB_ISOLATION onto a transaction isolation level.  Empty
// selects repeatable read on MySQL and the driver default elsewhere.
func (c Config) Isolation() (sql.IsolationLevel, error) {
	switch strings.ToLower(c.DBIsolation) {
	case "":
		if c.DBDriver == database.DriverMySQL {
			return sql.LevelRepeatableRead, nil
		}
		return sql.LevelDefault, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	}
	return 0, fmt.Errorf("unknown DB_ISOLATION %q", c.DBIsolation)
}

// Agencies parses AGENCY_ENDPOINTS ("ica=https://...,mom=https://...").
func (c Config) Agencies() (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(c.AgencyEndpoints, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid AGENCY_ENDPOINTS entry %q", pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}
	return out, nil
}
