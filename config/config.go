package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         Logger      `mapstructure:"logger"`
	API         API         `mapstructure:"api"`
	Cache       Cache       `mapstructure:"cache"`
	Storage     Storage     `mapstructure:"storage"`
	DB          Database    `mapstructure:"database"`
	Market      Market      `mapstructure:"market"`
	Simulation  Simulation  `mapstructure:"simulation"`
	Catalog     Catalog     `mapstructure:"catalog"`
	Exploration Exploration `mapstructure:"exploration"`
	Scheduler   Scheduler   `mapstructure:"scheduler"`
}

type Logger struct {
	Level    string `mapstructure:"level" validate:"required"`
	Encoding string `mapstructure:"encoding" validate:"oneof=json console"`
}

type API struct {
	Port          int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	RateLimit     float64       `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst     int           `mapstructure:"rate_burst" validate:"gt=0"`
	RateExpiresIn time.Duration `mapstructure:"rate_expires_in"`
}

type Cache struct {
	DefaultExpiration  time.Duration `mapstructure:"default_expiration"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	SnapshotExpiration time.Duration `mapstructure:"snapshot_expiration"`
}

// Storage selects where exclusion snapshots live. Path is used by the file
// backend; its extension picks JSON or msgpack.
type Storage struct {
	Backend string `mapstructure:"backend" validate:"oneof=file postgres"`
	Path    string `mapstructure:"path" validate:"required_if=Backend file"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// DSN is the libpq style connection string used by gorm.
func (d Database) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
	if d.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", d.TimeZone)
	}
	return dsn
}

// URL is the connection URL used by golang-migrate.
func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type Market struct {
	Seed          uint64  `mapstructure:"seed"`
	Days          int     `mapstructure:"days" validate:"gt=0"`
	InitialPrice  float64 `mapstructure:"initial_price" validate:"gt=0"`
	HistoryLength int     `mapstructure:"history_length" validate:"gte=120"`
	MinPrice      float64 `mapstructure:"min_price" validate:"gt=0"`
	MaxPrice      float64 `mapstructure:"max_price" validate:"gtfield=MinPrice"`
}

type Costs struct {
	Fee      float64 `mapstructure:"fee" validate:"gte=0"`
	Slippage float64 `mapstructure:"slippage" validate:"gte=0"`
	Tax      float64 `mapstructure:"tax" validate:"gte=0"`
	Levy     float64 `mapstructure:"levy" validate:"gte=0"`
}

type Simulation struct {
	InitialAsset    float64 `mapstructure:"initial_asset" validate:"gt=0"`
	TargetReturnPct float64 `mapstructure:"target_return_pct" validate:"gt=0"`
	TradeLogLimit   int     `mapstructure:"trade_log_limit" validate:"gt=0"`
	Workers         int     `mapstructure:"workers" validate:"gte=0"`
	ProgressEvery   int     `mapstructure:"progress_every" validate:"gt=0"`
	Costs           Costs   `mapstructure:"costs"`
}

type Catalog struct {
	Seed          uint64 `mapstructure:"seed"`
	AttemptFactor int    `mapstructure:"attempt_factor" validate:"gt=0"`
}

type Exploration struct {
	Mode           string   `mapstructure:"mode" validate:"oneof=sample exhaustive"`
	SampleSize     int      `mapstructure:"sample_size" validate:"gt=0"`
	Condition      string   `mapstructure:"condition"`
	DropoutReasons []string `mapstructure:"dropout_reasons"`
	AutoCheckpoint bool     `mapstructure:"auto_checkpoint"`
	ResultLimit    int      `mapstructure:"result_limit" validate:"gte=0"`
}

type ScheduledJob struct {
	Name    string        `mapstructure:"name" validate:"required"`
	Type    string        `mapstructure:"type" validate:"required"`
	Cron    string        `mapstructure:"cron" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

type Scheduler struct {
	Enabled         bool           `mapstructure:"enabled"`
	MaxConcurrency  int            `mapstructure:"max_concurrency" validate:"gt=0"`
	TimeoutDuration time.Duration  `mapstructure:"timeout_duration"`
	Jobs            []ScheduledJob `mapstructure:"jobs" validate:"dive"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.rate_burst", 30)
	v.SetDefault("api.rate_expires_in", 3*time.Minute)

	v.SetDefault("cache.default_expiration", 10*time.Minute)
	v.SetDefault("cache.cleanup_interval", 15*time.Minute)
	v.SetDefault("cache.snapshot_expiration", 10*time.Minute)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "data/exclusions.json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")
	v.SetDefault("database.migrations_path", "file://migrations")

	v.SetDefault("market.seed", 0)
	v.SetDefault("market.days", 135)
	v.SetDefault("market.initial_price", 100)
	v.SetDefault("market.history_length", 120)
	v.SetDefault("market.min_price", 20)
	v.SetDefault("market.max_price", 500)

	v.SetDefault("simulation.initial_asset", 10_000_000)
	v.SetDefault("simulation.target_return_pct", 5.0)
	v.SetDefault("simulation.trade_log_limit", 10)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.progress_every", 1000)
	v.SetDefault("simulation.costs.fee", 0.00015)
	v.SetDefault("simulation.costs.slippage", 0.0002)
	v.SetDefault("simulation.costs.tax", 0.0023)
	v.SetDefault("simulation.costs.levy", 0.00046)

	v.SetDefault("catalog.seed", 0)
	v.SetDefault("catalog.attempt_factor", 10)

	v.SetDefault("exploration.mode", "sample")
	v.SetDefault("exploration.sample_size", 1000)
	v.SetDefault("exploration.condition", "")
	v.SetDefault("exploration.dropout_reasons", []string{"stop-loss", "simulation-error"})
	v.SetDefault("exploration.auto_checkpoint", true)
	v.SetDefault("exploration.result_limit", 100)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.max_concurrency", 1)
	v.SetDefault("scheduler.timeout_duration", 30*time.Minute)
}

// Load reads config.yaml (or path when given), a .env file if present and
// the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := goValidator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
