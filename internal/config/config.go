package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"

	"wb-tariffs/internal/stories/tariffs"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	SheetsGoogle = "google"
	SheetsXLSX   = "xlsx"
)

type Config struct {
	Env              string                  `env:"ENV,default=local" validate:"required"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s" validate:"gt=0"`
	MigrateOnStart   bool                    `env:"MIGRATE_ON_START,default=true"`
	Storage          StorageConfig           `env:",prefix=STORAGE_"`
	Postgres         PostgresConfig          `env:",prefix=POSTGRES_" validate:"-"`
	SQLite           SQLiteConfig            `env:",prefix=SQLITE_" validate:"-"`
	Wildberries      HTTPClientConfig        `env:",prefix=WB_"`
	Sheets           SheetsConfig            `env:",prefix=SHEETS_"`
	Sync             SyncConfig              `env:",prefix=SYNC_"`
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug" validate:"oneof=debug info warn warning error"`
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type StorageConfig struct {
	Driver string `env:"DRIVER,default=postgres" validate:"oneof=postgres sqlite3"`
}

// PostgresConfig has no defaults in the production profile; outside it the
// local development values apply.
type PostgresConfig struct {
	Host         string        `env:"HOST" validate:"required"`
	Port         uint16        `env:"PORT" validate:"required"`
	DB           string        `env:"DB" validate:"required"`
	User         string        `env:"USER" validate:"required"`
	Password     string        `env:"PASSWORD" validate:"required"`
	SSLMode      string        `env:"SSL_MODE,default=disable"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS,default=10" validate:"gte=1"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS,default=2" validate:"gte=0"`
	MaxLifetime  time.Duration `env:"MAX_LIFETIME,default=5m"`
}

type SQLiteConfig struct {
	Path         string        `env:"PATH,default=./data/tariffs.db" validate:"required"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS,default=1" validate:"gte=1"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS,default=1" validate:"gte=0"`
	MaxLifetime  time.Duration `env:"MAX_LIFETIME,default=5m"`
}

type HTTPClientConfig struct {
	APIKey        string        `env:"API_KEY"`
	BaseURL       string        `env:"BASE_URL,default=https://common-api.wildberries.ru" validate:"url"`
	UserAgent     string        `env:"USER_AGENT"`
	Timeout       time.Duration `env:"HTTP_TIMEOUT,default=120s" validate:"gt=0"`
	MaxRetries    int           `env:"MAX_RETRIES,default=3" validate:"gte=0"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL,default=1s" validate:"gte=0"`
	RateLimit     struct {
		Burst int     `env:"BURST,default=1" validate:"gte=0"`
		RPS   float64 `env:"RPS,default=0" validate:"gte=0"`
	} `env:",prefix=RATE_LIMIT_"`
	LogPayloads bool   `env:"LOG_PAYLOADS,default=false"`
	LogPath     string `env:"LOG_PATH"`
}

type SheetsConfig struct {
	Backend         string `env:"BACKEND,default=google" validate:"oneof=google xlsx"`
	CredentialsFile string `env:"CREDENTIALS_FILE,default=google-credentials.json"`
	SheetName       string `env:"SHEET_NAME,default=stocks_coefs" validate:"required"`
	SortBy          string `env:"SORT_BY,default=delivery_marketplace_coef_expr" validate:"required"`
	XLSXDir         string `env:"XLSX_DIR,default=./data/sheets"`
}

type SyncConfig struct {
	Schedule   string        `env:"SCHEDULE,default=0 * * * *" validate:"required"`
	Timezone   string        `env:"TIMEZONE"`
	RunTimeout time.Duration `env:"RUN_TIMEOUT,default=50m" validate:"gte=0"`
	RunOnStart bool          `env:"RUN_ON_START,default=false"`
}

// Location resolves Timezone. Empty means local time.
func (s SyncConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration from lookuper and applies the profile
// defaults. It does not validate.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, fmt.Errorf("env processing: %w", err)
	}

	if !cfg.IsProduction() {
		cfg.applyDevelopmentDefaults()
	}
	return &cfg, nil
}

func (c *Config) applyDevelopmentDefaults() {
	setDefault(&c.Postgres.Host, "localhost")
	setDefault(&c.Postgres.DB, "postgres")
	setDefault(&c.Postgres.User, "postgres")
	setDefault(&c.Postgres.Password, "postgres")
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStorage checks what database tooling needs.
func (c *Config) ValidateStorage() error {
	if err := validate.Struct(c.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if err := validate.Struct(c.Postgres); err != nil {
			return fmt.Errorf("postgres config: %w", err)
		}
	case DriverSQLite:
		if err := validate.Struct(c.SQLite); err != nil {
			return fmt.Errorf("sqlite config: %w", err)
		}
	}
	return nil
}

// Validate checks the whole configuration. The production profile also
// requires the API key and, for the google backend, an existing credentials
// file.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}

	if !tariffs.IsColumn(c.Sheets.SortBy) {
		return fmt.Errorf("config: SHEETS_SORT_BY %q is not a tariff column", c.Sheets.SortBy)
	}
	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		return fmt.Errorf("config: SYNC_SCHEDULE: %w", err)
	}
	if _, err := c.Sync.Location(); err != nil {
		return fmt.Errorf("config: SYNC_TIMEZONE: %w", err)
	}

	if !c.IsProduction() {
		return nil
	}

	if err := validate.Var(c.Wildberries.APIKey, "required"); err != nil {
		return fmt.Errorf("config: WB_API_KEY is required in production: %w", err)
	}
	if c.Sheets.Backend == SheetsGoogle {
		if err := validate.Var(c.Sheets.CredentialsFile, "required,file"); err != nil {
			return fmt.Errorf("config: SHEETS_CREDENTIALS_FILE must exist in production: %w", err)
		}
	}
	return nil
}
