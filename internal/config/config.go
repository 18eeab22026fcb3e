package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EarliestYear is the first year the regulator portal publishes structured archives for.
const EarliestYear = 2010

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Universe UniverseConfig `yaml:"universe" mapstructure:"universe"`
	Insider  InsiderConfig  `yaml:"insider" mapstructure:"insider"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the warehouse connection.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Name     string `yaml:"name" mapstructure:"name"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// DSN returns the connection string. An explicit URL wins over the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if d.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(d.MaxConns)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// IngestConfig configures archive discovery, download pacing and write batching.
type IngestConfig struct {
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	StartYear          int     `yaml:"start_year" mapstructure:"start_year"`
	FetchDelaySeconds  float64 `yaml:"fetch_delay_seconds" mapstructure:"fetch_delay_seconds"`
	HTTPTimeoutSeconds int     `yaml:"http_timeout_seconds" mapstructure:"http_timeout_seconds"`
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseSeconds   float64 `yaml:"retry_base_seconds" mapstructure:"retry_base_seconds"`
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	ChunkSize          int     `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// FetchDelay returns the pause between archive downloads.
func (c IngestConfig) FetchDelay() time.Duration {
	return time.Duration(c.FetchDelaySeconds * float64(time.Second))
}

// HTTPTimeout returns the absolute wall-clock limit of one archive download.
func (c IngestConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// CacheConfig configures the optional on-disk archive cache.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// UniverseConfig configures the curated ticker universe.
type UniverseConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	ReferenceURL string `yaml:"reference_url" mapstructure:"reference_url"`
	AutoAdmit    bool   `yaml:"auto_admit" mapstructure:"auto_admit"`
}

// InsiderConfig configures insider-document text extraction.
type InsiderConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	PdfToTextPath string   `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxDocuments  int      `yaml:"max_documents" mapstructure:"max_documents"`
	Categories    []string `yaml:"categories" mapstructure:"categories"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// envBindings maps config keys to the environment variables operators set.
var envBindings = map[string]string{
	"database.url":                "DATABASE_URL",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.name":               "DB_NAME",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.sslmode":            "DB_SSLMODE",
	"ingest.start_year":           "INGEST_START_YEAR",
	"ingest.fetch_delay_seconds":  "INGEST_FETCH_DELAY_SECONDS",
	"ingest.http_timeout_seconds": "INGEST_HTTP_TIMEOUT_SECONDS",
	"ingest.base_url":             "INGEST_BASE_URL",
	"cache.dir":                   "INGEST_CACHE_DIR",
	"universe.path":               "UNIVERSE_PATH",
	"universe.reference_url":      "UNIVERSE_REFERENCE_URL",
	"universe.auto_admit":         "UNIVERSE_AUTO_ADMIT",
	"insider.enabled":             "INSIDER_ENABLED",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	// Defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("ingest.base_url", "https://dados.cvm.gov.br/dados")
	v.SetDefault("ingest.start_year", time.Now().UTC().Year()-10)
	v.SetDefault("ingest.fetch_delay_seconds", 2)
	v.SetDefault("ingest.http_timeout_seconds", 180)
	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.retry_base_seconds", 2)
	v.SetDefault("ingest.user_agent", "cvm-ingest/1.0")
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("universe.auto_admit", false)
	v.SetDefault("insider.enabled", true)
	v.SetDefault("insider.pdftotext_path", "pdftotext")
	v.SetDefault("insider.max_documents", 50)
	v.SetDefault("insider.categories", []string{"Valores Mobiliários Negociados e Detidos"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every ingestion command depends on.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.URL == "" {
		if c.Database.Host == "" {
			problems = append(problems, "database host is empty (set DB_HOST or DATABASE_URL)")
		}
		if c.Database.User == "" {
			problems = append(problems, "database user is empty (set DB_USER)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, fmt.Sprintf("database port %d out of range", c.Database.Port))
		}
	}

	currentYear := time.Now().UTC().Year()
	if c.Ingest.StartYear < EarliestYear || c.Ingest.StartYear > currentYear {
		problems = append(problems, fmt.Sprintf("ingest.start_year must be between %d and %d, got %d", EarliestYear, currentYear, c.Ingest.StartYear))
	}
	if c.Ingest.FetchDelaySeconds < 0 {
		problems = append(problems, "ingest.fetch_delay_seconds must be >= 0")
	}
	if c.Ingest.HTTPTimeoutSeconds <= 0 {
		problems = append(problems, "ingest.http_timeout_seconds must be > 0")
	}
	if c.Ingest.BaseURL == "" {
		problems = append(problems, "ingest.base_url is empty")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
