// Package config loads relquery configuration from a config file, .env
// files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/relquery/internal/adapters/database"
	"github.com/satishbabariya/relquery/internal/adapters/database/provider"
)

// Name is the config file name without extension.
const Name = ".relquery"

// EnvPrefix prefixes environment overrides, e.g. RELQUERY_LOG_LEVEL.
const EnvPrefix = "RELQUERY"

// Config holds the application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	Provider        string        `mapstructure:"provider"`
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_connections"`
	MaxIdleTime     time.Duration `mapstructure:"max_idle_time"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// SchemaConfig locates the schema file.
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig selects the telemetry backend.
type TelemetryConfig struct {
	Type        string `mapstructure:"type"`
	ServiceName string `mapstructure:"service_name"`
}

// Adapter returns the adapter configuration.
func (d DatabaseConfig) Adapter() database.Config {
	return database.Config{
		Provider:           d.Provider,
		Driver:             d.Driver,
		URL:                d.URL,
		MaxConnections:     d.MaxConnections,
		MaxIdleConnections: d.MaxIdleConns,
		MaxIdleTime:        d.MaxIdleTime,
		ConnMaxLifetime:    d.ConnMaxLifetime,
		ConnectTimeout:     d.ConnectTimeout,
	}
}

// Loader reads configuration. The zero value is not usable; use
// NewLoader.
type Loader struct {
	fs    afero.Fs
	paths []string
	file  string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFs reads config and .env files from fs.
func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithFile reads exactly this config file instead of searching for one.
func WithFile(path string) LoaderOption {
	return func(l *Loader) {
		l.file = path
	}
}

// WithSearchPaths replaces the directories searched for the config file.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a loader searching ".", $HOME and
// $HOME/.config/relquery on the OS filesystem.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{fs: afero.NewOsFs(), paths: []string{"."}}
	if home, err := homedir.Dir(); err == nil {
		l.paths = append(l.paths, home, filepath.Join(home, ".config", "relquery"))
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads configuration with this precedence, highest first:
// RELQUERY_* variables, DATABASE_URL, .env.local, .env, the config file,
// defaults. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(l.fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" && os.Getenv(EnvPrefix+"_DATABASE_URL") == "" {
		cfg.Database.URL = url
	}
	if cfg.Database.Provider == "" {
		cfg.Database.Provider = provider.Infer(cfg.Database.URL)
	}
	return &cfg, nil
}

// Load reads configuration with the default loader.
func Load() (*Config, error) {
	return NewLoader().Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.provider", "")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 0)
	v.SetDefault("database.max_idle_connections", 0)
	v.SetDefault("database.max_idle_time", 0)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("schema.path", "schema.prisma")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.type", "noop")
	v.SetDefault("telemetry.service_name", "relquery")
}

// loadEnvFiles loads .env and then .env.local, which wins. Variables
// already set in the environment are kept.
func (l *Loader) loadEnvFiles() error {
	merged := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		data, err := afero.ReadFile(l.fs, name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		env, err := godotenv.UnmarshalBytes(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for k, v := range env {
			merged[k] = v
		}
	}
	for k, v := range merged {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration is complete.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required (or set DATABASE_URL)"))
	}
	switch c.Database.Provider {
	case "postgres", "postgresql", "mysql", "mariadb", "sqlite", "sqlite3":
	case "":
		if c.Database.URL != "" {
			errs = append(errs, fmt.Errorf("cannot infer database.provider from url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.provider %q", c.Database.Provider))
	}
	if c.Schema.Path == "" {
		errs = append(errs, errors.New("schema.path is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format %q", c.Log.Format))
	}
	switch c.Telemetry.Type {
	case "", "noop", "prometheus", "opentelemetry", "otel":
	default:
		errs = append(errs, fmt.Errorf("unsupported telemetry.type %q", c.Telemetry.Type))
	}
	return errors.Join(errs...)
}
