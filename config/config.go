// Package config loads the application configuration from file and
// environment via viper and maps it onto the db layer's types.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Skryldev/social-toolkit/db"
)

// Config is the full application configuration.
type Config struct {
	Database Database `mapstructure:"database"`
	Log      Log      `mapstructure:"log"`
}

// Database selects the engine and either a full DSN or the individual
// connection parts. When DSN is set it wins.
type Database struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`

	SlowQuery time.Duration `mapstructure:"slow_query"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// Load reads socialtoolkit.{yaml,...} from path (or the working directory
// when empty), then lets SOCIALTOOLKIT_* environment variables override
// file values. A missing file is fine; defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("socialtoolkit")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("SOCIALTOOLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.default_timeout", 5*time.Second)
	v.SetDefault("database.slow_query", 200*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// DBConfig maps the database section onto db.Config, resolving the DSN
// through the driver registry when only connection parts are given.
func (c *Config) DBConfig() (db.Config, error) {
	d := c.Database

	dsn := d.DSN
	if dsn == "" {
		drv, err := db.LookupDriver(d.Driver)
		if err != nil {
			return db.Config{}, err
		}
		dsn, err = drv.DSN(db.DriverOptions{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Name,
			SSLMode:  d.SSLMode,
		})
		if err != nil {
			return db.Config{}, err
		}
	}

	return db.Config{
		DSN:             dsn,
		DriverName:      d.Driver,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		DefaultTimeout:  d.DefaultTimeout,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{SlowQueryThreshold: d.SlowQuery}),
		},
	}, nil
}
