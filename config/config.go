package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server holds the HTTP listener settings.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Auth holds the token authority settings.
type Auth struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// Client holds the session client settings.
type Client struct {
	RefreshMargin time.Duration `mapstructure:"refresh_margin"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
}

// Redis holds the optional redis connection; empty URL means in-memory
// adapters.
type Redis struct {
	URL string `mapstructure:"url"`
}

// Log holds the logger settings.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the full service configuration.
type Config struct {
	Server Server `mapstructure:"server"`
	Auth   Auth   `mapstructure:"auth"`
	Client Client `mapstructure:"client"`
	Redis  Redis  `mapstructure:"redis"`
	Log    Log    `mapstructure:"log"`
}

// Load reads configuration from an optional yaml file and the environment.
// Environment variables use underscores, e.g. AUTH_SECRET, SERVER_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("server.addr", ":9000")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.access_ttl", "24h")
	v.SetDefault("auth.refresh_ttl", "168h")

	v.SetDefault("client.refresh_margin", "5m")
	v.SetDefault("client.http_timeout", "10s")

	v.SetDefault("redis.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.Secret == "" {
		return nil, errors.New("auth.secret is required")
	}
	return &cfg, nil
}
