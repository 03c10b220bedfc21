// Package config loads the service configuration from a YAML file with
// environment variable overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicURL is the externally visible base URL; provider redirect
		// URLs are derived from it when not set per provider.
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// SessionStore configures the server-side fallback channel for in-flight
	// OAuth sessions. "memory" is single-instance only; use "redis" behind a
	// load balancer.
	SessionStore struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session_store"`

	Auth struct {
		// SessionSecret signs/verifies the app session JWT (HS256).
		SessionSecret string `yaml:"session_secret"`
		CookieName    string `yaml:"cookie_name"`
	} `yaml:"auth"`

	Providers struct {
		Twitter   Provider `yaml:"twitter"`
		Instagram Provider `yaml:"instagram"`
	} `yaml:"providers"`

	RefreshJob struct {
		// Secret gates the scheduled refresh trigger endpoint.
		Secret string `yaml:"secret"`
		// Parallelism bounds concurrent account refreshes. Default 4.
		Parallelism int `yaml:"parallelism"`
	} `yaml:"refresh_job"`
}

// Provider holds per-platform OAuth client credentials.
type Provider struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// Load reads the YAML file at path (optional) and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr(&c.App.Env, "APP_ENV")
	envStr(&c.Server.Addr, "SERVER_ADDR")
	envStr(&c.Server.PublicURL, "PUBLIC_URL")
	envStr(&c.Log.Level, "LOG_LEVEL")
	envStr(&c.Storage.DSN, "DATABASE_DSN")
	envStr(&c.SessionStore.Kind, "SESSION_STORE_KIND")
	envStr(&c.SessionStore.Redis.Addr, "REDIS_ADDR")
	envStr(&c.SessionStore.Redis.Password, "REDIS_PASSWORD")
	envInt(&c.SessionStore.Redis.DB, "REDIS_DB")
	envStr(&c.Auth.SessionSecret, "AUTH_SESSION_SECRET")
	envStr(&c.RefreshJob.Secret, "REFRESH_JOB_SECRET")

	envStr(&c.Providers.Twitter.ClientID, "TWITTER_CLIENT_ID")
	envStr(&c.Providers.Twitter.ClientSecret, "TWITTER_CLIENT_SECRET")
	envStr(&c.Providers.Instagram.ClientID, "INSTAGRAM_CLIENT_ID")
	envStr(&c.Providers.Instagram.ClientSecret, "INSTAGRAM_CLIENT_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.SessionStore.Kind == "" {
		c.SessionStore.Kind = "memory"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "app_session"
	}
	if c.RefreshJob.Parallelism <= 0 {
		c.RefreshJob.Parallelism = 4
	}
}

// IsProd reports whether the service runs in production mode. Controls the
// Secure flag on flow cookies, among other things.
func (c *Config) IsProd() bool {
	return c.App.Env == "prod"
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
