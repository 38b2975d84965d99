package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	DBDSN    string
	Migrate  bool
	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
}

type envVars struct {
	Env          string        `env:"APP_ENV" envDefault:"dev"`
	Addr         string        `env:"APP_ADDR" envDefault:"127.0.0.1:8080"`
	PublicURL    string        `env:"APP_PUBLIC_URL"`
	CookieSecret string        `env:"APP_COOKIE_SECRET"`
	SessionTTL   time.Duration `env:"APP_SESSION_TTL" envDefault:"720h"`
	LogLevel     string        `env:"APP_LOG_LEVEL"`

	DBDSN    string `env:"APP_DB_DSN"`
	Migrate  bool   `env:"APP_MIGRATE"`
	MongoURI string `env:"APP_MONGO_URI"`
	MongoDB  string `env:"APP_MONGO_DB" envDefault:"messaging"`

	RedisAddr     string        `env:"APP_REDIS_ADDR"`
	RedisPassword string        `env:"APP_REDIS_PASSWORD"`
	RedisDB       int           `env:"APP_REDIS_DB"`
	LockTTL       time.Duration `env:"APP_LOCK_TTL" envDefault:"5s"`
}

// Load reads configuration from the process environment, after filling unset
// variables from ./.env when that file exists.
func Load() (Config, error) {
	if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return parse(env.Options{})
}

// LoadFromEnv parses configuration from an explicit variable set.
func LoadFromEnv(environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var raw envVars
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		Env:           strings.TrimSpace(raw.Env),
		Addr:          strings.TrimSpace(raw.Addr),
		CookieSecret:  raw.CookieSecret,
		SessionTTL:    raw.SessionTTL,
		LogLevel:      strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		DBDSN:         strings.TrimSpace(raw.DBDSN),
		Migrate:       raw.Migrate,
		MongoURI:      strings.TrimSpace(raw.MongoURI),
		MongoDB:       strings.TrimSpace(raw.MongoDB),
		RedisAddr:     strings.TrimSpace(raw.RedisAddr),
		RedisPassword: raw.RedisPassword,
		RedisDB:       raw.RedisDB,
		LockTTL:       raw.LockTTL,
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if publicURLRaw := strings.TrimSpace(raw.PublicURL); publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
	}
	if cfg.LockTTL <= 0 {
		return Config{}, errors.New("APP_LOCK_TTL: must be > 0")
	}
	if cfg.DBDSN != "" && cfg.MongoURI != "" {
		return Config{}, errors.New("APP_DB_DSN and APP_MONGO_URI are mutually exclusive")
	}
	if cfg.MongoURI != "" && cfg.MongoDB == "" {
		return Config{}, errors.New("APP_MONGO_DB: required with APP_MONGO_URI")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.Backend() == BackendMemory {
			return Config{}, errors.New("APP_DB_DSN or APP_MONGO_URI: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) Backend() Backend {
	switch {
	case c.DBDSN != "":
		return BackendPostgres
	case c.MongoURI != "":
		return BackendMongo
	default:
		return BackendMemory
	}
}

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

// loadDotEnvFile sets KEY=VALUE pairs from path for keys that are not already
// set. Blank lines, comments, "export " prefixes and surrounding quotes are
// handled; malformed lines and empty values are skipped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = unquote(strings.TrimSpace(v))
		if k == "" || v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
