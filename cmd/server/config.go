package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/handlers"
	"github.com/career-mentor/mentor-web-ui/internal/services"
	"github.com/career-mentor/mentor-web-ui/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	appDir    = "career-mentor"
	envPrefix = "MENTOR"
)

type config struct {
	Port          string        `yaml:"port"`
	SecureCookies bool          `yaml:"secureCookies" split_words:"true"`
	SessionTTL    time.Duration `yaml:"sessionTTL" split_words:"true"`

	Backend   backendConfig       `yaml:"backend"`
	Store     storeConfig         `yaml:"store"`
	Log       telemetry.LogConfig `yaml:"log"`
	Telemetry telemetry.Config    `yaml:"telemetry"`
}

type backendConfig struct {
	URL               string        `yaml:"url"`
	UploadTimeout     time.Duration `yaml:"uploadTimeout" split_words:"true"`
	QueryTimeout      time.Duration `yaml:"queryTimeout" split_words:"true"`
	AnswerMarker      string        `yaml:"answerMarker" split_words:"true"`
	DisableAnswerTrim bool          `yaml:"disableAnswerTrim" split_words:"true"`
}

type storeConfig struct {
	Kind     string `yaml:"kind"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redisURL" envconfig:"REDIS_URL"`
}

const (
	storeMemory = "memory"
	storeBolt   = "bolt"
	storeRedis  = "redis"
)

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appDir)
}

func defaultConfig() config {
	return config{
		Port:       "8080",
		SessionTTL: 24 * time.Hour,
		Backend: backendConfig{
			URL:           services.DefaultBackendURL,
			UploadTimeout: services.DefaultUploadTimeout,
			QueryTimeout:  services.DefaultQueryTimeout,
			AnswerMarker:  services.DefaultAnswerMarker,
		},
		Store: storeConfig{
			Kind: storeMemory,
			Path: filepath.Join(defaultConfigDir(), "sessions.db"),
		},
		Log: telemetry.LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.Config{
			Dir: "logs",
		},
	}
}

// loadConfig starts from the defaults, applies the YAML file at path, then the environment (including a
// .env file in the working directory). A missing file is only an error when required is set.
func loadConfig(path string, required bool) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return config{}, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.Backend.UploadTimeout < 0 || c.Backend.QueryTimeout < 0 {
		return fmt.Errorf("backend timeouts must not be negative")
	}
	switch c.Store.Kind {
	case storeMemory:
	case storeBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the bolt store")
		}
	case storeRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store redisURL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store kind: %s", c.Store.Kind)
	}
	return nil
}

func (b backendConfig) services() services.BackendConfig {
	return services.BackendConfig{
		URL:           b.URL,
		UploadTimeout: b.UploadTimeout,
		QueryTimeout:  b.QueryTimeout,
		AnswerMarker:  b.AnswerMarker,

		DisableAnswerTrim: b.DisableAnswerTrim,
	}
}

// open creates the configured session store. The closer releases its resources on shutdown.
func (s storeConfig) open(ctx context.Context, ttl time.Duration) (handlers.Store, io.Closer, error) {
	switch s.Kind {
	case storeBolt:
		if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
			return nil, nil, fmt.Errorf("error creating store directory: %w", err)
		}
		db, err := services.NewBoltDB(s.Path, ttl)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case storeRedis:
		r, err := services.NewRedisStore(ctx, s.RedisURL, ttl)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		m := services.NewMemoryStore(ttl)
		return m, m, nil
	}
}
