// Package config loads the gateway configuration once at startup.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file named by CONFIG_PATH, a .env file in the working
// directory, and finally the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverLocal = "local"
	DriverMinio = "minio"

	// DefaultMaxUploadBytes is the per-file cap (10 MiB).
	DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

	// MaxRateLimitPerMinute bounds the per-IP upload allowance.
	MaxRateLimitPerMinute = 10000
)

type Config struct {
	Port          string `yaml:"port"`
	Env           string `yaml:"env"`
	PublicBaseURL string `yaml:"public_base_url"`
	CORSOrigin    string `yaml:"cors_origin"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	Storage Storage `yaml:"storage"`
	Upload  Upload  `yaml:"upload"`
}

type Storage struct {
	Driver    string `yaml:"driver"` // local, minio
	Dir       string `yaml:"dir"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type Upload struct {
	MaxBytes           int64 `yaml:"max_bytes"`
	RateLimitPerMinute int   `yaml:"rate_limit_per_minute"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:       "3000",
		Env:        "development",
		CORSOrigin: "*",
		Storage: Storage{
			Driver: DriverLocal,
			Dir:    "./uploads",
		},
		Upload: Upload{
			MaxBytes:           DefaultMaxUploadBytes,
			RateLimitPerMinute: 60,
		},
	}
}

// Load assembles the configuration from all sources and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: failed to read .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	v := NewValidator()
	cfg.applyEnv(v)
	cfg.validate(v)
	if v.HasErrors() {
		return nil, v
	}
	return cfg, nil
}

// mergeFile overlays the YAML document at path onto cfg. A missing file
// leaves cfg untouched.
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config.mergeFile: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config.mergeFile: failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(v *Validator) {
	setString(&c.Port, "PORT")
	setString(&c.Env, "APP_ENV")
	setString(&c.CORSOrigin, "CORS_ORIGIN")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.Dir, "UPLOADS_DIR")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")

	// RENDER_BASE_URL is the older name, kept for existing deployments.
	setString(&c.PublicBaseURL, "RENDER_BASE_URL")
	setString(&c.PublicBaseURL, "PUBLIC_BASE_URL")

	if raw := os.Getenv("MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.AddError("MAX_UPLOAD_BYTES", "must be an integer")
		} else {
			c.Upload.MaxBytes = n
		}
	}
	if raw := os.Getenv("TRUST_PROXY_HEADERS"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.AddError("TRUST_PROXY_HEADERS", "must be a boolean")
		} else {
			c.TrustProxyHeaders = b
		}
	}
	if raw := os.Getenv("RATE_LIMIT_PER_MINUTE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.AddError("RATE_LIMIT_PER_MINUTE", "must be an integer")
		} else {
			c.Upload.RateLimitPerMinute = n
		}
	}
}

func (c *Config) validate(v *Validator) {
	v.ValidatePort("PORT", c.Port)
	v.ValidateURL("PUBLIC_BASE_URL", c.PublicBaseURL)
	v.ValidateEnum("APP_ENV", c.Env, []string{"development", "production"})
	v.ValidateEnum("STORAGE_DRIVER", c.Storage.Driver, []string{DriverLocal, DriverMinio})

	if c.Upload.MaxBytes <= 0 {
		v.AddError("MAX_UPLOAD_BYTES", "must be a positive integer")
	}
	if c.Upload.RateLimitPerMinute < 0 || c.Upload.RateLimitPerMinute > MaxRateLimitPerMinute {
		v.AddError("RATE_LIMIT_PER_MINUTE", fmt.Sprintf("must be between 0 and %d", MaxRateLimitPerMinute))
	}
	if strings.TrimSpace(c.CORSOrigin) == "" {
		v.AddError("CORS_ORIGIN", "must not be empty")
	}

	switch c.Storage.Driver {
	case DriverLocal:
		if c.Storage.Dir == "" {
			v.AddError("UPLOADS_DIR", "must not be empty")
		}
	case DriverMinio:
		v.Require("S3_ENDPOINT", c.Storage.Endpoint)
		v.Require("S3_ACCESS_KEY", c.Storage.AccessKey)
		v.Require("S3_SECRET_KEY", c.Storage.SecretKey)
		v.Require("S3_BUCKET", c.Storage.Bucket)
	}
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
