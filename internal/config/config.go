package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const devSecret = "supersecret-dev-key"

var ErrMissingSecret = errors.New("AUTH_HMAC_SECRET must be set in online mode")

type Config struct {
	Env       string
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs|gcs
	BlobBasePath string // for fs
	GCSBucket    string
	GCSPublicURL string
	GCSEmulator  string

	CacheDriver string // none|redis
	RedisAddr   string
	CacheTTL    time.Duration

	AuthSecret       string
	AuthTokenTTL     time.Duration
	AuthCookieSecure bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	UploadMaxBytes  int64
	LoginRatePerMin int

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// CORSOrigins returns the origin list for the current mode.
func (c *Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func (c *Config) SeedAdmin() bool { return c.AdminEmail != "" && c.AdminPassword != "" }

// Load reads .env (if any), then ./config/config.yaml (if any), then the
// environment. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	defaults := map[string]any{
		"app_env":              "local",
		"mode":                 string(ModeOffline),
		"http_addr":            ":8080",
		"public_url":           "",
		"db_driver":            "sqlite",
		"db_dsn":               "",
		"blob_driver":          "fs",
		"blob_base_path":       "./data/assets",
		"gcs_bucket":           "",
		"gcs_public_url":       "",
		"gcs_emulator_host":    "",
		"cache_driver":         "none",
		"redis_addr":           "localhost:6379",
		"cache_ttl":            "5m",
		"auth_hmac_secret":     "",
		"auth_token_ttl":       "168h",
		"auth_cookie_secure":   false,
		"cors_origins_online":  "",
		"cors_origins_offline": "http://localhost:3000",
		"upload_max_bytes":     5 << 20,
		"login_rate_per_min":   10,
		"admin_email":          "",
		"admin_password":       "",
		"admin_name":           "Admin",
	}
	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	cfg := &Config{
		Env:                v.GetString("app_env"),
		Mode:               Mode(strings.ToLower(v.GetString("mode"))),
		HTTPAddr:           v.GetString("http_addr"),
		PublicURL:          strings.TrimRight(v.GetString("public_url"), "/"),
		DBDriver:           v.GetString("db_driver"),
		DBDSN:              v.GetString("db_dsn"),
		BlobDriver:         v.GetString("blob_driver"),
		BlobBasePath:       v.GetString("blob_base_path"),
		GCSBucket:          v.GetString("gcs_bucket"),
		GCSPublicURL:       v.GetString("gcs_public_url"),
		GCSEmulator:        v.GetString("gcs_emulator_host"),
		CacheDriver:        v.GetString("cache_driver"),
		RedisAddr:          v.GetString("redis_addr"),
		CacheTTL:           v.GetDuration("cache_ttl"),
		AuthSecret:         v.GetString("auth_hmac_secret"),
		AuthTokenTTL:       v.GetDuration("auth_token_ttl"),
		AuthCookieSecure:   v.GetBool("auth_cookie_secure"),
		CORSOriginsOnline:  splitCSV(v.GetString("cors_origins_online")),
		CORSOriginsOffline: splitCSV(v.GetString("cors_origins_offline")),
		UploadMaxBytes:     v.GetInt64("upload_max_bytes"),
		LoginRatePerMin:    v.GetInt("login_rate_per_min"),
		AdminEmail:         v.GetString("admin_email"),
		AdminPassword:      v.GetString("admin_password"),
		AdminName:          v.GetString("admin_name"),
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("invalid MODE %q", c.Mode)
	}
	if c.AuthSecret == "" {
		if c.Mode == ModeOnline {
			return ErrMissingSecret
		}
		c.AuthSecret = devSecret
	}
	switch c.BlobDriver {
	case "fs":
	case "gcs":
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when BLOB_DRIVER=gcs")
		}
	default:
		return fmt.Errorf("invalid BLOB_DRIVER %q", c.BlobDriver)
	}
	if c.AuthTokenTTL <= 0 {
		c.AuthTokenTTL = 7 * 24 * time.Hour
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = 5 << 20
	}
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
