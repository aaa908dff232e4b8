package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the station configuration. Every key can be set in config.toml
// or through a SCANSTOCK_<SECTION>_<KEY> environment variable.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig selects the inventory store. Path is only read by the sqlite driver.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig enables the shared endpoint lock and the product cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// LockTTL bounds how long a crashed holder keeps an endpoint locked
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	ScanRateLimit    float64       `mapstructure:"scan_rate_limit"` // scan triggers per second per client
	ScanRateBurst    int           `mapstructure:"scan_rate_burst"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// ScannerConfig drives acquisition: camera, consensus size, retry policy and preview
type ScannerConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	RequiredReads     int           `mapstructure:"required_reads"`
	MaxConnectRetries int           `mapstructure:"max_connect_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	MaxReadFailures   int           `mapstructure:"max_read_failures"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	Decoder           string        `mapstructure:"decoder"`
	PreviewEnabled    bool          `mapstructure:"preview_enabled"`
	PreviewScale      float64       `mapstructure:"preview_scale"`
	PreviewQuality    int           `mapstructure:"preview_quality"`
}

// TelemetryConfig controls the OTLP pipeline and database instrumentation
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // statement text on spans; never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

const (
	DecoderZXing    = "zxing"
	DecoderOpenCVQR = "opencv-qr"
	DecoderAll      = "all"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// defaults lists every key viper knows. A key must be listed here for its
// environment variable to be picked up by Unmarshal.
var defaults = map[string]any{
	"app.name": "scanstock",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverPostgres,
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "inventory",
	"database.sslmode":            "disable",
	"database.path":               "",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.auto_migrate":       true,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.lock_ttl": 2 * time.Minute,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout": 15 * time.Second,
	// a scan request is held open for the whole acquisition
	"http.write_timeout":      90 * time.Second,
	"http.idle_timeout":       60 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      1 << 20,
	"http.scan_rate_limit":    1.0,
	"http.scan_rate_burst":    3,
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "HEAD", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "X-Request-ID"},
	"http.trusted_proxies":    []string{},

	"scanner.endpoint":            "http://192.168.43.1:8080/video",
	"scanner.required_reads":      10,
	"scanner.max_connect_retries": 5,
	"scanner.retry_delay":         time.Second,
	"scanner.max_read_failures":   3,
	"scanner.session_timeout":     time.Minute,
	"scanner.decoder":             DecoderAll,
	"scanner.preview_enabled":     true,
	"scanner.preview_scale":       0.5,
	"scanner.preview_quality":     70,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "scanstock",
	"telemetry.insecure":                false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads config.toml from ".", "./backend" or "/app" when present,
// overlays SCANSTOCK_* environment variables and validates the result
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCANSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "scanstock.db"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Scanner.validate(); err != nil {
		return err
	}

	// The endpoint lock is not refreshed, so it has to outlive any session holding it
	if c.Redis.Enabled && c.Redis.LockTTL <= c.Scanner.SessionTimeout {
		return fmt.Errorf("redis.lock_ttl (%s) must be longer than scanner.session_timeout (%s)",
			c.Redis.LockTTL, c.Scanner.SessionTimeout)
	}
	if c.HTTP.ScanRateLimit < 0 {
		return errors.New("http.scan_rate_limit cannot be negative")
	}
	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", r)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	switch {
	case d.Driver != DriverPostgres && d.Driver != DriverSQLite:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, d.Driver)
	case d.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case d.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case d.MaxIdleConns > d.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			d.MaxIdleConns, d.MaxOpenConns)
	}
	return nil
}

func (s *ScannerConfig) validate() error {
	switch {
	case s.RequiredReads < 1:
		return errors.New("scanner.required_reads must be at least 1")
	case s.MaxConnectRetries < 0:
		return errors.New("scanner.max_connect_retries cannot be negative")
	case s.MaxReadFailures < 0:
		return errors.New("scanner.max_read_failures cannot be negative")
	case s.RetryDelay < 0:
		return errors.New("scanner.retry_delay cannot be negative")
	case s.SessionTimeout <= 0:
		return errors.New("scanner.session_timeout must be positive")
	case s.PreviewScale <= 0 || s.PreviewScale > 1:
		return fmt.Errorf("scanner.preview_scale must be in (0, 1], got %g", s.PreviewScale)
	case s.PreviewQuality < 1 || s.PreviewQuality > 100:
		return fmt.Errorf("scanner.preview_quality must be between 1 and 100, got %d", s.PreviewQuality)
	case s.Decoder != DecoderZXing && s.Decoder != DecoderOpenCVQR && s.Decoder != DecoderAll:
		return fmt.Errorf("scanner.decoder must be one of %q, %q, %q, got %q",
			DecoderZXing, DecoderOpenCVQR, DecoderAll, s.Decoder)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.Database.Driver == DriverPostgres {
		if c.Database.Password == "" {
			return errors.New("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return errors.New("database.sslmode cannot be 'disable' in production")
		}
	}
	if slices.Contains(c.HTTP.CORSAllowOrigins, "*") {
		return errors.New("http.cors_allow_origins cannot be '*' in production")
	}
	if c.Telemetry.DBLogFullSQL {
		return errors.New("telemetry.db_log_full_sql must be false in production")
	}
	return nil
}

// DSN is the postgres URL with escaped credentials, or the sqlite file path
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func (r *RedisConfig) Addr() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}
