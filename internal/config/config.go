package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Vendor    VendorConfig    `yaml:"vendor"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Cache     CacheConfig     `yaml:"cache"`
	Tolerance ToleranceConfig `yaml:"tolerance"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Events    EventsConfig    `yaml:"events"`
	Auth      AuthConfig      `yaml:"auth"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

type VendorConfig struct {
	// Provider selects the concrete vendor implementation: fuse, alpaca, mock.
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	BackoffMs      int    `yaml:"backoff_ms"`

	// Watchlist is the symbol universe for providers without a priced
	// listing endpoint (alpaca).
	Watchlist []string `yaml:"watchlist"`
}

func (v VendorConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

func (v VendorConfig) Backoff() time.Duration {
	return time.Duration(v.BackoffMs) * time.Millisecond
}

type BreakerConfig struct {
	ErrorThresholdPct float64 `yaml:"error_threshold_pct"`
	WindowSeconds     int     `yaml:"window_seconds"`
	ResetSeconds      int     `yaml:"reset_seconds"`
	MinRequests       int     `yaml:"min_requests"`
}

func (b BreakerConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

func (b BreakerConfig) ResetTimeout() time.Duration {
	return time.Duration(b.ResetSeconds) * time.Second
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type ToleranceConfig struct {
	MaxDeviationPct float64 `yaml:"max_deviation_pct"`
}

type StorageConfig struct {
	// Driver selects the ledger/journal backing store: memory, redis, postgres.
	Driver           string `yaml:"driver"`
	MaxUpdateRetries int    `yaml:"max_update_retries"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Load reads the yaml config at path, falling back to defaults and env
// overrides when the file does not exist.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Vendor.Provider == "" {
		c.Vendor.Provider = "mock"
	}
	if c.Vendor.TimeoutSeconds == 0 {
		c.Vendor.TimeoutSeconds = 5
	}
	if c.Vendor.MaxRetries == 0 {
		c.Vendor.MaxRetries = 3
	}
	if c.Vendor.BackoffMs == 0 {
		c.Vendor.BackoffMs = 1000
	}
	if c.Breaker.ErrorThresholdPct == 0 {
		c.Breaker.ErrorThresholdPct = 50
	}
	if c.Breaker.WindowSeconds == 0 {
		c.Breaker.WindowSeconds = 60
	}
	if c.Breaker.ResetSeconds == 0 {
		c.Breaker.ResetSeconds = 15
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 5
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Tolerance.MaxDeviationPct == 0 {
		c.Tolerance.MaxDeviationPct = 2
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxUpdateRetries == 0 {
		c.Storage.MaxUpdateRetries = 3
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "trade_events"
	}
}

func (c *Config) loadFromEnv() error {
	if env := os.Getenv("APP_ENV"); env != "" {
		c.App.Env = env
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.App.Port = p
		}
	}

	if provider := os.Getenv("VENDOR_PROVIDER"); provider != "" {
		c.Vendor.Provider = provider
	}

	if baseURL := os.Getenv("VENDOR_API_BASE_URL"); baseURL != "" {
		c.Vendor.BaseURL = baseURL
	}

	if apiKey := os.Getenv("VENDOR_API_KEY"); apiKey != "" {
		c.Vendor.APIKey = apiKey
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		dbConfig, err := parseDatabaseURL(url)
		if err != nil {
			return err
		}
		c.Database = *dbConfig
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		host, port, ok := strings.Cut(addr, ":")
		if !ok {
			return fmt.Errorf("invalid REDIS_ADDR format: %s", addr)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid redis port: %v", err)
		}
		c.Redis.Host = host
		c.Redis.Port = p
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Events.Brokers = strings.Split(brokers, ",")
		c.Events.Enabled = true
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}

	return nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.App.Port)
	}

	switch c.Vendor.Provider {
	case "fuse":
		if c.Vendor.BaseURL == "" || c.Vendor.APIKey == "" {
			return fmt.Errorf("vendor base_url and api_key are required for the fuse provider")
		}
	case "alpaca":
		if len(c.Vendor.Watchlist) == 0 {
			return fmt.Errorf("vendor watchlist is required for the alpaca provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown vendor provider: %s", c.Vendor.Provider)
	}

	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis storage driver")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Tolerance.MaxDeviationPct < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}

	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events brokers cannot be empty when events are enabled")
	}

	return nil
}

func parseDatabaseURL(url string) (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{
		SSLMode: "disable",
	}

	url = strings.TrimPrefix(url, "postgresql://")
	url = strings.TrimPrefix(url, "postgres://")

	parts := strings.Split(url, "@")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid database URL format")
	}

	credentials := strings.Split(parts[0], ":")
	if len(credentials) != 2 {
		return nil, fmt.Errorf("invalid credentials format")
	}
	cfg.User = credentials[0]
	cfg.Password = credentials[1]

	hostInfo := strings.Split(parts[1], "/")
	if len(hostInfo) != 2 {
		return nil, fmt.Errorf("invalid host info format")
	}

	hostPort := strings.Split(hostInfo[0], ":")
	if len(hostPort) != 2 {
		return nil, fmt.Errorf("invalid host/port format")
	}
	cfg.Host = hostPort[0]
	port, err := strconv.Atoi(hostPort[1])
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %v", err)
	}
	cfg.Port = port

	dbNameOpts := strings.Split(hostInfo[1], "?")
	cfg.Name = dbNameOpts[0]

	if len(dbNameOpts) > 1 {
		opts := strings.Split(dbNameOpts[1], "&")
		for _, opt := range opts {
			kv := strings.Split(opt, "=")
			if len(kv) == 2 && kv[0] == "sslmode" {
				cfg.SSLMode = kv[1]
			}
		}
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
