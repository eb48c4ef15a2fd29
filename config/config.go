package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Environment string           `json:"environment"`
	Database    DatabaseConfig   `json:"database"`
	Server      ServerConfig     `json:"server"`
	Redis       RedisConfig      `json:"redis"`
	Security    SecurityConfig   `json:"security"`
	Pix         PixConfig        `json:"pix"`
	Simulator   SimulatorConfig  `json:"simulator"`
	Billing     BillingConfig    `json:"billing"`
	Monitoring  MonitoringConfig `json:"monitoring"`
}

type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	SSLMode      string        `json:"sslmode"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
	MaxIdleTime  time.Duration `json:"max_idle_time"`
	ReplicaDSNs  []string      `json:"replica_dsns"`
}

type ServerConfig struct {
	Port           string        `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	MaxHeaderBytes int           `json:"max_header_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

type RedisConfig struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
	PoolSize int           `json:"pool_size"`
	MinIdle  int           `json:"min_idle"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type SecurityConfig struct {
	JWTSecret        string        `json:"jwt_secret"`
	JWTExpiration    time.Duration `json:"jwt_expiration"`
	WebhookSecret    string        `json:"webhook_secret"`
	IdempotencyTTL   time.Duration `json:"idempotency_ttl"`
	RateLimitEnabled bool          `json:"rate_limit_enabled"`
	RateLimitRPS     float64       `json:"rate_limit_rps"`
	RateLimitBurst   int           `json:"rate_limit_burst"`
}

type PixConfig struct {
	Key          string        `json:"key"`
	MerchantName string        `json:"merchant_name"`
	MerchantCity string        `json:"merchant_city"`
	Expiration   time.Duration `json:"expiration"`
}

type SimulatorConfig struct {
	Enabled     bool          `json:"enabled"`
	Interval    time.Duration `json:"interval"`
	Probability float64       `json:"probability"`
	BatchSize   int           `json:"batch_size"`
	WebhookURL  string        `json:"webhook_url"`
}

type BillingConfig struct {
	Timezone string `json:"timezone"`
}

type MonitoringConfig struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

func LoadConfig() (*Config, error) {
	config := &Config{}

	configDir, err := filepath.Abs("config")
	if err != nil {
		return nil, err
	}
	if err := config.loadFile(filepath.Join(configDir, "config.json")); err != nil {
		return nil, err
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if config.Environment == "" {
		config.Environment = "development"
	}

	config.loadFromEnv()
	config.setEnvironmentDefaults()

	return config, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	if replicas := os.Getenv("DB_REPLICA_DSNS"); replicas != "" {
		c.Database.ReplicaDSNs = strings.Split(replicas, ",")
	}

	setString(&c.Server.Port, "SERVER_PORT")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Security.JWTSecret, "JWT_SECRET")
	setString(&c.Security.WebhookSecret, "WEBHOOK_SECRET")
	setBool(&c.Security.RateLimitEnabled, "RATE_LIMIT_ENABLED")

	setString(&c.Pix.Key, "PIX_KEY")
	setString(&c.Pix.MerchantName, "PIX_MERCHANT_NAME")
	setString(&c.Pix.MerchantCity, "PIX_MERCHANT_CITY")
	setDuration(&c.Pix.Expiration, "PIX_EXPIRATION")

	setBool(&c.Simulator.Enabled, "SIMULATOR_ENABLED")
	setDuration(&c.Simulator.Interval, "SIMULATOR_INTERVAL")
	setFloat(&c.Simulator.Probability, "SIMULATOR_PROBABILITY")
	setString(&c.Simulator.WebhookURL, "SIMULATOR_WEBHOOK_URL")

	setString(&c.Billing.Timezone, "BILLING_TIMEZONE")

	setString(&c.Monitoring.LogLevel, "LOG_LEVEL")
	setString(&c.Monitoring.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (c *Config) setEnvironmentDefaults() {
	c.setCommonDefaults()

	switch c.Environment {
	case "production":
		c.setProductionDefaults()
	case "staging":
		c.setStagingDefaults()
	default: // development
		c.setDevelopmentDefaults()
	}
}

func (c *Config) setCommonDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Security.JWTExpiration == 0 {
		c.Security.JWTExpiration = 24 * time.Hour
	}
	if c.Security.IdempotencyTTL == 0 {
		c.Security.IdempotencyTTL = 24 * time.Hour
	}
	if c.Pix.Expiration == 0 {
		c.Pix.Expiration = 24 * time.Hour
	}
	if c.Pix.MerchantName == "" {
		c.Pix.MerchantName = "CONDOMINIO"
	}
	if c.Pix.MerchantCity == "" {
		c.Pix.MerchantCity = "SAO PAULO"
	}
	if c.Simulator.Interval == 0 {
		c.Simulator.Interval = 30 * time.Second
	}
	if c.Simulator.Probability == 0 {
		c.Simulator.Probability = 0.3
	}
	if c.Simulator.BatchSize == 0 {
		c.Simulator.BatchSize = 50
	}
	if c.Simulator.WebhookURL == "" {
		c.Simulator.WebhookURL = "http://localhost:" + c.Server.Port + "/api/pix/webhook"
	}
	if c.Billing.Timezone == "" {
		c.Billing.Timezone = "America/Sao_Paulo"
	}
	if c.Monitoring.LogFormat == "" {
		c.Monitoring.LogFormat = "json"
	}
}

func (c *Config) setDevelopmentDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 1000.0
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 2000
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "debug"
	}
}

func (c *Config) setStagingDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 12 * time.Hour
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 500.0
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 1000
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

func (c *Config) setProductionDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 20
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = time.Hour
	}
	if c.Database.MaxIdleTime == 0 {
		c.Database.MaxIdleTime = 10 * time.Minute
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdle == 0 {
		c.Redis.MinIdle = 5
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 100.0
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 200
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location is the timezone whose calendar decides what "today" is.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SimulatorEnabled reports whether the PIX payment simulator may run. It is
// never available in production.
func (c *Config) SimulatorEnabled() bool {
	return c.Simulator.Enabled && !c.IsProduction()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsStaging() bool {
	return c.Environment == "staging"
}
