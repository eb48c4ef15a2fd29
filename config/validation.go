package config

import (
	"fmt"
	"time"
)

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Redis.Enabled() {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Security.Validate(c.IsProduction()); err != nil {
		return fmt.Errorf("security config: %w", err)
	}

	if err := c.Pix.Validate(); err != nil {
		return fmt.Errorf("pix config: %w", err)
	}

	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator config: %w", err)
	}
	if c.Simulator.Enabled && c.IsProduction() {
		return fmt.Errorf("simulator config: cannot be enabled in production")
	}

	if err := c.Billing.Validate(); err != nil {
		return fmt.Errorf("billing config: %w", err)
	}

	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *SecurityConfig) Validate(production bool) error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required - set JWT_SECRET environment variable")
	}
	if production && len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters in production")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required - set WEBHOOK_SECRET environment variable")
	}
	return nil
}

func (c *PixConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("pix key is required - set PIX_KEY environment variable")
	}
	if len(c.MerchantName) > 25 {
		return fmt.Errorf("merchant name must be at most 25 characters")
	}
	if len(c.MerchantCity) > 15 {
		return fmt.Errorf("merchant city must be at most 15 characters")
	}
	if c.Expiration <= 0 {
		return fmt.Errorf("expiration must be positive")
	}
	return nil
}

func (c *SimulatorConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Probability < 0 || c.Probability > 1 {
		return fmt.Errorf("probability must be between 0 and 1")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	return nil
}

func (c *BillingConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}
