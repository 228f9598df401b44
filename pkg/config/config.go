package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"TwsePulse/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Upstream struct {
		QuoteURL    string        `yaml:"quote_url"`
		HistoryURL  string        `yaml:"history_url"`
		HoldingsURL string        `yaml:"holdings_url"`
		Timeout     time.Duration `yaml:"timeout"`
		UserAgent   string        `yaml:"user_agent"`
	} `yaml:"upstream"`
	Fetch struct {
		MinRequestInterval time.Duration `yaml:"min_request_interval"`
		MaxRetries         int           `yaml:"max_retries"`
		BaseDelay          time.Duration `yaml:"base_delay"`
		MaxBackoff         time.Duration `yaml:"max_backoff"`
	} `yaml:"fetch"`
	Cache struct {
		MaxEntries int `yaml:"max_entries"`
		TTL        struct {
			Quote    time.Duration `yaml:"quote"`
			History  time.Duration `yaml:"history"`
			Holdings time.Duration `yaml:"holdings"`
		} `yaml:"ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Analytics struct {
		HistoryDays      int      `yaml:"history_days"`
		ETFs             []string `yaml:"etfs"`
		OverlapThreshold float64  `yaml:"overlap_threshold"`
	} `yaml:"analytics"`
	Scheduler struct {
		Enabled     bool   `yaml:"enabled"`
		OverlapCron string `yaml:"overlap_cron"`
	} `yaml:"scheduler"`
	Kafka struct {
		Enabled           bool          `yaml:"enabled"`
		Brokers           []string      `yaml:"brokers"`
		SnapshotTopic     string        `yaml:"snapshot_topic"`
		NotificationTopic string        `yaml:"notification_topic"`
		RequiredAcks      int           `yaml:"required_acks"`
		Compression       string        `yaml:"compression"`
		MaxAttempts       int           `yaml:"max_attempts"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("QUOTE_URL"); v != "" {
		c.Upstream.QuoteURL = v
	}
	if v := os.Getenv("ETF_SYMBOLS"); v != "" {
		c.Analytics.ETFs = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("OVERLAP_CRON"); v != "" {
		c.Scheduler.OverlapCron = v
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		if n := util.ParseIntDefault(v, 0); n > 0 {
			c.Cache.MaxEntries = n
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Upstream.QuoteURL == "" {
		return fmt.Errorf("upstream.quote_url is required")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be positive")
	}
	if c.Fetch.BaseDelay <= 0 {
		return fmt.Errorf("fetch.base_delay must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}
	if c.Cache.TTL.Quote <= 0 || c.Cache.TTL.History <= 0 || c.Cache.TTL.Holdings <= 0 {
		return fmt.Errorf("cache.ttl values must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.OverlapCron == "" {
		return fmt.Errorf("scheduler.overlap_cron is required when scheduler is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
