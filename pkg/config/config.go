package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"CreditIntel/pkg/logger"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger logger.Config `yaml:"logger"`
	Storage struct {
		Type     string `yaml:"type" default:"postgres"`
		Postgres struct {
			DSN      string `yaml:"dsn"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"5432"`
			User     string `yaml:"user" default:"credit"`
			Password string `yaml:"password"`
			Database string `yaml:"database" default:"credit"`
			SSLMode  string `yaml:"ssl_mode" default:"disable"`
			MaxConns int32  `yaml:"max_conns" default:"10"`
			MinConns int32  `yaml:"min_conns" default:"2"`
		} `yaml:"postgres"`
		SQLite struct {
			Path string `yaml:"path" default:"data/credit.db"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"true"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"erp"`
		HistoryDatabase  string        `yaml:"history_database" default:"credit"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled" default:"true"`
		Brokers       []string `yaml:"brokers"`
		ActivityTopic string   `yaml:"activity_topic" default:"erp.client-activity"`
		SnapshotTopic string   `yaml:"snapshot_topic" default:"credit.snapshots"`
		LogTopic      string   `yaml:"log_topic" default:"credit.logs"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"credit-engine"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"erp.client-activity.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		SettingsTTL   time.Duration `yaml:"settings_ttl" default:"1m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"30s"`
		CleanupEvery  time.Duration `yaml:"cleanup_every" default:"5m"`
	} `yaml:"cache"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"4"`
		MaxRetries int           `yaml:"max_retries" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled     bool          `yaml:"enabled"`
		Spec        string        `yaml:"spec" default:"0 0 2 * * *"`
		ActiveSince time.Duration `yaml:"active_since" default:"2160h"`
	} `yaml:"scheduler"`
	Collector struct {
		Type       string        `yaml:"type" default:"clickhouse"`
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		MaxRetries int           `yaml:"max_retries" default:"2"`
		APIToken   string        `yaml:"api_token"`
	} `yaml:"collector"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     int     `yaml:"capacity" default:"30"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"ratelimit"`
	Credit struct {
		WindowDays   int            `yaml:"window_days" default:"90"`
		Timeout      time.Duration  `yaml:"timeout" default:"10s"`
		BatchWorkers int            `yaml:"batch_workers" default:"8"`
		Learning     LearningConfig `yaml:"learning"`
		Engine       EngineConfig   `yaml:"engine"`
	} `yaml:"credit"`
}

// LearningConfig holds the fallback thresholds used until settings are saved.
type LearningConfig struct {
	MinOrders       int `yaml:"min_orders" default:"12"`
	MinTenureDays   int `yaml:"min_tenure_days" default:"180"`
	MinRecentOrders int `yaml:"min_recent_orders" default:"3"`
}

// EngineConfig mirrors scoring.Policy so coefficients can be tuned per deployment.
type EngineConfig struct {
	TrendThreshold   float64 `yaml:"trend_threshold" default:"5"`
	NeutralScore     float64 `yaml:"neutral_score" default:"50"`
	GrowthScale      float64 `yaml:"growth_scale" default:"0.5"`
	PayGraceDays     float64 `yaml:"pay_grace_days" default:"15"`
	PayMaxDays       float64 `yaml:"pay_max_days" default:"90"`
	MarginFloor      float64 `yaml:"margin_floor" default:"-0.10"`
	MarginTarget     float64 `yaml:"margin_target" default:"0.40"`
	AgingBestDays    float64 `yaml:"aging_best_days" default:"15"`
	AgingWorstDays   float64 `yaml:"aging_worst_days" default:"120"`
	RepaymentTarget  float64 `yaml:"repayment_target" default:"1.0"`
	TenureCapMonths  float64 `yaml:"tenure_cap_months" default:"24"`
	LimitMultiplier  float64 `yaml:"limit_multiplier" default:"2.0"`
	MinimumLimit     float64 `yaml:"minimum_limit" default:"1000"`
	LearningCeiling  float64 `yaml:"learning_ceiling" default:"5000"`
	LearningFraction float64 `yaml:"learning_fraction" default:"0.25"`
	RoundTo          float64 `yaml:"round_to" default:"100"`
}

// Parse applies `default` tags, decodes YAML over them and validates.
// Defaults go first so an explicit `false` in YAML survives.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CREDIT_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("COLLECTOR_BASE_URL"); v != "" {
		c.Collector.BaseURL = v
		c.Collector.Type = "http"
	}
	if v := os.Getenv("COLLECTOR_API_TOKEN"); v != "" {
		c.Collector.APIToken = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.type must be 'postgres' or 'sqlite', got '%s'", c.Storage.Type)
	}
	switch c.Collector.Type {
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("collector.type 'clickhouse' requires clickhouse.enabled")
		}
	case "http":
		if c.Collector.BaseURL == "" {
			return fmt.Errorf("collector.base_url is required for the http collector")
		}
	default:
		return fmt.Errorf("collector.type must be 'clickhouse' or 'http', got '%s'", c.Collector.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Credit.WindowDays <= 0 {
		return fmt.Errorf("credit.window_days must be > 0")
	}
	if c.Credit.Engine.MinimumLimit > c.Credit.Engine.LearningCeiling {
		return fmt.Errorf("credit.engine.minimum_limit must not exceed learning_ceiling")
	}
	if c.Credit.Engine.LearningFraction <= 0 || c.Credit.Engine.LearningFraction > 1 {
		return fmt.Errorf("credit.engine.learning_fraction must be within (0,1]")
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
	}
	return nil
}
