package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"CoinPull/pkg/logger"
	"CoinPull/pkg/util"
)

// MinRequestDelay is the smallest pause allowed between upstream requests.
const MinRequestDelay = 1500 * time.Millisecond

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Logger      logger.Config `yaml:"logger"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	CoinGecko struct {
		BaseURL      string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3" validate:"required,url"`
		APIKey       string        `yaml:"api_key"`
		VsCurrency   string        `yaml:"vs_currency" default:"usd" validate:"required"`
		TopK         int           `yaml:"top_k" default:"3" validate:"min=1,max=250"`
		HistoryDays  int           `yaml:"history_days" default:"30" validate:"min=1,max=365"`
		RequestDelay time.Duration `yaml:"request_delay" default:"1500ms"`
		CoolDown     time.Duration `yaml:"cool_down" default:"2m"`
		Timeout      time.Duration `yaml:"timeout" default:"20s"`
	} `yaml:"coingecko"`
	Analysis struct {
		Horizon        int           `yaml:"horizon" default:"6" validate:"min=1,max=365"`
		ReportTTL      time.Duration `yaml:"report_ttl" default:"1h"`
		LockTTL        time.Duration `yaml:"lock_ttl" default:"10m"`
		PublishTimeout time.Duration `yaml:"publish_timeout" default:"5s"`
	} `yaml:"analysis"`
	Demo struct {
		Seed int64 `yaml:"seed"`
	} `yaml:"demo"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"5" validate:"gt=0"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.1" validate:"gt=0"`
	} `yaml:"ratelimit"`
	Cache struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		MaxSize int    `yaml:"max_size" default:"1000" validate:"min=1"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"coinpull"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"coinpull.snapshots"`
		LogTopic     string        `yaml:"log_topic" default:"coinpull.logs"`
		RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"min=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
		AutoCreate   bool          `yaml:"auto_create_topics"`
	} `yaml:"kafka"`
	Logs struct {
		Collect       bool          `yaml:"collect"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
		MaxBatchSize  int           `yaml:"max_batch_size" default:"100"`
	} `yaml:"logs"`
	Scheduler struct {
		RefreshCron string `yaml:"refresh_cron"`
		Mode        string `yaml:"mode" default:"live" validate:"oneof=live demo"`
	} `yaml:"scheduler"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.CoinGecko.APIKey = v
	}
	if v := getenv("COINGECKO_BASE_URL"); v != "" {
		c.CoinGecko.BaseURL = v
	}
	c.CoinGecko.TopK = util.ParseIntDefault(getenv("COINGECKO_TOP_K"), c.CoinGecko.TopK)
	c.CoinGecko.RequestDelay = util.ParseDurationDefault(getenv("COINGECKO_REQUEST_DELAY"), c.CoinGecko.RequestDelay)
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REFRESH_CRON"); v != "" {
		c.Scheduler.RefreshCron = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = strings.ToLower(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on '%s' rule", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if c.CoinGecko.RequestDelay < MinRequestDelay {
		return fmt.Errorf("coingecko.request_delay must be at least %s, got %s", MinRequestDelay, c.CoinGecko.RequestDelay)
	}
	if c.CoinGecko.CoolDown <= 0 {
		return fmt.Errorf("coingecko.cool_down must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Scheduler.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.Scheduler.RefreshCron); err != nil {
			return fmt.Errorf("scheduler.refresh_cron: %w", err)
		}
	}
	return nil
}

// Addr returns the host:port the API server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
