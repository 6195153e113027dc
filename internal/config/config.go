package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the gateway and worker binaries need. Values come
// from an optional yaml file with environment variable overrides
// (REDIS_ADDR, QUEUE_NAMESPACE, ...).
type Config struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Wait     WaitConfig     `mapstructure:"wait"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	NATS     NATSConfig     `mapstructure:"nats"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

type QueueConfig struct {
	Namespace    string        `mapstructure:"namespace"`
	PopTimeout   time.Duration `mapstructure:"pop_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type PostgresConfig struct {
	DSN           string `mapstructure:"dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// TrackerConfig carries the sliding-window sizes and thresholds for both
// trackers. Defaults mirror production tuning: spam is >20 messages in 10s,
// engagement needs 6 messages from 3 distinct actors within 20s.
type TrackerConfig struct {
	SpamWindow       time.Duration `mapstructure:"spam_window"`
	SpamThreshold    int           `mapstructure:"spam_threshold"`
	ChatWindow       time.Duration `mapstructure:"chat_window"`
	ChatActiveWindow time.Duration `mapstructure:"chat_active_window"`
	ChatMinMessages  int           `mapstructure:"chat_min_messages"`
	ChatMinActors    int           `mapstructure:"chat_min_actors"`
	ChatCooldown     time.Duration `mapstructure:"chat_cooldown"`
	ChatChance       float64       `mapstructure:"chat_chance"`
	ReapInterval     time.Duration `mapstructure:"reap_interval"`
	ReapIdle         time.Duration `mapstructure:"reap_idle"`
}

// WaitConfig is the per-job-class result wait budget. These belong to the
// caller, not the queue.
type WaitConfig struct {
	SafetyScan    time.Duration `mapstructure:"safety_scan"`
	LLMReply      time.Duration `mapstructure:"llm_reply"`
	SafetyScanTTL time.Duration `mapstructure:"safety_scan_ttl"`
	LLMReplyTTL   time.Duration `mapstructure:"llm_reply_ttl"`
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")

	v.SetDefault("queue.namespace", "guildest")
	v.SetDefault("queue.pop_timeout", 5*time.Second)
	v.SetDefault("queue.poll_interval", 250*time.Millisecond)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrations_dir", "migrations")

	v.SetDefault("tracker.spam_window", 10*time.Second)
	v.SetDefault("tracker.spam_threshold", 20)
	v.SetDefault("tracker.chat_window", 30*time.Second)
	v.SetDefault("tracker.chat_active_window", 20*time.Second)
	v.SetDefault("tracker.chat_min_messages", 6)
	v.SetDefault("tracker.chat_min_actors", 3)
	v.SetDefault("tracker.chat_cooldown", 45*time.Second)
	v.SetDefault("tracker.chat_chance", 0.35)
	v.SetDefault("tracker.reap_interval", 5*time.Minute)
	v.SetDefault("tracker.reap_idle", 30*time.Minute)

	v.SetDefault("wait.safety_scan", 30*time.Second)
	v.SetDefault("wait.llm_reply", 75*time.Second)
	v.SetDefault("wait.safety_scan_ttl", 90*time.Second)
	v.SetDefault("wait.llm_reply_ttl", 180*time.Second)

	v.SetDefault("worker.count", 3)
	v.SetDefault("http.port", "8080")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
}

// Load reads configuration from configPath (optional) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Queue.Namespace == "" {
		return fmt.Errorf("queue namespace cannot be empty")
	}
	if c.Tracker.SpamThreshold <= 0 {
		return fmt.Errorf("tracker spam threshold must be positive, got %d", c.Tracker.SpamThreshold)
	}
	if c.Tracker.SpamWindow <= 0 || c.Tracker.ChatWindow <= 0 {
		return fmt.Errorf("tracker windows must be positive")
	}
	if c.Tracker.ChatActiveWindow > c.Tracker.ChatWindow {
		return fmt.Errorf("chat active window %s exceeds retention window %s",
			c.Tracker.ChatActiveWindow, c.Tracker.ChatWindow)
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Worker.Count)
	}
	return nil
}
