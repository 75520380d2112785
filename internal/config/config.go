// Package config models ledger.yml plus the environment overrides used in
// container deployments. The file carries the durable tuning knobs; secrets
// and endpoints come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models ledger.yml.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Notification struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notification"`

	Scheduler struct {
		MaxParallelTasks int      `yaml:"max_parallel_tasks"`
		TaskMaxTries     int      `yaml:"task_max_tries"`
		PollInterval     Duration `yaml:"poll_interval"`
		SweepInterval    Duration `yaml:"sweep_interval"`
		RetryInterval    Duration `yaml:"retry_interval"`
		AbortInterval    Duration `yaml:"abort_interval"`
	} `yaml:"scheduler"`
}

// Duration is a time.Duration that unmarshals from yaml strings like "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads the config file when present, applies defaults and environment
// overrides, and validates the result. An absent file is fine; everything
// can come from the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config yaml: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Name = "ledger"
	cfg.Database.SSLMode = "disable"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Scheduler.MaxParallelTasks = 8
	cfg.Scheduler.TaskMaxTries = 10
	cfg.Scheduler.PollInterval = Duration(500 * time.Millisecond)
	cfg.Scheduler.SweepInterval = Duration(time.Minute)
	cfg.Scheduler.RetryInterval = Duration(10 * time.Minute)
	cfg.Scheduler.AbortInterval = Duration(time.Hour)
	return &cfg
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Notification.WebhookURL, "WEBHOOK_URL")
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config.server.port is required")
	}
	if c.Database.Host == "" || c.Database.Port == "" {
		return fmt.Errorf("config.database.host and port are required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("config.database.name is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config.redis.addr is required")
	}
	if c.Scheduler.MaxParallelTasks <= 0 {
		return fmt.Errorf("config.scheduler.max_parallel_tasks must be positive")
	}
	if c.Scheduler.TaskMaxTries <= 0 {
		return fmt.Errorf("config.scheduler.task_max_tries must be positive")
	}
	if c.Scheduler.PollInterval <= 0 || c.Scheduler.SweepInterval <= 0 {
		return fmt.Errorf("config.scheduler intervals must be positive")
	}
	return nil
}

// ConnectionString builds the postgres connection string.
func (c *Config) ConnectionString() string {
	if s := os.Getenv("DB_CONN_STR"); s != "" {
		return s
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.Name, c.Database.SSLMode)
}
