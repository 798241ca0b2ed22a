package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name              string        `yaml:"name"`
	Workers           int           `yaml:"workers"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxReceiveCount   int           `yaml:"max_receive_count"`
}

type StageConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StagesConfig struct {
	Slides   StageConfig `yaml:"slides"`
	Stitch   StageConfig `yaml:"stitch"`
	Optimize StageConfig `yaml:"optimize"`
	Link     StageConfig `yaml:"link"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Stages   StagesConfig   `yaml:"stages"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	for name, sc := range map[string]StageConfig{
		"stages.slides":   cfg.Stages.Slides,
		"stages.stitch":   cfg.Stages.Stitch,
		"stages.optimize": cfg.Stages.Optimize,
		"stages.link":     cfg.Stages.Link,
	} {
		if sc.URL == "" {
			return nil, fmt.Errorf("%s.url is required", name)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "render:jobs"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 2 * time.Second
	}
	// Must exceed the worst-case full-pipeline duration, or a slow job gets
	// a second concurrent delivery.
	if cfg.Queue.VisibilityTimeout <= 0 {
		cfg.Queue.VisibilityTimeout = 30 * time.Minute
	}
	if cfg.Queue.MaxReceiveCount <= 0 {
		cfg.Queue.MaxReceiveCount = 3
	}
	// Stage timeouts track the worst observed worker cost: encoding is the
	// slow one, slide rendering the cheap one.
	if cfg.Stages.Slides.Timeout <= 0 {
		cfg.Stages.Slides.Timeout = 60 * time.Second
	}
	if cfg.Stages.Stitch.Timeout <= 0 {
		cfg.Stages.Stitch.Timeout = 10 * time.Minute
	}
	if cfg.Stages.Optimize.Timeout <= 0 {
		cfg.Stages.Optimize.Timeout = 15 * time.Minute
	}
	if cfg.Stages.Link.Timeout <= 0 {
		cfg.Stages.Link.Timeout = 30 * time.Second
	}
}
