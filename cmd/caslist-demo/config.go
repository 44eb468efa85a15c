package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type config struct {
	Items      int           `env:"CASLIST_DEMO_ITEMS"       envDefault:"237"`
	PageSize   int           `env:"CASLIST_DEMO_PAGE_SIZE"   envDefault:"25"`
	Latency    time.Duration `env:"CASLIST_DEMO_LATENCY"     envDefault:"20ms"`
	Concurrent int           `env:"CASLIST_DEMO_CONCURRENT"  envDefault:"4"`
	Store      string        `env:"CASLIST_DEMO_STORE"       envDefault:"ristretto"`
	Codec      string        `env:"CASLIST_DEMO_CODEC"       envDefault:"msgpack"`
	PageTTL    time.Duration `env:"CASLIST_DEMO_PAGE_TTL"    envDefault:"5m"`
	RedisAddr  string        `env:"CASLIST_DEMO_REDIS_ADDR"  envDefault:"localhost:6379"`
	Logger     string        `env:"CASLIST_DEMO_LOGGER"      envDefault:"logrus"`
	LogLevel   string        `env:"CASLIST_DEMO_LOG_LEVEL"   envDefault:"info"`
	Trace      bool          `env:"CASLIST_DEMO_TRACE"`
	MetricsOut bool          `env:"CASLIST_DEMO_METRICS"     envDefault:"true"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.Items < 0 {
		return fmt.Errorf("CASLIST_DEMO_ITEMS must not be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("CASLIST_DEMO_PAGE_SIZE must be positive")
	}
	switch c.Store {
	case "ristretto", "bigcache", "redis", "none":
	default:
		return fmt.Errorf("unknown CASLIST_DEMO_STORE %q", c.Store)
	}
	switch c.Codec {
	case "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("unknown CASLIST_DEMO_CODEC %q", c.Codec)
	}
	switch c.Logger {
	case "logrus", "zap", "slog":
	default:
		return fmt.Errorf("unknown CASLIST_DEMO_LOGGER %q", c.Logger)
	}
	return nil
}
