package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netrixlabs/keygate/internal/ratelimit"
)

// Config is the process configuration, loaded once at startup from yaml with
// env overrides for deployment secrets. The rate-limit subset is
// hot-reloadable via the watcher.
type Config struct {
	Listen string `yaml:"listen"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	NATS struct {
		URL        string `yaml:"url"`
		Subject    string `yaml:"subject"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"nats"`

	Admin struct {
		Operator   string `yaml:"operator"`
		PINHash    string `yaml:"pin_hash"`
		SigningKey string `yaml:"signing_key"`
	} `yaml:"admin"`

	Cache struct {
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"cache"`

	RateLimit struct {
		Salt   string                `yaml:"salt"`
		Redeem ratelimit.LimitConfig `yaml:"redeem"`
		Login  ratelimit.LimitConfig `yaml:"login"`
		Claim  ratelimit.LimitConfig `yaml:"claim"`
	} `yaml:"rate_limit"`
}

func defaults() Config {
	var c Config
	c.Listen = ":8080"
	c.Redis.Addr = "localhost:6379"
	c.NATS.Subject = "keygate.events"
	c.NATS.MaxRetries = 3
	c.Cache.SnapshotPath = "data/entitlements.json"
	c.RateLimit.Redeem = ratelimit.LimitConfig{Rate: 10, Window: time.Minute}
	c.RateLimit.Login = ratelimit.LimitConfig{Rate: 5, Window: time.Minute}
	c.RateLimit.Claim = ratelimit.LimitConfig{Rate: 20, Window: time.Minute}
	return c
}

// Load reads the yaml file (missing file falls back to defaults) and applies
// env overrides.
func Load(path string) (*Config, error) {
	c := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Env overrides for secrets and deployment wiring
	if v := os.Getenv("KEYGATE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		c.Admin.SigningKey = v
	}
	if v := os.Getenv("ADMIN_PIN_HASH"); v != "" {
		c.Admin.PINHash = v
	}
	if c.Admin.Operator == "" {
		c.Admin.Operator = "admin"
	}
	if c.Admin.SigningKey == "" {
		c.Admin.SigningKey = "dev-secret-do-not-use-in-prod"
	}

	return &c, nil
}

// Holder wraps the current config for concurrent readers; the watcher swaps
// the hot-reloadable subset in place.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewHolder(cfg *Config) *Holder {
	return &Holder{cfg: cfg}
}

func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *Holder) swap(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}
