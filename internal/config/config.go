package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the toolbox.yaml file.
type Config struct {
	Version int `yaml:"version" validate:"eq=1"`
	Server  struct {
		Port    int    `yaml:"port" validate:"gte=0,lte=65535"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key" validate:"required_with=TLSCert"`
	} `yaml:"server"`
	Events struct {
		BufferSize int `yaml:"buffer_size" validate:"gte=0,lte=100000"`
	} `yaml:"events"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		BrokerURL   string `yaml:"broker_url" validate:"required_if=Enabled true"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" validate:"required_if=Enabled true"`
		Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
		User     string `yaml:"user"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
		Password string `yaml:"-"`
	} `yaml:"postgres"`
	Alerts struct {
		WebhookURL    string        `yaml:"webhook_url" validate:"omitempty,url"`
		MQTTDelay     time.Duration `yaml:"mqtt_delay" validate:"gte=0"`
		PostgresDelay time.Duration `yaml:"postgres_delay" validate:"gte=0"`
	} `yaml:"alerts"`
	Solvers struct {
		// Disabled lists solver ids that are not offered.
		Disabled []string `yaml:"disabled"`
		// Preferred maps a problem type id to the solver id chosen for
		// unconfigured sub-problems.
		Preferred map[string]string `yaml:"preferred"`
	} `yaml:"solvers"`
	ExamplesFile string `yaml:"examples_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// HTTPPort returns the configured HTTP port, defaulting to 8080 if not set.
func (c *Config) HTTPPort() int {
	if c.Server.Port == 0 {
		return 8080
	}
	return c.Server.Port
}

// SolverDisabled reports whether the solver id is switched off.
func (c *Config) SolverDisabled(id string) bool {
	for _, d := range c.Solvers.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Database, c.Postgres.SSLMode)
	if c.Postgres.Password != "" {
		dsn += " password='" + dsnEscaper.Replace(c.Postgres.Password) + "'"
	}
	return dsn
}

func (c *Config) applyDefaults() {
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 256
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "solver-toolbox"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "toolbox"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.User == "" {
		c.Postgres.User = "toolbox"
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = "toolbox"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Alerts.MQTTDelay == 0 {
		c.Alerts.MQTTDelay = 30 * time.Second
	}
	if c.Alerts.PostgresDelay == 0 {
		c.Alerts.PostgresDelay = 5 * time.Second
	}
}

// applyEnv lets deployment environments override connection settings.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MQTT_URL"); v != "" {
		c.MQTT.BrokerURL = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("PGHOST"); v != "" {
		c.Postgres.Host = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("PGPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PGPORT %q: %w", v, err)
		}
		c.Postgres.Port = port
	}
	if v := os.Getenv("PGUSER"); v != "" {
		c.Postgres.User = v
	}
	if v := os.Getenv("PGDATABASE"); v != "" {
		c.Postgres.Database = v
	}
	webhook, err := ResolveSecret("TOOLBOX_ALERT_WEBHOOK_URL")
	if err != nil {
		return err
	}
	if webhook != "" {
		c.Alerts.WebhookURL = webhook
	}
	password, err := ResolveSecret("PGPASSWORD")
	if err != nil {
		return err
	}
	if password != "" {
		c.Postgres.Password = password
	}
	return nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid toolbox.yaml: %w", err)
	}
	return nil
}

// Load reads toolbox.yaml, applies defaults and environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Version: 1}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
		if cfg.Version != 1 {
			return nil, fmt.Errorf("unsupported toolbox.yaml version: %d", cfg.Version)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
