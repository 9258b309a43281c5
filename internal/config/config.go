// Package config loads server settings from a .env file, the environment
// and an optional YAML file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sheikh-saqib/dao-treasury-ledger/internal/models"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration
type Config struct {
	HTTPAddr string        `yaml:"http_addr"`
	LogLevel string        `yaml:"log_level"`
	Owner    string        `yaml:"owner"` // hex address owning both the treasury and the registry
	Storage  StorageConfig `yaml:"storage"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Voting   VotingConfig  `yaml:"voting"`
}

type StorageConfig struct {
	// Driver is "memory" or "postgres"
	Driver string `yaml:"driver"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	// Brokers is empty when events stay in process
	Brokers []string `yaml:"brokers"`
}

type VotingConfig struct {
	// SingleVote rejects a second vote by the same account on one proposal
	SingleVote bool `yaml:"single_vote"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Driver: "memory",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then .env and environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	// A missing .env file is fine; variables may come from the environment
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DAO_OWNER"); v != "" {
		c.Owner = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("VOTING_SINGLE_VOTE"); v != "" {
		single, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "VOTING_SINGLE_VOTE")
		}
		c.Voting.SingleVote = single
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	owner, ok := models.ParseAccount(c.Owner)
	if !ok || models.IsZeroAccount(owner) {
		return errors.Errorf("owner %q is not a valid non-zero address", c.Owner)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// OwnerAccount returns the parsed owner address. Call Validate first.
func (c *Config) OwnerAccount() models.Account {
	owner, _ := models.ParseAccount(c.Owner)
	return owner
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
