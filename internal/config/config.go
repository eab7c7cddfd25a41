package config

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/internal/domain"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
	Registry Registry `yaml:"registry"`
}

type NodeInfo struct {
	FQDN       string   `yaml:"fqdn"`
	PrivateKey string   `yaml:"privatekey"`
	Admins     []string `yaml:"admins"`

	// ---
	CSID string
}

type Server struct {
	Listen        string   `yaml:"listen"`
	StoreBackend  string   `yaml:"storeBackend"` // memory, redis, postgres
	PostgresDsn   string   `yaml:"postgresDsn"`
	RedisAddr     string   `yaml:"redisAddr"`
	RedisPassword string   `yaml:"redisPassword"`
	RedisDB       int      `yaml:"redisDB"`
	MemcachedAddr string   `yaml:"memcachedAddr"`
	EnableTrace   bool     `yaml:"enableTrace"`
	TraceEndpoint string   `yaml:"traceEndpoint"`
	KafkaBrokers  []string `yaml:"kafkaBrokers"`
	KafkaTopic    string   `yaml:"kafkaTopic"`
}

type Registry struct {
	LifetimeThresholdLedgers uint32 `yaml:"lifetimeThresholdLedgers"`
	LifetimeExtendToLedgers  uint32 `yaml:"lifetimeExtendToLedgers"`
	RequireOwnerAddress      bool   `yaml:"requireOwnerAddress"`
	PolicyPath               string `yaml:"policyPath"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return Config{}, err
	}

	csid, err := greenledger.PrivKeyToAddr(config.NodeInfo.PrivateKey, greenledger.ServerPrefix)
	if err != nil {
		return Config{}, err
	}

	config.NodeInfo.CSID = csid

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.StoreBackend == "" {
		c.Server.StoreBackend = BackendMemory
	}
	if c.Server.KafkaTopic == "" {
		c.Server.KafkaTopic = "greenledger-events"
	}
	if c.Registry.LifetimeThresholdLedgers == 0 {
		c.Registry.LifetimeThresholdLedgers = 5000
	}
	if c.Registry.LifetimeExtendToLedgers == 0 {
		c.Registry.LifetimeExtendToLedgers = 5000
	}
}

func (c *Config) validate() error {
	switch c.Server.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Server.RedisAddr == "" {
			return fmt.Errorf("redisAddr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Server.PostgresDsn == "" {
			return fmt.Errorf("postgresDsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storeBackend %q", c.Server.StoreBackend)
	}
	if c.Registry.LifetimeExtendToLedgers < c.Registry.LifetimeThresholdLedgers {
		return fmt.Errorf("lifetimeExtendToLedgers must not be below lifetimeThresholdLedgers")
	}
	return nil
}

func (c Config) Domain() domain.Config {
	return domain.Config{
		FQDN:       c.NodeInfo.FQDN,
		PrivateKey: c.NodeInfo.PrivateKey,
		Admins:     c.NodeInfo.Admins,
		CSID:       c.NodeInfo.CSID,
	}
}

func (c Config) Lifetime() domain.Lifetime {
	return domain.LedgerLifetime(c.Registry.LifetimeThresholdLedgers, c.Registry.LifetimeExtendToLedgers)
}
