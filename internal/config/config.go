package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/totegamma/concrnt-community"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	Layer      string `yaml:"layer"`

	// ---
	CSID string
}

type Server struct {
	ListenAddr     string        `yaml:"listenAddr"`
	PostgresDsn    string        `yaml:"postgresDsn"`
	RedisAddr      string        `yaml:"redisAddr"`
	RedisPassword  string        `yaml:"redisPassword"`
	RedisDB        int           `yaml:"redisDB"`
	MemcachedAddr  string        `yaml:"memcachedAddr"`
	EnableTrace    bool          `yaml:"enableTrace"`
	TraceEndpoint  string        `yaml:"traceEndpoint"`
	LogLevel       string        `yaml:"logLevel"`
	LogFormat      string        `yaml:"logFormat"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`
	PolicyFile     string        `yaml:"policyFile"`
}

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

	if config.NodeInfo.PrivateKey == "" {
		return Config{}, fmt.Errorf("nodeInfo.privatekey is required")
	}

	csid, err := concrnt.PrivKeyToAddr(config.NodeInfo.PrivateKey, "ccs")
	if err != nil {
		return Config{}, fmt.Errorf("failed to derive csid: %v", err)
	}

	config.NodeInfo.CSID = csid

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.IdempotencyTTL == 0 {
		c.Server.IdempotencyTTL = 10 * time.Minute
	}
}
