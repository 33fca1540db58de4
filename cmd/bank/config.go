package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/adapter/out/kafka"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-custody-bank/internal/app/core/reserve"
	"github.com/JoeShih716/go-custody-bank/pkg/logger"
	"github.com/JoeShih716/go-custody-bank/pkg/mysql"
	"github.com/JoeShih716/go-custody-bank/pkg/postgres"
)

// 帳戶紀錄的儲存方式
const (
	StoreDriverMemory   = "memory"
	StoreDriverLevelDB  = "leveldb"
	StoreDriverMySQL    = "mysql"
	StoreDriverPostgres = "postgres"
)

// 價值帳本的儲存方式
const (
	ValueDriverMemory = "memory"
	ValueDriverMySQL  = "mysql"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      logger.Config   `yaml:"log"`
	Store    StoreConfig     `yaml:"store"`
	Value    ValueConfig     `yaml:"value"`
	Reserve  ReserveConfig   `yaml:"reserve"`
	Genesis  []GenesisAlloc  `yaml:"genesis"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Kafka    kafka.Config    `yaml:"kafka"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	WALPath     string `yaml:"wal_path"` // memory driver，空字串表示不落地
	LevelDBPath string `yaml:"leveldb_path"`
	CacheSize   int    `yaml:"cache_size"` // 0 表示不加 LRU
}

type ValueConfig struct {
	Driver  string `yaml:"driver"`
	WALPath string `yaml:"wal_path"`
}

type ReserveConfig struct {
	CostPerByte uint64 `yaml:"cost_per_byte"`
}

// GenesisAlloc 啟動時發給 holder 的初始價值，每個 holder 只發放一次
type GenesisAlloc struct {
	Holder domain.Identity `yaml:"holder"`
	Amount uint64          `yaml:"amount"`
}

// loadConfig 讀取 yaml 並補上預設值
func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":50051"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverMemory
	}
	if c.Value.Driver == "" {
		c.Value.Driver = ValueDriverMemory
	}
	if c.Reserve.CostPerByte == 0 {
		c.Reserve.CostPerByte = reserve.DefaultCostPerByte
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "bank.account-events"
	}
	c.MySQL.SetDefaults()
	c.Postgres.SetDefaults()
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverMySQL, StoreDriverPostgres:
	case StoreDriverLevelDB:
		if c.Store.LevelDBPath == "" {
			return fmt.Errorf("store.leveldb_path is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Value.Driver {
	case ValueDriverMemory, ValueDriverMySQL:
	default:
		return fmt.Errorf("unknown value driver %q", c.Value.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	for i, alloc := range c.Genesis {
		if alloc.Holder.IsZero() {
			return fmt.Errorf("genesis[%d]: holder is required", i)
		}
	}
	return nil
}
