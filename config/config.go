package config

import (
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/common/config"
	"github.com/ykhdr/rainbow-crack/common/consul"
	"github.com/ykhdr/rainbow-crack/common/store/mongo"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/table"
)

const (
	IndexMemory = "memory"
	IndexPebble = "pebble"

	StoreMemory = "memory"
	StoreMongo  = "mongo"

	ExecutorLocal = "local"
	ExecutorAmqp  = "amqp"
)

var validate = validator.New()

type TableConfig struct {
	Path           string `kdl:"path" validate:"required"`
	PasswordLength int    `kdl:"password-length" validate:"min=1,max=8"`
	ChainLength    int    `kdl:"chain-length" validate:"min=1"`
	Reduction      string `kdl:"reduction" validate:"oneof=sha256-v1 xxh3-v1"`
	MaxFileSize    int64  `kdl:"max-file-size" validate:"min=1"`
	WriteBatchSize int    `kdl:"write-batch-size" validate:"min=1"`
	Index          string `kdl:"index" validate:"oneof=memory pebble"`
	IndexDir       string `kdl:"index-dir"`
}

// IndexPath is where the pebble index of the table lives unless configured.
func (c *TableConfig) IndexPath() string {
	if c.IndexDir != "" {
		return c.IndexDir
	}
	return c.Path + ".idx"
}

func (c *TableConfig) Options() table.Options {
	return table.Options{MaxFileSize: c.MaxFileSize, BatchSize: c.WriteBatchSize}
}

type GenerateConfig struct {
	Chains    int           `kdl:"chains" validate:"min=1"`
	Workers   int           `kdl:"workers" validate:"min=1,max=64"`
	BatchSize int           `kdl:"batch-size" validate:"min=1"`
	Timeout   time.Duration `kdl:"timeout" validate:"gt=0"`
	Seed      *int64        `kdl:"seed"`
}

type CrackConfig struct {
	Workers int `kdl:"workers" validate:"min=1,max=64"`
}

type ServerConfig struct {
	Addr             string         `kdl:"addr" validate:"required"`
	AdvertiseAddress string         `kdl:"advertise-address"`
	Executor         string         `kdl:"executor" validate:"oneof=local amqp"`
	Concurrency      int            `kdl:"concurrency" validate:"min=1"`
	CacheSize        int            `kdl:"cache-size" validate:"min=1"`
	RequestQueueSize int            `kdl:"request-queue-size" validate:"min=1"`
	DispatchTimeout  time.Duration  `kdl:"dispatch-timeout" validate:"gt=0"`
	RequestTimeout   time.Duration  `kdl:"request-timeout" validate:"gt=0"`
	MaxDigests       int            `kdl:"max-digests" validate:"min=1"`
	ConsulConfig     *consul.Config `kdl:"consul"`
}

type StoreConfig struct {
	Backend     string        `kdl:"backend" validate:"oneof=memory mongo"`
	MongoConfig *mongo.Config `kdl:"mongodb"`
}

type Config struct {
	config.LogConfig
	TableConfig    *TableConfig    `kdl:"table" validate:"required"`
	GenerateConfig *GenerateConfig `kdl:"generate" validate:"required"`
	CrackConfig    *CrackConfig    `kdl:"crack" validate:"required"`
	ServerConfig   *ServerConfig   `kdl:"server" validate:"required"`
	StoreConfig    *StoreConfig    `kdl:"store" validate:"required"`
	AmqpConfig     *amqp.Config    `kdl:"amqp"`
}

func DefaultConfig() *Config {
	workers := min(runtime.NumCPU(), rainbow.MaxWorkers)
	return &Config{
		LogConfig: config.LogConfig{LogLevel: "info"},
		TableConfig: &TableConfig{
			Path:           "rainbow_table.csv",
			PasswordLength: rainbow.DefaultLength,
			ChainLength:    rainbow.DefaultChainLength,
			Reduction:      rainbow.DefaultReductionStr(),
			MaxFileSize:    table.DefaultMaxFileSize,
			WriteBatchSize: table.DefaultWriteBatchSize,
			Index:          IndexMemory,
		},
		GenerateConfig: &GenerateConfig{
			Chains:    100000,
			Workers:   workers,
			BatchSize: rainbow.DefaultBatchSize,
			Timeout:   rainbow.DefaultTimeout,
		},
		CrackConfig: &CrackConfig{
			Workers: workers,
		},
		ServerConfig: &ServerConfig{
			Addr:             "127.0.0.1:8080",
			Executor:         ExecutorLocal,
			Concurrency:      2,
			CacheSize:        4096,
			RequestQueueSize: 1024,
			DispatchTimeout:  5 * time.Second,
			RequestTimeout:   time.Minute,
			MaxDigests:       1000,
			ConsulConfig:     consul.DefaultConfig(),
		},
		StoreConfig: &StoreConfig{
			Backend:     StoreMemory,
			MongoConfig: mongo.DefaultConfig(),
		},
		AmqpConfig: amqp.DefaultConfig(),
	}
}

// Validate checks every section. Failures wrap rainbow.ErrValidation.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrapf(rainbow.ErrValidation, "config: %v", err)
	}
	if c.StoreConfig.Backend == StoreMongo && c.StoreConfig.MongoConfig == nil {
		return errors.Wrap(rainbow.ErrValidation, "config: mongo store requires a mongodb section")
	}
	if c.ServerConfig.Executor == ExecutorAmqp && c.AmqpConfig == nil {
		return errors.Wrap(rainbow.ErrValidation, "config: amqp executor requires an amqp section")
	}
	return nil
}

// JobConfig is the table generation record derived from the table and
// generate sections.
func (c *Config) JobConfig() rainbow.JobConfig {
	return rainbow.JobConfig{
		Length:      c.TableConfig.PasswordLength,
		ChainLength: c.TableConfig.ChainLength,
		Workers:     c.GenerateConfig.Workers,
		BatchSize:   c.GenerateConfig.BatchSize,
		Timeout:     c.GenerateConfig.Timeout,
		Seed:        c.GenerateConfig.Seed,
	}
}

// Scheme builds the hash and reduction pair the table section describes.
func (c *Config) Scheme() (*rainbow.Scheme, error) {
	reductionType, err := rainbow.ParseReductionName(c.TableConfig.Reduction)
	if err != nil {
		return nil, err
	}
	return rainbow.NewScheme(
		rainbow.NewDESHasher(),
		rainbow.NewReduction(reductionType),
		c.TableConfig.PasswordLength,
		c.TableConfig.ChainLength,
	)
}

func InitializeConfig(path string) (*Config, error) {
	return config.InitializeConfig[Config](path, *DefaultConfig())
}
