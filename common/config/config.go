package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sblinch/kdl-go"
	"github.com/ykhdr/rainbow-crack/common/logging"
)

const DefaultConfigPath = "./config/config.kdl"

type LogConfig struct {
	LogLevel string `kdl:"log-level"`
}

func (c *LogConfig) GetLogLevel() string {
	return c.LogLevel
}

type hasLogLevel interface {
	GetLogLevel() string
}

type validatable interface {
	Validate() error
}

// InitializeConfig decodes the KDL file at path over defaultCfg, validates the
// result when it knows how to, and installs the global logger. An empty path
// means DefaultConfigPath; only then is a missing file not an error.
func InitializeConfig[T any](path string, defaultCfg T) (*T, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	cfg, err := Unmarshal(path, defaultCfg)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		cfg = defaultCfg
	default:
		return nil, err
	}
	if v, ok := any(&cfg).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	setupLogger(&cfg)
	return &cfg, nil
}

func Unmarshal[T any](path string, defaultCfg T) (T, error) {
	var nilT T
	data, err := os.ReadFile(path)
	if err != nil {
		return nilT, errors.Wrapf(err, "read config %s", path)
	}
	if err := kdl.Unmarshal(data, &defaultCfg); err != nil {
		return nilT, errors.Wrapf(err, "unmarshal kdl %s", path)
	}
	return defaultCfg, nil
}

func setupLogger(cfg any) {
	level := logging.InfoLevel
	if logCfg, ok := cfg.(hasLogLevel); ok {
		level = logging.ParseLevel(logCfg.GetLogLevel())
	}
	logging.Setup(level)
}
