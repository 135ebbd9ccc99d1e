package rainbow

import (
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MinWorkers = 1
	MaxWorkers = 64

	DefaultLength      = 3
	DefaultChainLength = 1000
	DefaultBatchSize   = 10000
	DefaultTimeout     = time.Hour
)

var validate = validator.New()

// JobConfig is the immutable parameter set of one table generation run.
type JobConfig struct {
	Length      int           `validate:"min=1,max=8"`
	ChainLength int           `validate:"min=1"`
	Workers     int           `validate:"min=1,max=64"`
	BatchSize   int           `validate:"min=1"`
	Timeout     time.Duration `validate:"gt=0"`
	// Seed is only recorded; chain computation never uses randomness.
	Seed *int64
}

func DefaultJobConfig() JobConfig {
	return JobConfig{
		Length:      DefaultLength,
		ChainLength: DefaultChainLength,
		Workers:     min(runtime.NumCPU(), MaxWorkers),
		BatchSize:   DefaultBatchSize,
		Timeout:     DefaultTimeout,
	}
}

func (c JobConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationErrorf("job config: %v", err)
	}
	return nil
}
