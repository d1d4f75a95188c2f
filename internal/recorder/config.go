package recorder

import (
	"time"

	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	defaultQueueSize  = 4096
	defaultBufferSize = 64 * 1024
	defaultFilePrefix = "quote"
	fileSuffix        = ".txt"
)

// Config controls the record writer.
type Config struct {
	Dir           string        `yaml:"dir"`
	FilePrefix    string        `yaml:"file_prefix"`
	QueueSize     int           `yaml:"queue_size"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultConfig returns a baseline configuration writing into dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		FilePrefix:    defaultFilePrefix,
		QueueSize:     defaultQueueSize,
		BufferSize:    defaultBufferSize,
		FlushInterval: time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: dir is empty")
	}
	if c.QueueSize <= 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: queue_size must be > 0")
	}
	if c.BufferSize <= 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: buffer_size must be > 0")
	}
	if c.FlushInterval < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: flush_interval must be >= 0")
	}
	return nil
}

// FileName returns the record file holding ticks of date (YYYY-MM-DD).
func FileName(prefix, date string) string {
	return prefix + "-" + date + fileSuffix
}
