package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig configures Producer. Zero fields take the `default` tags.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int           `default:"-1"`
	Compression  string        `default:"snappy"`
	MaxAttempts  int           `default:"5"`
	BatchSize    int           `default:"100"`
	BatchBytes   int64         `default:"1048576"`
	Linger       time.Duration `default:"5ms"`
	WriteTimeout time.Duration `default:"10s"`
	ReadTimeout  time.Duration `default:"10s"`
}

// ConsumerConfig configures Consumer. Zero fields take the `default` tags.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string        `default:"liqsweep-engine"`
	RetryMax   uint64        `default:"3"`
	BackoffMin time.Duration `default:"100ms"`
	BackoffMax time.Duration `default:"5s"`
	// DLQTopic receives messages that still fail after RetryMax; empty
	// leaves them uncommitted.
	DLQTopic string
	MinBytes int `default:"1"`
	MaxBytes int `default:"10485760"`
	// Slow logs handler calls above this duration at warn.
	Slow time.Duration `default:"200ms"`
}

func compression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	}
	return 0
}
