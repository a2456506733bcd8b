package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		// AlertsEnabled publishes error digests to the Kafka alerts topic.
		AlertsEnabled bool          `yaml:"alerts_enabled"`
		AlertsWindow  time.Duration `yaml:"alerts_window" default:"1m"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine     EngineConfig `yaml:"engine"`
	Feed       FeedConfig   `yaml:"feed"`
	Execution  struct {
		Backend string `yaml:"backend" default:"kafka" validate:"oneof=kafka redis"`
		// ReportsQueue is the Redis queue the execution side answers on.
		ReportsQueue   string `yaml:"reports_queue" default:"liqsweep:reports"`
		ProposalsQueue string `yaml:"proposals_queue" default:"liqsweep:proposals"`
		ReportWorkers  int    `yaml:"report_workers" default:"1" validate:"gte=1"`
	} `yaml:"execution"`
	Kafka struct {
		Brokers        []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		BarsTopic      string   `yaml:"bars_topic" default:"liqsweep.bars"`
		ProposalsTopic string   `yaml:"proposals_topic" default:"liqsweep.proposals"`
		AlertsTopic    string   `yaml:"alerts_topic" default:"liqsweep.alerts"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"5ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"liqsweep-engine"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"liqsweep.bars.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"liqsweep"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		EventBatchSize   int           `yaml:"event_batch_size" default:"200"`
		EventFlush       time.Duration `yaml:"event_flush" default:"2s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"liqsweep"`
		PoolSize int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		StateTTL time.Duration `yaml:"state_ttl" default:"72h"`
	} `yaml:"redis"`
	Broker BrokerConfig `yaml:"broker"`
}

// EngineConfig holds the decision-core settings for one instrument.
type EngineConfig struct {
	Symbol                string   `yaml:"symbol" default:"EURUSD" validate:"required"`
	Timezone              string   `yaml:"timezone" default:"UTC"`
	PipSize               float64  `yaml:"pip_size" default:"0.0001" validate:"gt=0"`
	Digits                int      `yaml:"digits" default:"5" validate:"gte=0,lte=10"`
	StructureTimeframe    string   `yaml:"structure_timeframe" default:"1h" validate:"oneof=1m 3m 5m 15m 1h 4h"`
	ConfirmationTimeframe string   `yaml:"confirmation_timeframe" default:"3m" validate:"oneof=1m 3m 5m 15m 1h 4h"`
	StructureHistory      int      `yaml:"structure_history" default:"500" validate:"gte=10"`
	ConfirmationHistory   int      `yaml:"confirmation_history" default:"2000" validate:"gte=10"`
	SessionWindow         string   `yaml:"session_window" default:"00:00-09:00"`
	TradingHours          []string `yaml:"trading_hours" default:"[\"06:00-12:00\"]"`
	FractalPeriod         int      `yaml:"fractal_period" default:"3" validate:"gte=1"`
	RiskPercent           float64  `yaml:"risk_percent" default:"1" validate:"gt=0,lte=100"`
	MinRR                 float64  `yaml:"min_rr" default:"1.3" validate:"gt=0"`
	MaxRR                 float64  `yaml:"max_rr" default:"5" validate:"gt=0"`
	MaxBOSDistancePips    float64  `yaml:"max_bos_distance_pips" default:"20" validate:"gt=0"`
	StopBufferPips        float64  `yaml:"stop_buffer_pips" default:"1.6" validate:"gte=0"`
	MinStopPips           float64  `yaml:"min_stop_pips" default:"5" validate:"gte=0"`
	StopAnchor            string   `yaml:"stop_anchor" default:"level" validate:"oneof=level sweep_extreme"`
	BiasMode              string   `yaml:"bias_mode" default:"auto" validate:"oneof=auto bullish bearish"`
	Trend                 struct {
		MinBars                int     `yaml:"min_bars"`
		CandleEnabled          bool    `yaml:"candle_enabled" default:"true"`
		CandleLookback         int     `yaml:"candle_lookback" default:"25" validate:"gte=1"`
		CandleThreshold        int     `yaml:"candle_threshold" default:"5" validate:"gte=0"`
		ImpulseEnabled         bool    `yaml:"impulse_enabled" default:"true"`
		ImpulseLookback        int     `yaml:"impulse_lookback" default:"5" validate:"gte=1"`
		ImpulsePips            float64 `yaml:"impulse_pips" default:"40" validate:"gt=0"`
		StructureEnabled       bool    `yaml:"structure_enabled" default:"true"`
		StructureLookback      int     `yaml:"structure_lookback" default:"10" validate:"gte=1"`
		StructureConfirmations int     `yaml:"structure_confirmations" default:"2" validate:"gte=1"`
	} `yaml:"trend"`
}

// FeedConfig selects where live prices come from.
type FeedConfig struct {
	Type           string        `yaml:"type" default:"websocket" validate:"oneof=websocket kafka"`
	URL            string        `yaml:"url" default:"wss://ws.finnhub.io"`
	APIKey         string        `yaml:"api_key"`
	Symbol         string        `yaml:"symbol"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	ThrottleRPS    float64       `yaml:"throttle_rps" default:"20" validate:"gte=0"`
	ThrottleBurst  int           `yaml:"throttle_burst" default:"5" validate:"gte=1"`
	Workers        int           `yaml:"workers" default:"1" validate:"gte=1"`
	QueueSize      int           `yaml:"queue_size" default:"1024" validate:"gte=1"`
}

// BrokerConfig points at the account metadata service; Static is used when
// URL is empty and as the instrument fallback.
type BrokerConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout" default:"3s"`
	RPS        float64       `yaml:"rps" default:"5" validate:"gt=0"`
	Burst      int           `yaml:"burst" default:"2" validate:"gte=1"`
	MaxRetries uint64        `yaml:"max_retries" default:"3"`
	Static     struct {
		Balance           float64 `yaml:"balance" default:"10000"`
		Currency          string  `yaml:"currency" default:"USD"`
		PipValue          float64 `yaml:"pip_value" default:"0.0001" validate:"gt=0"`
		VolumeMin         float64 `yaml:"volume_min" default:"1000" validate:"gt=0"`
		VolumeMax         float64 `yaml:"volume_max" default:"10000000" validate:"gt=0"`
		VolumeStep        float64 `yaml:"volume_step" default:"1000" validate:"gt=0"`
		MinStopPips       float64 `yaml:"min_stop_pips"`
		MinTakeProfitPips float64 `yaml:"min_take_profit_pips"`
	} `yaml:"static"`
}

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("LIQSWEEP_SYMBOL"); v != "" {
		c.Engine.Symbol = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			fmt.Sscanf(port, "%d", &c.Redis.Port)
		}
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("BIAS_MODE"); v != "" {
		c.Engine.BiasMode = strings.ToLower(v)
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Engine.MinRR >= c.Engine.MaxRR {
		return fmt.Errorf("engine.min_rr (%v) must be below engine.max_rr (%v)", c.Engine.MinRR, c.Engine.MaxRR)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	for _, r := range append([]string{c.Engine.SessionWindow}, c.Engine.TradingHours...) {
		if !validRange(r) {
			return fmt.Errorf("hour range %q must be HH:MM-HH:MM", r)
		}
	}
	if c.Broker.Static.VolumeMax < c.Broker.Static.VolumeMin {
		return fmt.Errorf("broker.static.volume_max must not be below volume_min")
	}
	if c.Execution.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("execution.backend=redis requires redis.enabled")
	}
	if len(c.Kafka.Brokers) == 0 && (c.Execution.Backend == "kafka" || c.Feed.Type == "kafka") {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	return nil
}

func validRange(s string) bool {
	var h1, m1, h2, m2 int
	n, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d-%d:%d", &h1, &m1, &h2, &m2)
	if err != nil || n != 4 {
		return false
	}
	return h1 >= 0 && h1 <= 24 && h2 >= 0 && h2 <= 24 && m1 >= 0 && m1 < 60 && m2 >= 0 && m2 < 60
}

// Location resolves the engine time zone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeedSymbol is the symbol requested from the feed, defaulting to the engine symbol.
func (c *Config) FeedSymbol() string {
	if c.Feed.Symbol != "" {
		return c.Feed.Symbol
	}
	return c.Engine.Symbol
}
