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

// Config is the full tunable surface of the pipeline. Defaults come from
// struct tags; Load applies them before unmarshalling so YAML only needs
// to state deviations.
type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Pipeline struct {
		Symbols          []string      `yaml:"symbols" validate:"min=1"`
		Timeframe        time.Duration `yaml:"timeframe" default:"15m"`
		WindowBars       int           `yaml:"window_bars" default:"260" validate:"gte=220"`
		MinBars          int           `yaml:"min_bars" default:"30" validate:"gte=30"`
		ShortlistSize    int           `yaml:"shortlist_size" default:"8" validate:"gt=0"`
		HysteresisBars   int           `yaml:"hysteresis_bars" default:"2" validate:"gt=0"`
		IntrabarTopN     int           `yaml:"intrabar_top_n" default:"3" validate:"gte=0"`
		IntrabarInterval time.Duration `yaml:"intrabar_interval" default:"30s"`
		PivotLookback    int           `yaml:"pivot_lookback" default:"3" validate:"gt=0"`
		EMASlopeHorizon  int           `yaml:"ema_slope_horizon" default:"5" validate:"gt=0"`
	} `yaml:"pipeline"`

	Classifier struct {
		RegimeFloor        float64 `yaml:"regime_floor" default:"0.55" validate:"gt=0,lte=1"`
		CompressionCeiling float64 `yaml:"compression_ceiling" default:"70" validate:"gt=0,lte=100"`
		MaxSpreadATR       float64 `yaml:"max_spread_atr" default:"0.15" validate:"gt=0"`
		ClusterTolATR      float64 `yaml:"cluster_tol_atr" default:"0.5" validate:"gt=0"`
		RangeMinWidthATR   float64 `yaml:"range_min_width_atr" default:"1.2" validate:"gt=0"`
		RangeMaxWidthATR   float64 `yaml:"range_max_width_atr" default:"6.0" validate:"gt=0"`
	} `yaml:"classifier"`

	Gating struct {
		IdleBars     int     `yaml:"idle_bars" default:"16" validate:"gt=0"`
		Step         float64 `yaml:"step" default:"0.02" validate:"gt=0"`
		Max          float64 `yaml:"max" default:"0.12" validate:"gt=0"`
		FloorMin     float64 `yaml:"floor_min" default:"0.40" validate:"gt=0"`
		CeilingMax   float64 `yaml:"ceiling_max" default:"90" validate:"gt=0,lte=100"`
		CeilingScale float64 `yaml:"ceiling_scale" default:"100" validate:"gt=0"`
	} `yaml:"gating"`

	TPR struct {
		PullbackATR      float64 `yaml:"pullback_atr" default:"1.0" validate:"gt=0"`
		InvalidationATR  float64 `yaml:"invalidation_atr" default:"0.5" validate:"gt=0"`
		SLBufferATR      float64 `yaml:"sl_buffer_atr" default:"0.35" validate:"gt=0"`
		MinStopATR       float64 `yaml:"min_stop_atr" default:"0.8" validate:"gt=0"`
		BodyATRFraction  float64 `yaml:"body_atr_fraction" default:"0.25" validate:"gt=0"`
		NoChaseATR       float64 `yaml:"no_chase_atr" default:"1.2" validate:"gt=0"`
		MinScore         float64 `yaml:"min_score" default:"0.55" validate:"gt=0,lte=1"`
		RejectionEntries bool    `yaml:"rejection_entries" default:"true"`
		ExpiryBars       int     `yaml:"expiry_bars" default:"12" validate:"gt=0"`
		TP1RFallback     float64 `yaml:"tp1_r_fallback" default:"1.5" validate:"gt=0"`
		TP2RMultiple     float64 `yaml:"tp2_r_multiple" default:"2.5" validate:"gt=0"`
	} `yaml:"tpr"`

	RBH struct {
		NearBoundaryATR    float64 `yaml:"near_boundary_atr" default:"0.75" validate:"gt=0"`
		BreakBufferATR     float64 `yaml:"break_buffer_atr" default:"0.25" validate:"gt=0"`
		BodyATRFraction    float64 `yaml:"body_atr_fraction" default:"0.30" validate:"gt=0"`
		OuterCloseFraction float64 `yaml:"outer_close_fraction" default:"0.70" validate:"gt=0,lte=1"`
		RetestWindowBars   int     `yaml:"retest_window_bars" default:"8" validate:"gt=0"`
		EntryBufferATR     float64 `yaml:"entry_buffer_atr" default:"0.10" validate:"gt=0"`
		SLBufferATR        float64 `yaml:"sl_buffer_atr" default:"0.35" validate:"gt=0"`
		MinStopATR         float64 `yaml:"min_stop_atr" default:"0.8" validate:"gt=0"`
		TP1WidthFraction   float64 `yaml:"tp1_width_fraction" default:"0.8" validate:"gt=0"`
		TP2WidthFraction   float64 `yaml:"tp2_width_fraction" default:"1.5" validate:"gt=0"`
		MinScore           float64 `yaml:"min_score" default:"0.50" validate:"gt=0,lte=1"`
		ExpiryBars         int     `yaml:"expiry_bars" default:"10" validate:"gt=0"`
	} `yaml:"rbh"`

	ECR struct {
		SlowCrossLookback int     `yaml:"slow_cross_lookback" default:"40" validate:"gt=0"`
		MinFastCrosses    int     `yaml:"min_fast_crosses" default:"3" validate:"gt=0"`
		MaxTargetDistATR  float64 `yaml:"max_target_dist_atr" default:"6.0" validate:"gt=0"`
		MaxEMA50SlopeATR  float64 `yaml:"max_ema50_slope_atr" default:"0.08" validate:"gt=0"`
		BodyATRFraction   float64 `yaml:"body_atr_fraction" default:"0.30" validate:"gt=0"`
		SwingLookback     int     `yaml:"swing_lookback" default:"5" validate:"gt=0"`
		SLBufferATR       float64 `yaml:"sl_buffer_atr" default:"0.35" validate:"gt=0"`
		MinStopATR        float64 `yaml:"min_stop_atr" default:"0.8" validate:"gt=0"`
		TP2RMultiple      float64 `yaml:"tp2_r_multiple" default:"2.0" validate:"gt=0"`
		MinScore          float64 `yaml:"min_score" default:"0.50" validate:"gt=0,lte=1"`
		ExpiryBars        int     `yaml:"expiry_bars" default:"8" validate:"gt=0"`
	} `yaml:"ecr"`

	Execution struct {
		Style             string `yaml:"style" default:"hybrid" validate:"oneof=market_close market_intrabar pending hybrid"`
		PendingExpiryBars int    `yaml:"pending_expiry_bars" default:"8" validate:"gt=0"`
	} `yaml:"execution"`

	// Profiles keys are asset classes; Symbols maps symbol -> class.
	// Numeric overrides are calibration data, not derivable from the
	// algorithm; unknown symbols fall back to the "default" profile.
	Profiles struct {
		Symbols map[string]string               `yaml:"symbols"`
		Classes map[string]ProfileOverridesYAML `yaml:"classes"`
	} `yaml:"profiles"`

	Intents struct {
		Backend string `yaml:"backend" default:"log" validate:"oneof=kafka redis log"`
		Topic   string `yaml:"topic" default:"sniper.intents"`
		Archive bool   `yaml:"archive" default:"false"`
	} `yaml:"intents"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async" default:"false"`
		} `yaml:"producer"`
		Ticks struct {
			Enabled    bool          `yaml:"enabled" default:"false"`
			Topic      string        `yaml:"topic" default:"sniper.ticks"`
			GroupID    string        `yaml:"group_id" default:"sniper"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"ticks"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"false"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sniper"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled      bool   `yaml:"enabled" default:"false"`
		Addr         string `yaml:"addr" default:"localhost:6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		StatePrefix  string `yaml:"state_prefix" default:"sniper:state"`
		OutboxStream string `yaml:"outbox_stream" default:"sniper:intents"`
	} `yaml:"redis"`

	Stream struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"stream"`
}

// ProfileOverridesYAML is one asset-class override block.
type ProfileOverridesYAML struct {
	MaxSpreadATR   float64 `yaml:"max_spread_atr"`
	RiskMultiplier float64 `yaml:"risk_multiplier" default:"1.0"`
}

// Load reads a YAML file into a Config with defaults applied and the
// result validated.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets/endpoints from
// the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SNIPER_SYMBOLS"); v != "" {
		c.Pipeline.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("SNIPER_INTENTS_BACKEND"); v != "" {
		c.Intents.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}

	return c, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot say.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Intents.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("intents.backend=kafka requires kafka.brokers")
	}
	if c.Intents.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("intents.backend=redis requires redis.enabled")
	}
	if c.Classifier.RangeMinWidthATR >= c.Classifier.RangeMaxWidthATR {
		return fmt.Errorf("classifier.range_min_width_atr must be below range_max_width_atr")
	}
	if c.Gating.FloorMin >= c.Classifier.RegimeFloor {
		return fmt.Errorf("gating.floor_min must be below classifier.regime_floor")
	}
	return nil
}

// RiskMultiplier returns the asset-class risk multiplier for a symbol,
// defaulting to 1.
func (c *Config) RiskMultiplier(symbol string) float64 {
	class, ok := c.Profiles.Symbols[symbol]
	if !ok {
		class = "default"
	}
	if p, ok := c.Profiles.Classes[class]; ok && p.RiskMultiplier > 0 {
		return p.RiskMultiplier
	}
	return 1.0
}

// MaxSpreadATR returns the spread gate ceiling for a symbol, honoring the
// asset-class override when present.
func (c *Config) MaxSpreadATR(symbol string) float64 {
	class, ok := c.Profiles.Symbols[symbol]
	if !ok {
		class = "default"
	}
	if p, ok := c.Profiles.Classes[class]; ok && p.MaxSpreadATR > 0 {
		return p.MaxSpreadATR
	}
	return c.Classifier.MaxSpreadATR
}
