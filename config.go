package nutrilens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anantham/nutrilens/internal/lock"
	"github.com/anantham/nutrilens/internal/store"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "NUTRILENS"

// Locker serializes learning per user. See internal/lock for the in-process
// and Redis implementations.
type Locker = lock.Locker

// Config configures the nutrilens client.
type Config struct {
	// DBPath is the SQLite database path. If empty it is derived from Store.
	DBPath string `mapstructure:"db_path"`

	// Store is the store ID to operate against.
	// If empty, resolved as explicit > NUTRILENS_STORE env > "default".
	Store string `mapstructure:"store"`

	// LogLevel enables logging to stderr at the given level. Empty disables it.
	LogLevel string `mapstructure:"log_level"`

	// MatchThreshold is the maximum edit distance for a fuzzy ingredient match.
	// Nil selects DefaultMatchThreshold; 0 allows exact matches only.
	MatchThreshold *int `mapstructure:"match_threshold"`

	ConfidenceSampleK    float64 `mapstructure:"confidence_sample_k"`
	ConsistencyThreshold float64 `mapstructure:"consistency_threshold"`
	ConsistencyScale     float64 `mapstructure:"consistency_scale"`

	// AliasFile is an optional YAML file of extra ingredient aliases.
	AliasFile string `mapstructure:"alias_file"`

	// RedisAddr switches per-user learning locks to Redis when set.
	RedisAddr string `mapstructure:"redis_addr"`

	// MaxRetries bounds learning attempts after version conflicts.
	MaxRetries int `mapstructure:"max_retries"`

	// CalibrationMinConfidence is the default threshold for calibration reports.
	// Nil selects DefaultCalibrationMin; 0 includes every record.
	CalibrationMinConfidence *float64 `mapstructure:"calibration_min_confidence"`

	// Logger overrides the logger built from LogLevel.
	Logger *zap.Logger `mapstructure:"-"`

	// MeterProvider overrides the global OpenTelemetry meter provider.
	MeterProvider metric.MeterProvider `mapstructure:"-"`

	// Locker overrides the lock built from RedisAddr.
	Locker Locker `mapstructure:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:                    store.DefaultStoreID,
		DBPath:                   store.StoreDBPath(store.DefaultStoreID),
		MatchThreshold:           intPtr(DefaultMatchThreshold),
		ConfidenceSampleK:        DefaultConfidenceSampleK,
		ConsistencyThreshold:     DefaultConsistencyThreshold,
		ConsistencyScale:         DefaultConsistencyScale,
		MaxRetries:               DefaultMaxRetries,
		CalibrationMinConfidence: ptr(DefaultCalibrationMin),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store", "")
	v.SetDefault("db_path", "")
	v.SetDefault("log_level", "")
	v.SetDefault("match_threshold", DefaultMatchThreshold)
	v.SetDefault("confidence_sample_k", DefaultConfidenceSampleK)
	v.SetDefault("consistency_threshold", DefaultConsistencyThreshold)
	v.SetDefault("consistency_scale", DefaultConsistencyScale)
	v.SetDefault("alias_file", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("calibration_min_confidence", DefaultCalibrationMin)
}

// LoadConfig reads configuration from NUTRILENS_* environment variables and,
// when path is non-empty, from that file (YAML, JSON, TOML or .env by
// extension). Environment variables win over the file.
//
//	NUTRILENS_DB_PATH                    → DBPath
//	NUTRILENS_STORE                      → Store
//	NUTRILENS_LOG_LEVEL                  → LogLevel
//	NUTRILENS_MATCH_THRESHOLD            → MatchThreshold
//	NUTRILENS_CONFIDENCE_SAMPLE_K        → ConfidenceSampleK
//	NUTRILENS_CONSISTENCY_THRESHOLD      → ConsistencyThreshold
//	NUTRILENS_CONSISTENCY_SCALE          → ConsistencyScale
//	NUTRILENS_ALIAS_FILE                 → AliasFile
//	NUTRILENS_REDIS_ADDR                 → RedisAddr
//	NUTRILENS_MAX_RETRIES                → MaxRetries
//	NUTRILENS_CALIBRATION_MIN_CONFIDENCE → CalibrationMinConfidence
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ConfigFromEnv reads configuration from NUTRILENS_* environment variables.
func ConfigFromEnv() (Config, error) {
	return LoadConfig("")
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ValidationError{Field: "DBPath", Message: "required: path to SQLite database"}
	}
	if c.Store != "" {
		if err := store.ValidateStoreID(c.Store); err != nil {
			return &ValidationError{Field: "Store", Message: err.Error()}
		}
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return &ValidationError{Field: "LogLevel", Message: err.Error()}
		}
	}
	if c.MatchThreshold != nil && *c.MatchThreshold < 0 {
		return &ValidationError{Field: "MatchThreshold", Message: "must be non-negative"}
	}
	if !(c.ConfidenceSampleK > 0) {
		return &ValidationError{Field: "ConfidenceSampleK", Message: "must be positive"}
	}
	if c.ConsistencyThreshold < 0 {
		return &ValidationError{Field: "ConsistencyThreshold", Message: "must be non-negative"}
	}
	if !(c.ConsistencyScale > 0) {
		return &ValidationError{Field: "ConsistencyScale", Message: "must be positive"}
	}
	if c.MaxRetries < 1 {
		return &ValidationError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if m := c.CalibrationMinConfidence; m != nil && (*m < ConfidenceMin || *m > ConfidenceMax) {
		return &ValidationError{Field: "CalibrationMinConfidence", Message: "must be within [0, 1]"}
	}
	return nil
}

// WithDefaults fills in default values for unset fields.
// Store resolution: explicit Store field > NUTRILENS_STORE env > "default".
// DBPath is derived from the resolved store if not explicitly set.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()

	if c.Store == "" {
		resolved, err := store.ResolveStore("")
		if err == nil {
			c.Store = resolved
		} else {
			c.Store = store.DefaultStoreID
		}
	}
	if c.DBPath == "" {
		c.DBPath = store.StoreDBPath(c.Store)
	}
	if c.MatchThreshold == nil {
		c.MatchThreshold = d.MatchThreshold
	} else {
		c.MatchThreshold = intPtr(*c.MatchThreshold)
	}
	if c.ConfidenceSampleK == 0 {
		c.ConfidenceSampleK = d.ConfidenceSampleK
	}
	if c.ConsistencyThreshold == 0 {
		c.ConsistencyThreshold = d.ConsistencyThreshold
	}
	if c.ConsistencyScale == 0 {
		c.ConsistencyScale = d.ConsistencyScale
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.CalibrationMinConfidence == nil {
		c.CalibrationMinConfidence = d.CalibrationMinConfidence
	} else {
		c.CalibrationMinConfidence = ptr(*c.CalibrationMinConfidence)
	}
	return c
}

func intPtr(v int) *int { return &v }

// ConfidenceModel returns the confidence tuning carried by c.
func (c *Config) ConfidenceModel() ConfidenceModel {
	return ConfidenceModel{
		SampleK:              c.ConfidenceSampleK,
		ConsistencyThreshold: c.ConsistencyThreshold,
		ConsistencyScale:     c.ConsistencyScale,
	}
}

// IsValidationError reports whether err is a configuration ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
