package nutrilens_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anantham/nutrilens"
	"github.com/anantham/nutrilens/internal/store"
)

func ip(v int) *int { return &v }

func validConfig() nutrilens.Config {
	cfg := nutrilens.DefaultConfig()
	cfg.DBPath = "/tmp/nutrilens-test.db"
	return cfg
}

func TestConfig_Validate_Default(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for default config: %v", err)
	}
}

func TestConfig_Validate_InvalidFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*nutrilens.Config)
	}{
		{"DBPath", func(c *nutrilens.Config) { c.DBPath = "" }},
		{"Store", func(c *nutrilens.Config) { c.Store = "Bad Store!" }},
		{"LogLevel", func(c *nutrilens.Config) { c.LogLevel = "chatty" }},
		{"MatchThreshold", func(c *nutrilens.Config) { c.MatchThreshold = ip(-1) }},
		{"ConfidenceSampleK", func(c *nutrilens.Config) { c.ConfidenceSampleK = 0 }},
		{"ConsistencyThreshold", func(c *nutrilens.Config) { c.ConsistencyThreshold = -5 }},
		{"ConsistencyScale", func(c *nutrilens.Config) { c.ConsistencyScale = -1 }},
		{"MaxRetries", func(c *nutrilens.Config) { c.MaxRetries = 0 }},
		{"CalibrationMinConfidence", func(c *nutrilens.Config) { c.CalibrationMinConfidence = fp(1.5) }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var ve *nutrilens.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() returned %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestConfig_WithDefaults_FillsZeroValues(t *testing.T) {
	t.Setenv(store.HomeEnv, t.TempDir())
	t.Setenv(store.StoreEnv, "")

	cfg := nutrilens.Config{}.WithDefaults()
	d := nutrilens.DefaultConfig()

	if cfg.Store != store.DefaultStoreID {
		t.Errorf("Store = %q, want %q", cfg.Store, store.DefaultStoreID)
	}
	if cfg.DBPath != store.StoreDBPath(store.DefaultStoreID) {
		t.Errorf("DBPath = %q, want derived from store", cfg.DBPath)
	}
	if *cfg.MatchThreshold != *d.MatchThreshold || cfg.MaxRetries != d.MaxRetries {
		t.Errorf("MatchThreshold/MaxRetries = %d/%d, want defaults", *cfg.MatchThreshold, cfg.MaxRetries)
	}
	if *cfg.CalibrationMinConfidence != nutrilens.DefaultCalibrationMin {
		t.Errorf("CalibrationMinConfidence = %v, want default", *cfg.CalibrationMinConfidence)
	}
	if cfg.ConfidenceModel() != nutrilens.DefaultConfidenceModel() {
		t.Errorf("ConfidenceModel() = %+v, want default", cfg.ConfidenceModel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after WithDefaults: %v", err)
	}
}

func TestConfig_WithDefaults_StoreFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv(store.HomeEnv, home)
	t.Setenv(store.StoreEnv, "team/kitchen")

	cfg := nutrilens.Config{}.WithDefaults()
	if cfg.Store != "team/kitchen" {
		t.Errorf("Store = %q, want team/kitchen", cfg.Store)
	}
	if !strings.HasPrefix(cfg.DBPath, home) || !strings.Contains(cfg.DBPath, "team__kitchen") {
		t.Errorf("DBPath = %q, want encoded store under %s", cfg.DBPath, home)
	}
}

func TestConfig_WithDefaults_KeepsExplicit(t *testing.T) {
	cfg := nutrilens.Config{DBPath: "/data/n.db", Store: "mine", MatchThreshold: ip(1)}.WithDefaults()
	if cfg.DBPath != "/data/n.db" || cfg.Store != "mine" || *cfg.MatchThreshold != 1 {
		t.Errorf("WithDefaults() overrode explicit values: %+v", cfg)
	}
}

func TestConfig_WithDefaults_KeepsExplicitZero(t *testing.T) {
	cfg := nutrilens.Config{
		DBPath:                   "/data/n.db",
		MatchThreshold:           ip(0),
		CalibrationMinConfidence: fp(0),
	}.WithDefaults()

	if cfg.MatchThreshold == nil || *cfg.MatchThreshold != 0 {
		t.Errorf("MatchThreshold = %v, want explicit 0", cfg.MatchThreshold)
	}
	if cfg.CalibrationMinConfidence == nil || *cfg.CalibrationMinConfidence != 0 {
		t.Errorf("CalibrationMinConfidence = %v, want explicit 0", cfg.CalibrationMinConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() rejected explicit zeros: %v", err)
	}
}

func TestConfig_WithDefaults_CopiesPointers(t *testing.T) {
	threshold := 1
	cfg := nutrilens.Config{DBPath: "/data/n.db", MatchThreshold: &threshold}.WithDefaults()
	threshold = 5
	if *cfg.MatchThreshold != 1 {
		t.Errorf("MatchThreshold = %d after caller change, want 1", *cfg.MatchThreshold)
	}
}

func TestLoadConfig_ExplicitZeroFromEnv(t *testing.T) {
	t.Setenv("NUTRILENS_MATCH_THRESHOLD", "0")
	t.Setenv("NUTRILENS_CALIBRATION_MIN_CONFIDENCE", "0")

	cfg, err := nutrilens.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error: %v", err)
	}
	cfg = cfg.WithDefaults()
	if *cfg.MatchThreshold != 0 || *cfg.CalibrationMinConfidence != 0 {
		t.Errorf("zeros replaced by defaults: threshold %d, calibration %v", *cfg.MatchThreshold, *cfg.CalibrationMinConfidence)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("NUTRILENS_DB_PATH", "/tmp/env.db")
	t.Setenv("NUTRILENS_MATCH_THRESHOLD", "3")
	t.Setenv("NUTRILENS_LOG_LEVEL", "debug")
	t.Setenv("NUTRILENS_CALIBRATION_MIN_CONFIDENCE", "0.9")

	cfg, err := nutrilens.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("DBPath = %q, want /tmp/env.db", cfg.DBPath)
	}
	if cfg.MatchThreshold == nil || *cfg.MatchThreshold != 3 {
		t.Errorf("MatchThreshold = %v, want 3", cfg.MatchThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.CalibrationMinConfidence == nil || *cfg.CalibrationMinConfidence != 0.9 {
		t.Errorf("CalibrationMinConfidence = %v, want 0.9", cfg.CalibrationMinConfidence)
	}
	if cfg.MaxRetries != nutrilens.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default %d", cfg.MaxRetries, nutrilens.DefaultMaxRetries)
	}
}

func TestLoadConfig_YAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrilens.yaml")
	content := "db_path: /tmp/file.db\nmatch_threshold: 1\nmax_retries: 7\nredis_addr: localhost:6379\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NUTRILENS_MAX_RETRIES", "5")

	cfg, err := nutrilens.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.DBPath != "/tmp/file.db" || *cfg.MatchThreshold != 1 || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("file values not loaded: %+v", cfg)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want env override 5", cfg.MaxRetries)
	}
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrilens.env")
	if err := os.WriteFile(path, []byte("DB_PATH=/tmp/dotenv.db\nMATCH_THRESHOLD=4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := nutrilens.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.DBPath != "/tmp/dotenv.db" || *cfg.MatchThreshold != 4 {
		t.Errorf("LoadConfig(.env) = %+v", cfg)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := nutrilens.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() on missing file returned nil error")
	}
}
