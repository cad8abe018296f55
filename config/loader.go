// =============================================================================
// slicewise configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SLICEWISE").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Analysis holds every mesh-analysis tolerance and threshold.
	Analysis AnalysisConfig `yaml:"analysis" env:"ANALYSIS"`

	// Redis configures the feature-record cache.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the knowledge chunk store.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Knowledge configures document indexing and retrieval.
	Knowledge KnowledgeConfig `yaml:"knowledge" env:"KNOWLEDGE"`

	// LLM configures the explanation provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log configures zap.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures the OTLP exporters.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// MaxUploadBytes caps STL uploads. Files are read fully into
	// memory, so this bounds per-request memory too.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	// RateLimitRPS / RateLimitBurst feed the per-IP token bucket.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	// APIKeys enables API-key auth on mutating endpoints when non-empty.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`

	// CORSAllowedOrigins lists origins allowed by the CORS middleware.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// AnalysisConfig mirrors mesh.Config so every tolerance is settable
// from YAML or the environment.
type AnalysisConfig struct {
	ContactTolMM            float64 `yaml:"contact_tol_mm" env:"CONTACT_TOL_MM"`
	NormalEps               float64 `yaml:"normal_eps" env:"NORMAL_EPS"`
	DegenerateAreaEps       float64 `yaml:"degenerate_area_eps" env:"DEGENERATE_AREA_EPS"`
	OverhangThresholdDeg    float64 `yaml:"overhang_threshold_deg" env:"OVERHANG_THRESHOLD_DEG"`
	SevereOverhangMarginDeg float64 `yaml:"severe_overhang_margin_deg" env:"SEVERE_OVERHANG_MARGIN_DEG"`
	OverhangPercentTrigger  float64 `yaml:"overhang_percent_trigger" env:"OVERHANG_PERCENT_TRIGGER"`
	OpenTopTolMM            float64 `yaml:"open_top_tol_mm" env:"OPEN_TOP_TOL_MM"`
	OpenTopBoundaryRatio    float64 `yaml:"open_top_boundary_ratio" env:"OPEN_TOP_BOUNDARY_RATIO"`
}

// RedisConfig configures the feature-record cache.
type RedisConfig struct {
	// Enabled switches the cache on; analysis works without it.
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	TTL          time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig configures the knowledge chunk store.
type DatabaseConfig struct {
	// Driver selects the GORM dialect: sqlite or postgres.
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the sqlite file path (sqlite driver only).
	Path            string        `yaml:"path" env:"PATH"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// KnowledgeConfig configures document chunking and retrieval.
type KnowledgeConfig struct {
	// Dir is the directory of markdown source documents.
	Dir string `yaml:"dir" env:"DIR"`
	// ChunkSize and ChunkOverlap are measured in characters.
	ChunkSize    int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// TopK is how many chunks retrieval returns.
	TopK int `yaml:"top_k" env:"TOP_K"`
}

// LLMConfig configures the explanation provider.
type LLMConfig struct {
	// Enabled gates the explanation step; plans work without it.
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Model   string `yaml:"model" env:"MODEL"`
	// MaxPromptTokens bounds the prompt before dispatch.
	MaxPromptTokens int           `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Temperature     float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens       int           `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTLP span exporter. Metrics are served
// by the Prometheus collector and are not part of this section.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	// Environment tags spans with deployment.environment when set.
	Environment string  `yaml:"environment" env:"ENVIRONMENT"`
	SampleRate  float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SLICEWISE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration.
// Precedence: defaults → YAML file → environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file means defaults.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct recursively, joining env tags with
// underscores: SLICEWISE_SERVER_HTTP_PORT and so on.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration parses as a duration string, not an integer.
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads the configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "max_upload_bytes must be positive")
	}

	if c.Analysis.ContactTolMM < 0 {
		errs = append(errs, "contact_tol_mm must not be negative")
	}
	if c.Analysis.OverhangThresholdDeg <= 0 || c.Analysis.OverhangThresholdDeg >= 90 {
		errs = append(errs, "overhang_threshold_deg must be within (0, 90)")
	}
	if c.Analysis.OpenTopBoundaryRatio <= 0 || c.Analysis.OpenTopBoundaryRatio > 1 {
		errs = append(errs, "open_top_boundary_ratio must be within (0, 1]")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Knowledge.ChunkSize <= 0 {
		errs = append(errs, "chunk_size must be positive")
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		errs = append(errs, "chunk_overlap must be within [0, chunk_size)")
	}
	if c.Knowledge.TopK <= 0 {
		errs = append(errs, "top_k must be positive")
	}

	if c.LLM.Enabled && c.LLM.BaseURL == "" {
		errs = append(errs, "llm.base_url required when llm.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
