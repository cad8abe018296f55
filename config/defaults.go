// =============================================================================
// slicewise default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Analysis:  DefaultAnalysisConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Knowledge: DefaultKnowledgeConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default HTTP listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       60 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		MaxUploadBytes:     64 << 20, // 64 MiB of STL is roughly 1.3M triangles
		RateLimitRPS:       50,
		RateLimitBurst:     100,
		CORSAllowedOrigins: []string{"*"},
	}
}

// DefaultAnalysisConfig returns the production tolerances.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ContactTolMM:            0.3,
		NormalEps:               1e-6,
		DegenerateAreaEps:       1e-10,
		OverhangThresholdDeg:    55.0,
		SevereOverhangMarginDeg: 10.0,
		OverhangPercentTrigger:  2.0,
		OpenTopTolMM:            0.5,
		OpenTopBoundaryRatio:    0.70,
	}
}

// DefaultRedisConfig returns the default cache settings (disabled).
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		TTL:          24 * time.Hour,
	}
}

// DefaultDatabaseConfig returns the default chunk-store settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Path:            "slicewise.db",
		Host:            "localhost",
		Port:            5432,
		User:            "slicewise",
		Name:            "slicewise",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultKnowledgeConfig returns the default retrieval settings.
func DefaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		Dir:          "knowledge",
		ChunkSize:    800,
		ChunkOverlap: 120,
		TopK:         3,
	}
}

// DefaultLLMConfig returns the default provider settings (disabled).
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Enabled:         false,
		BaseURL:         "https://api.openai.com",
		Model:           "gpt-4o-mini",
		MaxPromptTokens: 6000,
		Timeout:         60 * time.Second,
		Temperature:     0.3,
		MaxTokens:       1024,
	}
}

// DefaultLogConfig returns the default zap settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry settings (off).
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "slicewise",
		Environment:  "development",
		SampleRate:   1.0,
	}
}
