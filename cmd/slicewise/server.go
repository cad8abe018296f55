package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/slicewise/slicewise/api/handlers"
	"github.com/slicewise/slicewise/config"
	"github.com/slicewise/slicewise/internal/cache"
	"github.com/slicewise/slicewise/internal/database"
	"github.com/slicewise/slicewise/internal/metrics"
	"github.com/slicewise/slicewise/internal/server"
	"github.com/slicewise/slicewise/internal/telemetry"
	"github.com/slicewise/slicewise/knowledge"
	"github.com/slicewise/slicewise/llm"
	"github.com/slicewise/slicewise/planner"
	"github.com/slicewise/slicewise/providers/openai"
)

// Server wires the analysis pipeline, planner, and HTTP surface together
// and manages the lifecycle of both listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	tracing   *telemetry.Tracing

	cacheManager *cache.Manager
	pool         *database.PoolManager
	provider     llm.Provider

	analyzer      *handlers.Analyzer
	planner       *planner.Planner
	healthHandler *handlers.HealthHandler

	rateLimiterCancel context.CancelFunc
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start brings up dependencies, the HTTP server, and the metrics server.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("slicewise", s.logger)

	tracing, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", zap.Error(err))
	}
	s.tracing = tracing

	if err := s.initDependencies(); err != nil {
		return fmt.Errorf("failed to init dependencies: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// initDependencies builds the cache, chunk store, provider, analyzer, and
// planner. The cache, database, and LLM are all optional: analysis and
// planning still work, just without caching, retrieval, or explanations.
func (s *Server) initDependencies() error {
	var checks []handlers.HealthCheck

	var featureCache *cache.FeatureCache
	if s.cfg.Redis.Enabled {
		manager, err := cache.NewManager(cache.Config{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			DefaultTTL:   s.cfg.Redis.TTL,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		}, s.logger)
		if err != nil {
			s.logger.Warn("redis not available, feature cache disabled", zap.Error(err))
		} else {
			s.cacheManager = manager
			featureCache = cache.NewFeatureCache(manager, s.cfg.Redis.TTL, s.logger)
			checks = append(checks, handlers.RedisHealthCheck(manager.Ping))
		}
	}

	var retriever planner.KnowledgeRetriever
	pool, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		s.logger.Warn("database not available, knowledge retrieval disabled", zap.Error(err))
	} else {
		s.pool = pool
		checks = append(checks, handlers.DatabaseHealthCheck(pool.Ping))
		retriever = s.buildRetriever(pool)
	}

	if s.cfg.LLM.Enabled && s.cfg.LLM.APIKey != "" {
		provider := openai.New(openai.Config{
			APIKey:  s.cfg.LLM.APIKey,
			BaseURL: s.cfg.LLM.BaseURL,
			Model:   s.cfg.LLM.Model,
			Timeout: s.cfg.LLM.Timeout,
		}, s.logger)
		s.provider = provider
		checks = append(checks, handlers.CheckFunc{
			CheckName: "llm",
			Fn: func(ctx context.Context) error {
				status, err := provider.HealthCheck(ctx)
				if err != nil {
					return err
				}
				if !status.Healthy {
					return fmt.Errorf("provider unhealthy")
				}
				return nil
			},
		})
		s.logger.Info("explanation provider initialized", zap.String("model", s.cfg.LLM.Model))
	} else {
		s.logger.Info("LLM disabled, plans use the deterministic explanation")
	}

	s.analyzer = handlers.NewAnalyzer(s.cfg.Analysis.MeshConfig(), featureCache, s.collector, s.logger)
	s.planner = planner.New(s.analyzer.AnalyzeFunc("upload"), retriever, s.provider, planner.Config{
		Model:           s.cfg.LLM.Model,
		MaxPromptTokens: s.cfg.LLM.MaxPromptTokens,
		TopK:            s.cfg.Knowledge.TopK,
	}, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger, checks...)

	return nil
}

// buildRetriever picks the embedder: the OpenAI embeddings API when an API
// key is configured, otherwise the deterministic local hashing embedder.
func (s *Server) buildRetriever(pool *database.PoolManager) *knowledge.Retriever {
	var embedder knowledge.Embedder
	if s.cfg.LLM.Enabled && s.cfg.LLM.APIKey != "" {
		embedder = knowledge.NewOpenAIEmbedder(s.cfg.LLM.APIKey, s.cfg.LLM.BaseURL, "")
	} else {
		embedder = knowledge.NewLocalEmbedder(0)
	}
	chunker := knowledge.NewChunker(knowledge.ChunkingConfig{
		ChunkSize:    s.cfg.Knowledge.ChunkSize,
		ChunkOverlap: s.cfg.Knowledge.ChunkOverlap,
	}, s.logger)
	return knowledge.NewRetriever(knowledge.NewStore(pool), embedder, chunker, s.logger)
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", handlers.HandleVersion(Version, BuildTime, GitCommit))

	analyzeHandler := handlers.NewAnalyzeHandler(s.analyzer, s.cfg.Server.MaxUploadBytes, s.logger)
	planHandler := handlers.NewPlanHandler(s.planner, s.collector, s.cfg.Server.MaxUploadBytes, s.logger)
	streamHandler := handlers.NewStreamHandler(s.planner, s.cfg.LLM.Timeout+time.Minute, s.logger)

	mux.HandleFunc("/api/v1/analyze", analyzeHandler.HandleAnalyze)
	mux.HandleFunc("/api/v1/plan", planHandler.HandlePlan)
	mux.HandleFunc("/api/v1/plan/stream", streamHandler.HandleStream)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners and releases the cache, database, and
// telemetry resources.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("database shutdown error", zap.Error(err))
		}
	}
	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.logger.Error("tracing shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
