// =============================================================================
// slicewise entry point
// =============================================================================
// Service and CLI entry point: HTTP API, mesh analysis from the command
// line, knowledge indexing, health check, and version info.
//
// Usage:
//
//	slicewise serve                        # start the server
//	slicewise serve --config config.yaml   # with a config file
//	slicewise analyze model.stl [more.stl] # analyze STL files, print JSON
//	slicewise index --dir ./knowledge      # index markdown guidance docs
//	slicewise health                       # probe a running server
//	slicewise version                      # show version info
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/slicewise/slicewise/config"
	"github.com/slicewise/slicewise/internal/database"
	"github.com/slicewise/slicewise/mesh"
)

// Build-time values, injected via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "health":
		runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting slicewise",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	srv := NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()
	logger.Info("slicewise stopped")
}

// runAnalyze loads each STL, runs the feature analysis, and prints one
// JSON document per file. Files are processed concurrently.
func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	pretty := fs.Bool("pretty", true, "Indent JSON output")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "analyze requires at least one STL file")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	meshCfg := cfg.Analysis.MeshConfig()

	type result struct {
		File     string             `json:"file"`
		Features mesh.FeatureRecord `json:"features"`
	}
	results := make([]result, len(files))

	g, _ := errgroup.WithContext(context.Background())
	for i, path := range files {
		g.Go(func() error {
			m, err := mesh.LoadSTLFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = result{File: path, Features: mesh.Analyze(m, meshCfg)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			os.Exit(1)
		}
	}
}

// runIndex chunks and embeds every markdown document under --dir and
// replaces the stored chunks.
func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dir := fs.String("dir", "", "Directory of markdown documents (defaults to knowledge.dir)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	if *dir == "" {
		dir = &cfg.Knowledge.Dir
	}

	pool, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer pool.Close()

	srv := &Server{cfg: cfg, logger: logger}
	retriever := srv.buildRetriever(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	chunks, err := retriever.IndexDir(ctx, *dir)
	if err != nil {
		logger.Fatal("indexing failed", zap.Error(err))
	}
	fmt.Printf("Indexed %d chunks from %s\n", chunks, *dir)
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("slicewise %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`slicewise - mesh analysis and print planning service

Usage:
  slicewise <command> [options]

Commands:
  serve     Start the slicewise server
  analyze   Analyze STL files and print feature records as JSON
  index     Index markdown guidance documents for retrieval
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'analyze':
  --config <path>   Path to configuration file (YAML)
  --pretty          Indent JSON output (default true)

Options for 'index':
  --config <path>   Path to configuration file (YAML)
  --dir <path>      Directory of markdown documents

Examples:
  slicewise serve --config /etc/slicewise/config.yaml
  slicewise analyze bracket.stl housing.stl
  slicewise index --dir ./knowledge
  slicewise health --addr http://localhost:8080`)
}

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
