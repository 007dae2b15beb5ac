package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/service"
)

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func main() {
	addr := flag.String("addr", envOr("INFERD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	modelsDir := flag.String("models-dir", envOr("INFERD_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	backendName := flag.String("backend", envOr("INFERD_BACKEND", "llamacpp"), "Inference backend (llamacpp, llamalib)")
	defaultModel := flag.String("default-model", os.Getenv("INFERD_DEFAULT_MODEL"), "Default model id when request omits model")
	gpuLayers := flag.Int("gpu-layers", 0, "GPU layers to offload (-1=all, 0=cpu)")
	scanWorkers := flag.Int("scan-workers", 0, "Worker count for filesystem scans (0=NumCPU)")
	logLevel := flag.String("log-level", envOr("INFERD_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	configPath := flag.String("config", os.Getenv("INFERD_CONFIG"), "Optional config file (.yaml, .json, .toml); flags override")
	corsOrigins := flag.String("cors-origins", os.Getenv("INFERD_CORS_ORIGINS"), "Comma-separated allowed CORS origins (empty disables CORS)")
	flag.Parse()

	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Content-Type", "X-Log-Level"})
	}

	// Config file fills in anything the flags left at defaults.
	if *configPath != "" && fsutil.PathExists(*configPath) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logFatal("load config", err)
		}
		applyFileConfig(cfg, addr, modelsDir, backendName, defaultModel, gpuLayers, scanWorkers, logLevel)
	}

	logger := newLogger(*logLevel)
	httpapi.SetLogger(logger)

	reg, err := registry.LoadDir(*modelsDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *modelsDir).Msg("failed to load models")
	}
	logger.Info().Int("models", len(reg)).Str("dir", *modelsDir).Msg("registry loaded")

	svc, err := service.New(reg, service.Config{
		Backend:      *backendName,
		DefaultModel: *defaultModel,
		GPULayers:    *gpuLayers,
		ScanWorkers:  *scanWorkers,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("service init failed")
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Str("backend", *backendName).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := svc.Close(); err != nil {
		logger.Error().Err(err).Msg("session release error")
	}
}

// applyFileConfig copies file values into flag targets still holding their
// zero/default values, so explicit flags always win.
func applyFileConfig(cfg config.Config, addr, modelsDir, backendName, defaultModel *string, gpuLayers, scanWorkers *int, logLevel *string) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cfg.Addr != "" && !set["addr"] {
		*addr = cfg.Addr
	}
	if cfg.ModelsDir != "" && !set["models-dir"] {
		*modelsDir = cfg.ModelsDir
	}
	if cfg.Backend != "" && !set["backend"] {
		*backendName = cfg.Backend
	}
	if cfg.DefaultModel != "" && !set["default-model"] {
		*defaultModel = cfg.DefaultModel
	}
	if cfg.GPULayers != 0 && !set["gpu-layers"] {
		*gpuLayers = cfg.GPULayers
	}
	if cfg.ScanWorkers != 0 && !set["scan-workers"] {
		*scanWorkers = cfg.ScanWorkers
	}
	if cfg.LogLevel != "" && !set["log-level"] {
		*logLevel = cfg.LogLevel
	}
}

// splitCSV splits a comma-separated list, trimming whitespace and
// dropping empty elements.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func logFatal(msg string, err error) {
	l := zerolog.New(os.Stderr)
	l.Fatal().Err(err).Msg(msg)
}
