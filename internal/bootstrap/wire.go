package bootstrap

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"lingua/internal/audio"
	"lingua/internal/config"
	"lingua/internal/metrics"
	"lingua/internal/playback"
	"lingua/internal/ports"
	"lingua/internal/providers/gemini"
	"lingua/internal/session"
)

// Services is the assembled runtime graph.
type Services struct {
	Engine *session.Engine
	Bridge *session.TranslationBridge
	Scenes *session.SceneGenerator
	Config config.Config
	Logger *zap.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := newLogger()
	if err != nil {
		return Services{}, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, registry, logger)
	}

	geminiCfg := gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		APIBaseURL: cfg.Gemini.APIBaseURL,
		LiveModel:  cfg.Gemini.LiveModel,
		TextModel:  cfg.Gemini.TextModel,
		ImageModel: cfg.Gemini.ImageModel,
	}
	generation, err := gemini.NewGenerationService(ctx, geminiCfg)
	if err != nil {
		return Services{}, err
	}

	sink := audio.NewFFPlaySink(cfg.Audio.PlaybackCommand, cfg.Audio.OutputSampleRate, logger)
	scheduler := playback.New(playback.NewClock(), sink, cfg.Audio.OutputSampleRate, logger)
	bridge := session.NewTranslationBridge(generation, logger)

	engine := session.NewEngine(
		audio.NewFFMPEGCapture(cfg.Audio.CaptureCommand),
		gemini.NewProvider(geminiCfg),
		scheduler,
		bridge,
		eventSink,
		m,
		logger,
		ports.CaptureConfig{
			SampleRate:  cfg.Audio.InputSampleRate,
			FrameSize:   cfg.Audio.FrameSize,
			Command:     cfg.Audio.CaptureCommand,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
	)

	return Services{
		Engine: engine,
		Bridge: bridge,
		Scenes: session.NewSceneGenerator(generation, logger),
		Config: cfg,
		Logger: logger,
	}, nil
}

func newLogger() (*zap.Logger, error) {
	if strings.TrimSpace(os.Getenv("LINGUA_DEBUG")) != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
