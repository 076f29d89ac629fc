package main

import (
	"Narrator/internal/config"
	"Narrator/internal/handlers"
	"Narrator/internal/links"
	"Narrator/internal/metrics"
	"Narrator/internal/middleware"
	"Narrator/internal/repo"
	"Narrator/internal/scheduler"
	"Narrator/internal/service"
	"Narrator/internal/tts"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := config.NewConfig()

	// создаём регистратор zap с уровнем из конфига
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	//context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	certFile, keyFile, err := cfg.TLSFiles()
	if err != nil {
		sugar.Fatalw("invalid TLS configuration", "error", err)
	}

	gormDB, err := repo.InitDB(cfg.DatabaseDSN, cfg.SQLitePath)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	synth, err := tts.NewOpenAISynthesizer(tts.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.TTSModel,
		Voice:   cfg.TTSVoice,
	}, logger.Named("tts"))
	if err != nil {
		sugar.Fatalw("failed to initialize text-to-speech provider", "error", err)
	}

	m := metrics.New(logger.Named("metrics"))
	conversionService := service.NewConversionService(
		repo.NewConversionRepository(gormDB),
		repo.NewBlobRepository(gormDB),
		synth,
		m,
		logger.Named("service"),
		service.Options{
			Model:       cfg.TTSModel,
			Voice:       cfg.TTSVoice,
			ChunkSize:   cfg.ChunkSize,
			Parallelism: cfg.TTSParallelism,
		},
	)

	sched := scheduler.NewScheduler(logger.Named("scheduler"))
	sched.AddJob(scheduler.NewRetentionJob(conversionService, cfg.Retention))
	go sched.Start(ctx, purgeInterval(cfg.Retention))

	signer := links.NewSigner(cfg.LinkSecret, cfg.LinkTTL)
	h := handlers.NewHandler(conversionService, signer, m.Handler(), sugar, cfg)

	addr := cfg.BaseURL

	sugar.Infow(
		"Starting server",
		"addr", addr,
	)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"Postgres", cfg.DatabaseDSN != "",
		"SQLitePath", cfg.SQLitePath,
		"Model", cfg.TTSModel,
		"Voice", cfg.TTSVoice,
		"ChunkSize", cfg.ChunkSize,
		"Parallelism", cfg.TTSParallelism,
		"UploadMaxMB", cfg.UploadMaxMB,
		"AllowedOrigins", cfg.AllowedOrigins,
		"Retention", cfg.Retention,
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("Server shutdown failed", "error", err)
		}
	}()

	if err := serve(srv, certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalw("Server failed", "error", err)
	}
	sugar.Infow("Server stopped")
}

// serve слушает по TLS, если заданы сертификат и ключ.
func serve(srv *http.Server, certFile, keyFile string) error {
	if certFile != "" {
		return srv.ListenAndServeTLS(certFile, keyFile)
	}
	return srv.ListenAndServe()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if lvl == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// purgeInterval — как часто запускать очистку: половина срока хранения, от минуты до часа.
func purgeInterval(retention time.Duration) time.Duration {
	return min(max(retention/2, time.Minute), time.Hour)
}
