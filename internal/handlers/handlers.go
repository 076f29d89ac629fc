package handlers

import (
	"Narrator/internal/config"
	"Narrator/internal/links"
	"Narrator/internal/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	conversions ConversionService,
	signer *links.Signer,
	metrics http.Handler,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", headerConversionID, headerAudioURL},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Handlers
	convHandler := NewConversionHandler(conversions, signer, logger, config)

	r.Get("/", Root)
	r.Get("/healthz", Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Post("/text-to-speech", convHandler.TextToSpeech)

	r.Route("/api/conversions", func(r chi.Router) {
		r.With(middleware.WithGzip).Get("/", convHandler.List)
		r.With(middleware.WithGzip).Get("/{id}", convHandler.Get)
		r.Get("/{id}/audio", convHandler.Audio)
	})

	return &Handler{Router: r}
}

// Root приветствие API
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Text-to-Speech API!"})
}

// Health проверка живости сервиса
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
