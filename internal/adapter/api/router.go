package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/V4T54L/dealboard/internal/activity"
	"github.com/V4T54L/dealboard/internal/adapter/api/handler"
	"github.com/V4T54L/dealboard/internal/adapter/api/middleware"
	"github.com/V4T54L/dealboard/internal/adapter/metrics"
	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/pipeline"
	"github.com/V4T54L/dealboard/internal/pkg/config"
	"github.com/V4T54L/dealboard/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the dashboard.
// redactor and m may be nil.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	store *pipeline.Store,
	pipelineUseCase *usecase.PipelineUseCase,
	feed *activity.Feed,
	broker *handler.SSEBroker,
	redactor *pii.Redactor,
	m *metrics.PipelineMetrics,
) http.Handler {
	r := chi.NewRouter()

	// Handlers
	dealHandler := handler.NewDealHandler(pipelineUseCase, store, redactor, logger)
	activityHandler := handler.NewActivityHandler(feed)

	// Middleware
	var onLimited func()
	if m != nil {
		onLimited = m.RateLimited.Inc
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(limiter, onLimited, logger))

	// Health check
	r.Get("/health", handler.HealthCheck)

	// Event stream stays uncompressed so every message is flushed as is.
	r.Get("/events", broker.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		r.Get("/stages", dealHandler.ListStages)

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", dealHandler.ListDeals)
			r.Post("/", dealHandler.CreateDeal)
			r.Get("/{id}", dealHandler.GetDeal)
			r.Patch("/{id}", dealHandler.UpdateDeal)
			r.Delete("/{id}", dealHandler.DeleteDeal)
			r.Post("/{id}/move", dealHandler.MoveDeal)
		})

		r.Get("/pipeline", dealHandler.Board)
		r.Post("/pipeline/drop", dealHandler.DropDeal)

		r.Get("/activity", activityHandler.Recent)
	})

	return r
}
