package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/observability"
	"github.com/courtcopilot/courtcopilot/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.api.Search)
		r.Post("/search/cached", s.api.CachedSearch)
		r.Delete("/cache", s.api.ClearCache)

		r.Get("/history", s.api.History)
		r.Delete("/history", s.api.ClearHistory)

		r.Get("/bookmarks", s.api.ListBookmarks)
		r.Post("/bookmarks", s.api.SaveBookmark)
		r.Delete("/bookmarks", s.api.ClearBookmarks)
		r.Delete("/bookmarks/{key}", s.api.RemoveBookmark)

		r.Get("/judges/{name}", s.api.JudgeDetails)

		r.Post("/documents/analyze", s.api.AnalyzeDocument)
		r.Post("/documents/cross-reference", s.api.CrossReference)
		r.Post("/documents/narrative-map", s.api.NarrativeMap)
		r.Post("/documents/ask", s.api.AskFollowUp)
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint mounts /admin/signal when an admin token is set.
func (s *Server) registerAdminEndpoint() {
	tokenVar := config.EnvPrefix + "ADMIN_TOKEN"
	adminToken := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + tokenVar + " set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil, // global manager
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
